package junos

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Juniper/go-netconf/netconf"
)

// NETCONF 1.0 end-of-message marker.
const delimiter = "]]>]]>"

// ErrClosed is returned for calls on a closed session.
var ErrClosed = errors.New("netconf session closed")

// RPCErrors are the rpc-errors that failed a call.
type RPCErrors []netconf.RPCError

func (e RPCErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = describe(err)
	}
	return strings.Join(msgs, "; ")
}

func describe(e netconf.RPCError) string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = e.Tag
	}
	if p := strings.TrimSpace(e.Path); p != "" {
		msg += " (at " + p + ")"
	}
	return msg
}

func isWarning(e netconf.RPCError) bool {
	return strings.EqualFold(strings.TrimSpace(e.Severity), "warning")
}

// replyErrors splits the rpc-errors of a raw reply by severity. Errors fail
// the call; warnings are returned alongside and fail it only when
// ignoreWarnings is false.
func replyErrors(raw []byte, ignoreWarnings bool) ([]netconf.RPCError, error) {
	all, err := collectRPCErrors(raw)
	if err != nil {
		return nil, err
	}
	var errs RPCErrors
	var warnings []netconf.RPCError
	for _, e := range all {
		if isWarning(e) {
			warnings = append(warnings, e)
			continue
		}
		errs = append(errs, e)
	}
	if !ignoreWarnings {
		errs = append(errs, warnings...)
	}
	if len(errs) > 0 {
		return warnings, errs
	}
	return warnings, nil
}

// collectRPCErrors returns every rpc-error element at any depth. Junos nests
// them inside load-configuration-results and commit-results, where
// RPCReply.Errors does not look.
func collectRPCErrors(raw []byte) ([]netconf.RPCError, error) {
	var out []netconf.RPCError
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parsing rpc-reply: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "rpc-error" {
			continue
		}
		var e netconf.RPCError
		if err := dec.DecodeElement(&e, &start); err != nil {
			return nil, fmt.Errorf("parsing rpc-error: %w", err)
		}
		out = append(out, e)
	}
}

// replyBytes strips framing left on a raw reply.
func replyBytes(reply *netconf.RPCReply) []byte {
	raw := strings.TrimSpace(reply.RawReply)
	return []byte(strings.TrimSpace(strings.TrimSuffix(raw, delimiter)))
}

// elementText returns the character data of the first element with the given
// local name at any depth.
func elementText(raw []byte, names ...string) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		for _, n := range names {
			if start.Name.Local == n {
				var s string
				if err := dec.DecodeElement(&s, &start); err != nil {
					return "", false
				}
				return s, true
			}
		}
	}
}

func escape(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	if err == nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", ctx.Err(), err)
}
