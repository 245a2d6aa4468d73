package inventory

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// PasswordEnv overrides a password missing from the store.
const PasswordEnv = "PAIRPUSH_PASSWORD"

// ErrNoPassword is returned when no password is configured and none can be
// prompted for.
var ErrNoPassword = errors.New("no password configured: set credentials.password, " + PasswordEnv + ", or run from a terminal")

// ResolvePassword fills in a missing password from PAIRPUSH_PASSWORD, or by
// prompting on in when it is a terminal.
func (s *Store) ResolvePassword(in *os.File, out io.Writer) error {
	if s.Credentials.Password != "" {
		return nil
	}
	if pw := os.Getenv(PasswordEnv); pw != "" {
		s.Credentials.Password = pw
		return nil
	}
	if in == nil || !term.IsTerminal(int(in.Fd())) {
		return ErrNoPassword
	}

	fmt.Fprintf(out, "Password for %s: ", s.Credentials.User)
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}
	s.Credentials.Password = strings.TrimRight(string(pw), "\r\n")
	if s.Credentials.Password == "" {
		return ErrNoPassword
	}
	return nil
}
