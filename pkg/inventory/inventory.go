// Package inventory loads the configuration store: credentials, compare
// ignore patterns, and the named device groups a run targets.
//
// The store can be written as YAML, TOML, or the legacy INI layout; the
// format is picked by file extension. All three decode into the same Store.
package inventory

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agext/levenshtein"
	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mitchellh/go-homedir"

	"github.com/pairpush/pairpush/pkg/device"
	"github.com/pairpush/pairpush/pkg/util"
)

// GroupSize is the number of devices every group must hold.
const GroupSize = 2

// DefaultPath is where the store is looked up when none is given.
const DefaultPath = "~/.pairpush/inventory.yaml"

// Endpoint is one device of a group.
type Endpoint struct {
	Name    string `yaml:"name" toml:"name"`
	Address string `yaml:"address" toml:"address"`
}

// Credentials authenticate every device session.
type Credentials struct {
	User     string `yaml:"user" toml:"user"`
	Password string `yaml:"password,omitempty" toml:"password,omitempty"`
}

// Transport tunes the device connection. Zero values mean defaults.
type Transport struct {
	Port         int    `yaml:"port,omitempty" toml:"port,omitempty"`
	ProbePort    int    `yaml:"probe_port,omitempty" toml:"probe_port,omitempty"`
	ProbeTimeout int    `yaml:"probe_timeout,omitempty" toml:"probe_timeout,omitempty"` // seconds
	KnownHosts   string `yaml:"known_hosts,omitempty" toml:"known_hosts,omitempty"`
}

// Lock selects the run lock backend. RedisAddr wins over Dir.
type Lock struct {
	Dir       string `yaml:"dir,omitempty" toml:"dir,omitempty"`
	RedisAddr string `yaml:"redis_addr,omitempty" toml:"redis_addr,omitempty"`
	RedisDB   int    `yaml:"redis_db,omitempty" toml:"redis_db,omitempty"`
	TTL       int    `yaml:"ttl,omitempty" toml:"ttl,omitempty"` // seconds
}

// Store is the loaded configuration store.
type Store struct {
	Credentials    Credentials           `yaml:"credentials" toml:"credentials"`
	IgnorePatterns []string              `yaml:"ignore_patterns,omitempty" toml:"ignore_patterns,omitempty"`
	Groups         map[string][]Endpoint `yaml:"groups" toml:"groups"`
	Transport      Transport             `yaml:"transport,omitempty" toml:"transport,omitempty"`
	BackupDir      string                `yaml:"backup_dir,omitempty" toml:"backup_dir,omitempty"`
	AuditLog       string                `yaml:"audit_log,omitempty" toml:"audit_log,omitempty"`
	Lock           Lock                  `yaml:"lock,omitempty" toml:"lock,omitempty"`

	// Path is the file the store was loaded from.
	Path string `yaml:"-" toml:"-"`
}

// Group is a resolved device group.
type Group struct {
	Name    string
	Devices []Endpoint
}

// Addresses returns the device addresses in declared order.
func (g *Group) Addresses() []string {
	out := make([]string, len(g.Devices))
	for i, d := range g.Devices {
		out[i] = d.Address
	}
	return out
}

// Load reads the store at path. "~" is expanded.
func Load(path string) (*Store, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding %q: %w", path, err)
	}

	var s *Store
	switch ext := strings.ToLower(filepath.Ext(expanded)); ext {
	case ".yaml", ".yml":
		s, err = loadYAML(expanded)
	case ".toml":
		s, err = loadTOML(expanded)
	case ".ini", ".cfg":
		s, err = loadINI(expanded)
	default:
		return nil, fmt.Errorf("%w: %s: unsupported store format %q", util.ErrInvalidConfig, expanded, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", util.ErrInvalidConfig, expanded, err)
	}
	s.Path = expanded

	if err := s.normalize(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", util.ErrInvalidConfig, expanded, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", expanded, err)
	}

	util.WithField("store", expanded).Debugf("loaded %d groups, %d ignore patterns", len(s.Groups), len(s.IgnorePatterns))
	return s, nil
}

func (s *Store) normalize() error {
	if s.Groups == nil {
		s.Groups = make(map[string][]Endpoint)
	}
	patterns := s.IgnorePatterns[:0]
	for _, p := range s.IgnorePatterns {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	s.IgnorePatterns = patterns

	for _, devices := range s.Groups {
		for i := range devices {
			devices[i].Address = strings.TrimSpace(devices[i].Address)
		}
	}

	for _, p := range []*string{&s.BackupDir, &s.AuditLog, &s.Transport.KnownHosts, &s.Lock.Dir} {
		if *p == "" {
			continue
		}
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// Validate checks the store schema. Group sizes are not checked here so one
// malformed group does not prevent using the others; each one is logged.
func (s *Store) Validate() error {
	v := &util.ValidationBuilder{}
	v.Add(s.Credentials.User != "", "credentials.user is required")

	for _, name := range s.GroupNames() {
		devices := s.Groups[name]
		for i, d := range devices {
			if strings.TrimSpace(d.Address) == "" {
				v.AddErrorf("group '%s': device %d (%s) has no address", name, i+1, d.Name)
			}
		}
		if len(devices) != GroupSize {
			v.AddWarningf("group '%s' has %d devices; it cannot be used until it has exactly %d", name, len(devices), GroupSize)
		}
		if dup := duplicateAddress(devices); dup != "" {
			v.AddWarningf("group '%s' lists address %s more than once; it cannot be used", name, dup)
		}
	}
	for _, w := range v.Warnings() {
		util.Warnf("%s", w)
	}
	return v.Build()
}

// GroupNames returns the group names in sorted order.
func (s *Store) GroupNames() []string {
	names := make([]string, 0, len(s.Groups))
	for name := range s.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveGroup returns group name, which must exist and hold exactly two
// devices. Otherwise it returns a *util.GroupError; an unknown name carries
// the closest existing names as suggestions.
func (s *Store) ResolveGroup(name string) (*Group, error) {
	devices, ok := s.Groups[name]
	if !ok {
		names := s.GroupNames()
		return nil, &util.GroupError{
			Group:       name,
			Found:       -1,
			Available:   names,
			Suggestions: suggest(name, names),
		}
	}
	if len(devices) != GroupSize {
		return nil, &util.GroupError{Group: name, Found: len(devices)}
	}
	if dup := duplicateAddress(devices); dup != "" {
		return nil, &util.GroupError{Group: name, Found: len(devices), Duplicate: dup}
	}
	return &Group{Name: name, Devices: append([]Endpoint(nil), devices...)}, nil
}

// duplicateAddress returns the first address that appears twice, or "".
// Results, sessions and backups are keyed by address.
func duplicateAddress(devices []Endpoint) string {
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		addr := strings.TrimSpace(d.Address)
		if addr == "" {
			continue
		}
		if seen[addr] {
			return addr
		}
		seen[addr] = true
	}
	return ""
}

// maxSuggestions caps the names offered for an unknown group.
const maxSuggestions = 3

// suggest ranks names that fuzzy-match name, then adds names within edit
// distance 2 (typos the fuzzy match misses, like swapped letters).
func suggest(name string, names []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(n string) {
		if !seen[n] && len(out) < maxSuggestions {
			seen[n] = true
			out = append(out, n)
		}
	}

	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)
	for _, r := range ranks {
		add(r.Target)
	}

	lower := strings.ToLower(name)
	for _, n := range names {
		if levenshtein.Distance(lower, strings.ToLower(n), nil) <= 2 {
			add(n)
		}
	}
	return out
}

// DeviceCredentials returns the session credentials.
func (s *Store) DeviceCredentials() device.Credentials {
	return device.Credentials{User: s.Credentials.User, Password: s.Credentials.Password}
}

// ProbeTimeoutDuration returns the probe timeout, or zero for the default.
func (t Transport) ProbeTimeoutDuration() time.Duration {
	return time.Duration(t.ProbeTimeout) * time.Second
}

// TTLDuration returns the lock TTL, or zero for the default.
func (l Lock) TTLDuration() time.Duration {
	return time.Duration(l.TTL) * time.Second
}
