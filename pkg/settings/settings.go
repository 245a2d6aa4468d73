// Package settings manages persistent user settings for the pairpush CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Settings holds persistent user preferences
type Settings struct {
	// Inventory is the store to use when -i is not specified
	Inventory string `json:"inventory,omitempty"`

	// DefaultGroup is the group to use when -g is not specified
	DefaultGroup string `json:"default_group,omitempty"`

	// BackupDir overrides the store's backup directory
	BackupDir string `json:"backup_dir,omitempty"`

	// AuditLog overrides the store's audit log path
	AuditLog string `json:"audit_log,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pairpush_settings.json"
	}
	return filepath.Join(home, ".pairpush", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// fields maps setting keys to their storage.
func (s *Settings) fields() map[string]*string {
	return map[string]*string{
		"inventory":     &s.Inventory,
		"default_group": &s.DefaultGroup,
		"backup_dir":    &s.BackupDir,
		"audit_log":     &s.AuditLog,
	}
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, 4)
	for k := range (&Settings{}).fields() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set assigns key; an empty value unsets it.
func (s *Settings) Set(key, value string) error {
	p, ok := s.fields()[key]
	if !ok {
		return fmt.Errorf("unknown setting %q (valid: %v)", key, Keys())
	}
	*p = value
	return nil
}

// Get returns the value of key.
func (s *Settings) Get(key string) (string, bool) {
	p, ok := s.fields()[key]
	if !ok {
		return "", false
	}
	return *p, true
}

// GetInventory returns the inventory path (with fallback)
func (s *Settings) GetInventory(fallback string) string {
	if s.Inventory != "" {
		return s.Inventory
	}
	return fallback
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
