package settings

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetInventory("/etc/pairpush.yaml"); got != "/etc/pairpush.yaml" {
		t.Errorf("GetInventory() default = %q", got)
	}
	if s.DefaultGroup != "" {
		t.Errorf("DefaultGroup should be empty, got %q", s.DefaultGroup)
	}
}

func TestSettings_SetGet(t *testing.T) {
	s := &Settings{}

	tests := []struct {
		key, value string
		field      *string
	}{
		{"inventory", "/tmp/inv.ini", &s.Inventory},
		{"default_group", "core", &s.DefaultGroup},
		{"backup_dir", "/tmp/b", &s.BackupDir},
		{"audit_log", "/tmp/a.log", &s.AuditLog},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set() error = %v", err)
			}
			if *tt.field != tt.value {
				t.Errorf("field = %q, want %q", *tt.field, tt.value)
			}
			if got, ok := s.Get(tt.key); !ok || got != tt.value {
				t.Errorf("Get() = %q, %v", got, ok)
			}
		})
	}

	if err := s.Set("network", "x"); err == nil {
		t.Error("Set() with unknown key should fail")
	}
	if _, ok := s.Get("network"); ok {
		t.Error("Get() with unknown key should report false")
	}
	if s.GetInventory("/fallback") != "/tmp/inv.ini" {
		t.Error("configured inventory should win over fallback")
	}
}

func TestKeys(t *testing.T) {
	want := []string{"audit_log", "backup_dir", "default_group", "inventory"}
	if got := Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{Inventory: "a", DefaultGroup: "b", BackupDir: "c", AuditLog: "d"}
	s.Clear()
	if *s != (Settings{}) {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "sub", "settings.json")

	s := &Settings{Inventory: "/etc/pairpush/inventory.yaml", DefaultGroup: "core"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if *loaded != *s {
		t.Errorf("LoadFrom() = %+v, want %+v", loaded, s)
	}
}

func TestSettings_LoadMissingAndInvalid(t *testing.T) {
	tmpDir := t.TempDir()

	s, err := LoadFrom(filepath.Join(tmpDir, "missing.json"))
	if err != nil || *s != (Settings{}) {
		t.Errorf("missing file: %+v, %v", s, err)
	}

	bad := filepath.Join(tmpDir, "bad.json")
	if err := os.WriteFile(bad, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(bad); err == nil {
		t.Error("LoadFrom() should fail on invalid JSON")
	}
}
