package inventory

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

func loadYAML(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s := &Store{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	return s, nil
}

func loadTOML(path string) (*Store, error) {
	s := &Store{}
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return nil, fmt.Errorf("parsing toml: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return s, nil
}

// INI sections with a fixed meaning; every other section is a device group
// whose keys are device names and values are addresses.
const (
	iniSettings = "settings"
	iniIgnore   = "ignore_those_lines_in_compare"
)

func loadINI(path string) (*Store, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		IgnoreInlineComment: true,
		Insensitive:         false,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("parsing ini: %w", err)
	}

	if !cfg.HasSection(iniSettings) {
		return nil, fmt.Errorf("missing [%s] section", iniSettings)
	}
	settings := cfg.Section(iniSettings)

	s := &Store{
		Credentials: Credentials{
			User:     settings.Key("user").String(),
			Password: settings.Key("password").String(),
		},
		Groups:    make(map[string][]Endpoint),
		BackupDir: settings.Key("backup_dir").String(),
		AuditLog:  settings.Key("audit_log").String(),
		Transport: Transport{
			Port:         settings.Key("port").MustInt(0),
			ProbePort:    settings.Key("probe_port").MustInt(0),
			ProbeTimeout: settings.Key("probe_timeout").MustInt(0),
			KnownHosts:   settings.Key("known_hosts").String(),
		},
		Lock: Lock{
			Dir:       settings.Key("lock_dir").String(),
			RedisAddr: settings.Key("redis_addr").String(),
			RedisDB:   settings.Key("redis_db").MustInt(0),
			TTL:       settings.Key("lock_ttl").MustInt(0),
		},
	}

	if cfg.HasSection(iniIgnore) {
		for _, k := range cfg.Section(iniIgnore).Keys() {
			s.IgnorePatterns = append(s.IgnorePatterns, k.String())
		}
	}

	for _, sec := range cfg.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == iniSettings || name == iniIgnore {
			continue
		}
		devices := make([]Endpoint, 0, len(sec.Keys()))
		for _, k := range sec.Keys() {
			devices = append(devices, Endpoint{Name: k.Name(), Address: strings.TrimSpace(k.String())})
		}
		s.Groups[name] = devices
	}
	return s, nil
}
