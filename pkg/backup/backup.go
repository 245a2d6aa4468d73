// Package backup writes and maintains per-device snapshots of committed
// configuration taken before a change.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/pairpush/pairpush/pkg/util"
)

// DefaultKeep is how many backups per device Prune retains by default.
const DefaultKeep = 10

const (
	timeLayout = "20060102_150405"
	extension  = ".conf"
)

// File is one backup on disk.
type File struct {
	Device string    `json:"device"`
	Path   string    `json:"path"`
	Taken  time.Time `json:"taken"`
	Size   int64     `json:"size"`
}

// Manager owns a backup directory.
type Manager struct {
	Dir string
	// Now defaults to time.Now.
	Now func() time.Time
}

// NewManager returns a Manager for dir; "~" is expanded.
func NewManager(dir string) (*Manager, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding backup dir %q: %w", dir, err)
	}
	return &Manager{Dir: expanded}, nil
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// fileName turns a device address into a safe file-name stem.
func fileName(device string, t time.Time) string {
	return sanitize(device) + "_" + t.Format(timeLayout) + extension
}

func sanitize(device string) string {
	return util.SanitizeFileName(device)
}

// Write stores text as the newest backup for device and returns its path.
// The file appears atomically: it is written to a temporary file in the same
// directory and renamed into place.
func (m *Manager) Write(device, text string) (string, error) {
	if err := os.MkdirAll(m.Dir, 0755); err != nil {
		return "", &util.BackupError{Device: device, Err: err}
	}

	path := filepath.Join(m.Dir, fileName(device, m.now()))
	tmp, err := os.CreateTemp(m.Dir, ".backup-*")
	if err != nil {
		return "", &util.BackupError{Device: device, Err: err}
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if !strings.HasSuffix(text, "\n") && text != "" {
		text += "\n"
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return "", &util.BackupError{Device: device, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &util.BackupError{Device: device, Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", &util.BackupError{Device: device, Err: err}
	}

	util.WithDevice(device).WithField("path", path).Info("configuration backup written")
	return path, nil
}

// List returns the backups of device, oldest first. An empty device lists
// every backup in the directory.
func (m *Manager) List(device string) ([]File, error) {
	entries, err := os.ReadDir(m.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, ok := parse(e.Name())
		if !ok || (device != "" && f.Device != sanitize(device)) {
			continue
		}
		f.Path = filepath.Join(m.Dir, e.Name())
		if info, err := e.Info(); err == nil {
			f.Size = info.Size()
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		if !files[i].Taken.Equal(files[j].Taken) {
			return files[i].Taken.Before(files[j].Taken)
		}
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// parse splits "<device>_<YYYYmmdd>_<HHMMSS>.conf".
func parse(name string) (File, bool) {
	if !strings.HasSuffix(name, extension) {
		return File{}, false
	}
	stem := strings.TrimSuffix(name, extension)
	if len(stem) < len(timeLayout)+2 {
		return File{}, false
	}
	cut := len(stem) - len(timeLayout)
	if stem[cut-1] != '_' {
		return File{}, false
	}
	t, err := time.ParseInLocation(timeLayout, stem[cut:], time.Local)
	if err != nil {
		return File{}, false
	}
	return File{Device: stem[:cut-1], Taken: t}, true
}

// Prune removes all but the newest keep backups of device and returns the
// removed paths. keep <= 0 means DefaultKeep.
func (m *Manager) Prune(device string, keep int) ([]string, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}
	files, err := m.List(device)
	if err != nil {
		return nil, err
	}

	// Group per device so an empty device prunes each one independently.
	byDevice := make(map[string][]File)
	for _, f := range files {
		byDevice[f.Device] = append(byDevice[f.Device], f)
	}

	var removed []string
	for _, list := range byDevice {
		if len(list) <= keep {
			continue
		}
		for _, f := range list[:len(list)-keep] {
			if err := os.Remove(f.Path); err != nil {
				return removed, err
			}
			removed = append(removed, f.Path)
		}
	}
	sort.Strings(removed)
	return removed, nil
}
