// Package runlock provides operator-level mutual exclusion on a device group,
// so two runs never push to the same pair at once. It is independent of the
// device's own configuration lock.
package runlock

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"

	"github.com/pairpush/pairpush/pkg/util"
)

// Release gives a held lock back. It is safe to call more than once.
type Release func() error

// Locker acquires a run lock for a group without waiting. A group already
// held by someone else yields a *util.LockedError.
type Locker interface {
	Acquire(ctx context.Context, group, holder string) (Release, error)
}

// Holder returns the identity recorded with a lock: user@host/<run-id>.
func Holder(runID string) string {
	name := "unknown"
	if u, err := user.Current(); err == nil {
		name = u.Username
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return fmt.Sprintf("%s@%s/%s", name, host, runID)
}

// FileLocker locks groups with advisory file locks in Dir.
type FileLocker struct {
	Dir string
}

// NewFileLocker returns a FileLocker for dir; "~" is expanded.
func NewFileLocker(dir string) (*FileLocker, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, err
	}
	return &FileLocker{Dir: expanded}, nil
}

func (l *FileLocker) paths(group string) (lock, holder string) {
	base := filepath.Join(l.Dir, strings.ReplaceAll(group, string(filepath.Separator), "_"))
	return base + ".lock", base + ".holder"
}

// Acquire takes the lock file for group.
func (l *FileLocker) Acquire(ctx context.Context, group, holder string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lockPath, holderPath := l.paths(group)
	fl := flock.New(lockPath)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking group %s: %w", group, err)
	}
	if !locked {
		current, _ := os.ReadFile(holderPath)
		return nil, &util.LockedError{Group: group, Holder: strings.TrimSpace(string(current))}
	}

	if err := os.WriteFile(holderPath, []byte(holder+"\n"), 0644); err != nil {
		util.WithGroup(group).Debugf("recording lock holder: %v", err)
	}
	util.WithGroup(group).WithField("holder", holder).Debug("run lock acquired")

	released := false
	return func() error {
		if released {
			return nil
		}
		released = true
		os.Remove(holderPath)
		return fl.Unlock()
	}, nil
}

// Nop is a Locker that always succeeds. It is used for dry runs.
type Nop struct{}

// Acquire implements Locker.
func (Nop) Acquire(context.Context, string, string) (Release, error) {
	return func() error { return nil }, nil
}
