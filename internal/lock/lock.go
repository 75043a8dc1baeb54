// Package lock provides per-entity mutual exclusion across processes on one
// host. A lock is a file created with O_CREATE|O_EXCL under a shared
// directory; its existence is the lock and its JSON body records the owner.
package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"skrining/pkg/platform/sentinel"
)

// Owner is the informational body of a lock file.
type Owner struct {
	Token      string    `json:"token"`
	PID        int       `json:"pid"`
	Host       string    `json:"host"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// EntityLock guards one (NIK, name) pair. It is not safe for concurrent use
// by multiple goroutines; each worker obtains its own from the Manager.
type EntityLock struct {
	m     *Manager
	key   string
	path  string
	token string
}

// Path is the lock file location.
func (l *EntityLock) Path() string { return l.path }

// Lock attempts a non-blocking acquire. It returns false when another owner
// holds the file. An existing file is never overwritten; a stale one may be
// taken over when the manager allows it.
func (l *EntityLock) Lock() (bool, error) {
	if l.token != "" {
		return true, nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return false, fmt.Errorf("create lock dir: %w", err)
	}

	owner := l.m.newOwner()
	ok, err := l.create(owner)
	if err != nil || ok {
		return ok, err
	}
	if l.m.staleAfter > 0 && l.m.takeOver(l.path) {
		ok, err = l.create(owner)
		if err != nil || ok {
			return ok, err
		}
	}
	l.m.metrics.IncrementLockContention()
	return false, nil
}

func (l *EntityLock) create(owner Owner) (bool, error) {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("create lock %s: %w", l.path, err)
	}
	encErr := json.NewEncoder(f).Encode(owner)
	closeErr := f.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("write lock %s: %w", l.path, err)
	}
	l.token = owner.Token
	l.m.track(l)
	return true, nil
}

// Unlock removes the lock file if this lock still owns it. Unlocking a lock
// that was never acquired is a no-op. A file that now carries a different
// token is left in place and sentinel.ErrNotOwner is returned.
func (l *EntityLock) Unlock() error {
	if l.token == "" {
		return nil
	}
	defer func() {
		l.m.untrack(l)
		l.token = ""
	}()

	owner, err := ReadOwner(l.path)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil
		}
		return err
	}
	if owner.Token != l.token {
		return fmt.Errorf("unlock %s: %w", l.path, sentinel.ErrNotOwner)
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}

// IsLocked reports whether any owner currently holds the file.
func (l *EntityLock) IsLocked() bool {
	_, err := os.Stat(l.path)
	return err == nil
}

// Held reports whether this handle owns the lock.
func (l *EntityLock) Held() bool { return l.token != "" }

// ReadOwner decodes a lock file. A missing file is sentinel.ErrNotFound.
func ReadOwner(path string) (*Owner, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("read lock %s: %w", path, err)
	}
	var o Owner
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode lock %s: %w", path, err)
	}
	return &o, nil
}
