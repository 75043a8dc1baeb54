package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"skrining/internal/platform/metrics"
	strutil "skrining/pkg/platform/strings"
)

// Manager hands out entity locks under one directory and remembers which
// ones this process holds so they can be released on shutdown.
type Manager struct {
	dir        string
	staleAfter time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
	host       string
	pid        int

	mu   sync.Mutex
	held map[*EntityLock]struct{}
}

type Option func(*Manager)

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(mx *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mx }
}

// WithStaleAfter enables takeover of lock files older than d. Zero disables
// takeover.
func WithStaleAfter(d time.Duration) Option {
	return func(m *Manager) { m.staleAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(dir string, opts ...Option) *Manager {
	if dir == "" {
		dir = ".locks"
	}
	host, _ := os.Hostname()
	m := &Manager{
		dir:    dir,
		logger: slog.Default(),
		now:    time.Now,
		host:   host,
		pid:    os.Getpid(),
		held:   make(map[*EntityLock]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// For returns an unacquired lock for the (NIK, name) pair.
func (m *Manager) For(nik, name string) *EntityLock {
	key := FileName(nik, name)
	return &EntityLock{m: m, key: key, path: filepath.Join(m.dir, key)}
}

// FileName is the lock file name for an entity.
func FileName(nik, name string) string {
	slug := strutil.Slug(name)
	if slug == "" {
		slug = "anon"
	}
	return strutil.DigitsOnly(nik) + "_" + slug + ".lock"
}

// Held returns the number of locks this process currently owns.
func (m *Manager) Held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held)
}

// ReleaseAll unlocks everything this process holds. It is called from
// signal handling and deferred in main.
func (m *Manager) ReleaseAll() error {
	m.mu.Lock()
	locks := make([]*EntityLock, 0, len(m.held))
	for l := range m.held {
		locks = append(locks, l)
	}
	m.mu.Unlock()

	var errs []error
	for _, l := range locks {
		if err := l.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(locks) > 0 {
		m.logger.Info("released entity locks", "count", len(locks), "errors", len(errs))
	}
	return errors.Join(errs...)
}

func (m *Manager) newOwner() Owner {
	return Owner{
		Token:      uuid.NewString(),
		PID:        m.pid,
		Host:       m.host,
		AcquiredAt: m.now().UTC(),
	}
}

func (m *Manager) track(l *EntityLock) {
	m.mu.Lock()
	m.held[l] = struct{}{}
	m.mu.Unlock()
}

func (m *Manager) untrack(l *EntityLock) {
	m.mu.Lock()
	delete(m.held, l)
	m.mu.Unlock()
}

// takeOver moves a stale lock aside. The file is renamed rather than removed
// so a concurrent fresh acquire that lands between the stale check and the
// rename can be put back.
func (m *Manager) takeOver(path string) bool {
	owner, err := ReadOwner(path)
	if err != nil {
		return false
	}
	if m.now().Sub(owner.AcquiredAt) < m.staleAfter {
		return false
	}
	aside := fmt.Sprintf("%s.stale-%s", path, owner.Token)
	if err := os.Rename(path, aside); err != nil {
		return false
	}
	moved, err := ReadOwner(aside)
	if err != nil || moved.Token != owner.Token {
		// not the file we judged stale; restore without clobbering
		if linkErr := os.Link(aside, path); linkErr != nil && !errors.Is(linkErr, fs.ErrExist) {
			m.logger.Warn("restore lock after takeover race", "path", path, "error", linkErr)
		}
		_ = os.Remove(aside)
		return false
	}
	_ = os.Remove(aside)
	m.logger.Warn("took over stale entity lock",
		"path", path,
		"previous_pid", owner.PID,
		"previous_host", owner.Host,
		"acquired_at", owner.AcquiredAt,
	)
	return true
}
