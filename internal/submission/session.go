package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"skrining/internal/platform/config"
)

// ErrUnauthorized means the portal rejected the configured credentials. No
// further record can be submitted without a new session.
var ErrUnauthorized = errors.New("portal login rejected")

const defaultMaxOpenPages = 3

// Session is the explicit browser-plus-login handle. main creates it, the
// batch runner owns it and passes it into every Engine.Process call.
type Session struct {
	browser  Browser
	portal   config.Portal
	logger   *slog.Logger
	page     Page
	loggedIn bool
	seen     map[string]struct{}
}

type SessionOption func(*Session)

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewSession(browser Browser, portal config.Portal, opts ...SessionOption) *Session {
	s := &Session{
		browser: browser,
		portal:  portal,
		logger:  slog.Default(),
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Page returns the working page, opening one if needed. Pages beyond the
// configured maximum are closed oldest first.
func (s *Session) Page(ctx context.Context) (Page, error) {
	if s.page == nil {
		p, err := s.browser.NewPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("open page: %w", err)
		}
		s.page = p
	}
	s.trimPages()
	return s.page, nil
}

func (s *Session) trimPages() {
	limit := s.portal.MaxOpenPages
	if limit <= 0 {
		limit = defaultMaxOpenPages
	}
	pages := s.browser.Pages()
	excess := len(pages) - limit
	for _, p := range pages {
		if excess <= 0 {
			break
		}
		if p == s.page {
			continue
		}
		if err := p.Close(); err != nil {
			s.logger.Warn("close surplus page", "error", err)
		}
		excess--
	}
}

// LoggedIn reports whether the session believes it is authenticated.
func (s *Session) LoggedIn() bool { return s.loggedIn }

// Invalidate forces a fresh login before the next record.
func (s *Session) Invalidate() {
	s.loggedIn = false
}

// Login authenticates on page. A persisted profile may already be logged
// in, in which case no credentials are typed. Navigation problems are
// returned as plain errors; rejected credentials wrap ErrUnauthorized.
func (s *Session) Login(ctx context.Context, page Page, sel Selectors) error {
	if err := page.Navigate(ctx, s.url(s.portal.LoginPath)); err != nil {
		return fmt.Errorf("open login page: %w", err)
	}
	wait := WaitOptions{Timeout: 10 * time.Second, Visible: true}
	in, err := page.WaitForSelector(ctx, sel.Get(SelLoggedIn), WaitOptions{Timeout: 2 * time.Second, Visible: true})
	if err != nil {
		return fmt.Errorf("probe login state: %w", err)
	}
	if in {
		s.loggedIn = true
		return nil
	}

	if s.portal.Username == "" || s.portal.Password == "" {
		return fmt.Errorf("%w: PORTAL_USERNAME and PORTAL_PASSWORD are not set", ErrUnauthorized)
	}
	form, err := page.WaitForSelector(ctx, sel.Get(SelLoginUsername), wait)
	if err != nil {
		return fmt.Errorf("wait for login form: %w", err)
	}
	if !form {
		return fmt.Errorf("login form did not appear")
	}
	steps := []func() error{
		func() error { return page.SetFieldValue(ctx, sel.Get(SelLoginUsername), s.portal.Username) },
		func() error { return page.SetFieldValue(ctx, sel.Get(SelLoginPassword), s.portal.Password) },
		func() error { return page.Click(ctx, sel.Get(SelLoginSubmit)) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return fmt.Errorf("submit login form: %w", err)
		}
	}
	in, err = page.WaitForSelector(ctx, sel.Get(SelLoggedIn), wait)
	if err != nil {
		return fmt.Errorf("wait for login: %w", err)
	}
	if !in {
		return fmt.Errorf("%w: no logged-in marker after submitting credentials", ErrUnauthorized)
	}
	s.loggedIn = true
	s.logger.InfoContext(ctx, "portal login succeeded", "user", s.portal.Username)
	return nil
}

// seenThisRun records NIKs that reached the portal in this run so a second
// row for the same NIK never opens the form again.
func (s *Session) seenThisRun(nik string) bool {
	_, ok := s.seen[nik]
	return ok
}

func (s *Session) markSeen(nik string) {
	s.seen[nik] = struct{}{}
}

func (s *Session) url(path string) string {
	return strings.TrimRight(s.portal.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
