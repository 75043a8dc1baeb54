// Package browser adapts a persistent Chrome profile, driven over the
// DevTools protocol, to the submission.Page and submission.Browser surfaces.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"skrining/internal/platform/config"
	"skrining/internal/submission"
)

var (
	_ submission.Browser = (*Chrome)(nil)
	_ submission.Page    = (*Tab)(nil)
)

// clickTimeout bounds how long Click waits for its target to become visible.
const clickTimeout = 10 * time.Second

// Chrome owns one browser process bound to a user data directory, so portal
// sessions survive restarts.
type Chrome struct {
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	logger        *slog.Logger

	mu   sync.Mutex
	tabs []*Tab
}

type Option func(*Chrome)

func WithLogger(l *slog.Logger) Option {
	return func(c *Chrome) {
		if l != nil {
			c.logger = l
		}
	}
}

// Launch starts Chrome with the configured profile. The returned browser
// outlives ctx only until Close.
func Launch(ctx context.Context, cfg config.Browser, opts ...Option) (*Chrome, error) {
	c := &Chrome{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	if cfg.ProfileDir != "" {
		if err := os.MkdirAll(cfg.ProfileDir, 0o750); err != nil {
			return nil, fmt.Errorf("create browser profile dir: %w", err)
		}
	}
	allocOpts := append(slices.Clone(chromedp.DefaultExecAllocatorOptions[:]),
		chromedp.Flag("headless", cfg.Headless),
		chromedp.WindowSize(1366, 900),
	)
	if cfg.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(cfg.ProfileDir))
	}
	if cfg.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			c.logger.Debug(fmt.Sprintf(format, args...), "component", "chromedp")
		}),
	)
	// the first Run starts the process
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	c.browserCtx = browserCtx
	c.allocCancel = allocCancel
	c.browserCancel = browserCancel
	c.logger.InfoContext(ctx, "browser started", "profile", cfg.ProfileDir, "headless", cfg.Headless)
	return c, nil
}

// NewPage opens a tab in the running browser.
func (c *Chrome) NewPage(ctx context.Context) (submission.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tabCtx, cancel := chromedp.NewContext(c.browserCtx)
	t := &Tab{owner: c, ctx: tabCtx, cancel: cancel, logger: c.logger}
	chromedp.ListenTarget(tabCtx, t.onEvent)
	// the first Run allocates the target; a derived context would close it
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}

	c.mu.Lock()
	c.tabs = append(c.tabs, t)
	c.mu.Unlock()
	return t, nil
}

// Pages returns open tabs, oldest first.
func (c *Chrome) Pages() []submission.Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]submission.Page, len(c.tabs))
	for i, t := range c.tabs {
		out[i] = t
	}
	return out
}

// Close shuts the browser down gracefully, then stops the allocator.
func (c *Chrome) Close() error {
	c.mu.Lock()
	c.tabs = nil
	c.mu.Unlock()

	err := chromedp.Cancel(c.browserCtx)
	c.browserCancel()
	c.allocCancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

func (c *Chrome) forget(t *Tab) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tabs = slices.DeleteFunc(c.tabs, func(x *Tab) bool { return x == t })
}

// Tab is one browser target.
type Tab struct {
	owner  *Chrome
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	once   sync.Once
}

// run executes actions on the tab, cancelled by whichever of ctx or the tab
// ends first. A positive timeout bounds the whole call.
func (t *Tab) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(t.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// onEvent accepts native JavaScript dialogs, which would otherwise block
// every later command on the tab.
func (t *Tab) onEvent(ev any) {
	if d, ok := ev.(*page.EventJavascriptDialogOpening); ok {
		t.logger.Warn("native dialog accepted", "type", d.Type, "message", d.Message)
		go func() {
			if err := chromedp.Run(t.ctx, page.HandleJavaScriptDialog(true)); err != nil {
				t.logger.Warn("accept dialog", "error", err)
			}
		}()
	}
}

func (t *Tab) Navigate(ctx context.Context, url string) error {
	if err := t.run(ctx, 0, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (t *Tab) WaitForSelector(ctx context.Context, selector string, opts submission.WaitOptions) (bool, error) {
	var found bool
	if opts.Timeout <= 0 {
		if err := t.run(ctx, 0, chromedp.Evaluate(probeExpr(selector, opts.Visible), &found)); err != nil {
			return false, fmt.Errorf("probe %s: %w", selector, err)
		}
		return found, nil
	}

	err := t.run(ctx, 0, chromedp.PollFunction(probeJS, &found,
		chromedp.WithPollingArgs(selector, opts.Visible),
		chromedp.WithPollingInterval(100*time.Millisecond),
		chromedp.WithPollingTimeout(opts.Timeout),
	))
	switch {
	case err == nil:
		return found, nil
	case errors.Is(err, chromedp.ErrPollingTimeout):
		return false, nil
	default:
		return false, fmt.Errorf("wait for %s: %w", selector, err)
	}
}

func (t *Tab) SetFieldValue(ctx context.Context, selector, value string) error {
	var ok bool
	if err := t.run(ctx, 0, chromedp.Evaluate(callExpr(setValueJS, selector, value), &ok)); err != nil {
		return fmt.Errorf("set %s: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("set %s: element not found", selector)
	}
	return nil
}

// ReadField returns an input's value, or the visible text of any other
// element. A missing element reads as empty.
func (t *Tab) ReadField(ctx context.Context, selector string) (string, error) {
	var v string
	if err := t.run(ctx, 0, chromedp.Evaluate(callExpr(readJS, selector), &v)); err != nil {
		return "", fmt.Errorf("read %s: %w", selector, err)
	}
	return v, nil
}

func (t *Tab) Click(ctx context.Context, selector string) error {
	if err := t.run(ctx, clickTimeout, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Evaluate runs script, awaiting a returned promise, and decodes the result
// into out. A nil out discards the result.
func (t *Tab) Evaluate(ctx context.Context, script string, out any) error {
	await := func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) }
	if err := t.run(ctx, 0, chromedp.Evaluate(script, out, await)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Screenshot writes a PNG of the full page to path.
func (t *Tab) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	capture := chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	})
	if err := t.run(ctx, 0, capture); err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o600); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// Close closes the tab. It is safe to call more than once.
func (t *Tab) Close() error {
	t.once.Do(func() {
		t.cancel()
		t.owner.forget(t)
	})
	return nil
}

const probeJS = `(sel, visible) => {
	const els = Array.from(document.querySelectorAll(sel));
	if (!visible) return els.length > 0;
	return els.some(el => {
		const style = window.getComputedStyle(el);
		if (style.visibility === 'hidden' || style.display === 'none') return false;
		return !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	});
}`

const setValueJS = `(sel, value) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	if (el.type === 'checkbox' || el.type === 'radio') {
		el.checked = ['1', 'true', 'ya', 'yes', 'on'].includes(String(value).toLowerCase());
	} else if (el.tagName === 'SELECT') {
		const want = String(value).trim().toLowerCase();
		const opt = Array.from(el.options).find(o =>
			o.value.toLowerCase() === want || o.text.trim().toLowerCase() === want);
		el.value = opt ? opt.value : value;
	} else {
		el.value = value;
	}
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
}`

const readJS = `(sel) => {
	const el = document.querySelector(sel);
	if (!el) return '';
	if ('value' in el && el.tagName !== 'BUTTON') return String(el.value);
	return (el.innerText || el.textContent || '').trim();
}`

func probeExpr(selector string, visible bool) string {
	return callExpr(probeJS, selector, visible)
}

// callExpr applies a JS function literal to JSON-encoded arguments.
func callExpr(fn string, args ...any) string {
	encoded := make([]byte, 0, 64)
	for i, a := range args {
		if i > 0 {
			encoded = append(encoded, ',')
		}
		b, err := json.Marshal(a)
		if err != nil {
			b = []byte("null")
		}
		encoded = append(encoded, b...)
	}
	return "(" + fn + ")(" + string(encoded) + ")"
}
