// Package submission drives one normalized record through the screening
// portal and classifies what happened.
//
// Process runs, in order: key extraction, dedup against the log store,
// normalization, entity lock, dedup re-check under the lock, the portal
// state machine, outcome persistence and unlock. Every terminal outcome is
// written to the log store before Process returns, so a crashed run resumes
// through dedup without resubmitting.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skrining/internal/domain"
	"skrining/internal/lock"
	"skrining/internal/logstore"
	"skrining/internal/normalize"
	"skrining/internal/platform/config"
	"skrining/internal/platform/metrics"
	dErrors "skrining/pkg/domain-errors"
	"skrining/pkg/nik"
	"skrining/pkg/platform/sentinel"
)

const (
	defaultSuccessTimeout = 3 * time.Minute
	defaultPollInterval   = time.Second
	defaultAlertCycles    = 3
	persistTimeout        = 10 * time.Second
)

// Engine is the submission state machine. It holds no per-record state; the
// Session carries the browser and login state between records.
type Engine struct {
	normalizer    Normalizer
	store         logstore.Store
	locks         *lock.Manager
	operator      Operator
	current       atomic.Pointer[settings]
	screenshotDir string
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type Option func(*Engine)

// WithOperator sets the human escalation point. Without one, every
// escalation is treated as a rejection.
func WithOperator(op Operator) Option {
	return func(e *Engine) { e.operator = op }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithScreenshotDir enables failure screenshots.
func WithScreenshotDir(dir string) Option {
	return func(e *Engine) { e.screenshotDir = dir }
}

func NewEngine(n Normalizer, store logstore.Store, locks *lock.Manager, portal config.Portal, opts ...Option) *Engine {
	e := &Engine{
		normalizer: n,
		store:      store,
		locks:      locks,
		logger:     slog.Default(),
		tracer:     otel.Tracer("skrining/submission"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reconfigure(portal)
	return e
}

// settings is the portal configuration one record is processed with.
type settings struct {
	portal    config.Portal
	selectors Selectors
	defaults  map[string]string
}

// Reconfigure swaps portal settings, e.g. after the config file changed. A
// record already in flight keeps the settings it started with; it is safe to
// call concurrently with Process.
func (e *Engine) Reconfigure(portal config.Portal) {
	if portal.SuccessTimeout <= 0 {
		portal.SuccessTimeout = defaultSuccessTimeout
	}
	if portal.PollInterval <= 0 {
		portal.PollInterval = defaultPollInterval
	}
	if portal.MaxAlertCycles <= 0 {
		portal.MaxAlertCycles = defaultAlertCycles
	}
	e.current.Store(&settings{
		portal:    portal,
		selectors: NewSelectors(portal.Selectors),
		defaults:  maps.Clone(portal.Defaults),
	})
}

// Process handles one raw record. The returned error is non-nil only for
// conditions the outcome taxonomy does not cover; callers halt on it.
func (e *Engine) Process(ctx context.Context, s *Session, raw domain.RawRecord) (Outcome, error) {
	start := e.now()
	id, _ := normalize.Key(raw)
	ctx, span := e.tracer.Start(ctx, "submission.Process", trace.WithAttributes(
		attribute.String("submission.nik", id),
	))
	defer span.End()

	out, err := e.process(ctx, s, raw, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected")
		e.metrics.ObserveOutcome("unexpected", e.now().Sub(start))
		e.logger.ErrorContext(ctx, "record failed unexpectedly", "nik", id, "error", err)
		return out, err
	}
	span.SetAttributes(attribute.String("submission.outcome", string(out.Kind)))
	e.metrics.ObserveOutcome(string(out.Kind), e.now().Sub(start))
	e.logger.InfoContext(ctx, "record processed",
		"nik", id,
		"outcome", string(out.Kind),
		"reason", out.Reason,
		"detail", out.Detail,
	)
	return out, nil
}

func (e *Engine) process(ctx context.Context, s *Session, raw domain.RawRecord, id string) (Outcome, error) {
	var prev *domain.LogEntry
	if len(id) == nik.Length {
		if s.seenThisRun(id) {
			return Outcome{Kind: KindDuplicate, NIK: id, Reason: string(KindDuplicate), Detail: "already processed in this run"}, nil
		}
		latest, err := e.latest(ctx, id)
		if err != nil {
			return Outcome{NIK: id}, err
		}
		if latest.IsSuccess() {
			return Outcome{Kind: KindDuplicate, NIK: id, Reason: string(KindDuplicate), Detail: "already submitted"}, nil
		}
		prev = latest
	}

	entity, err := e.normalizer.Normalize(ctx, raw)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeValidation) {
			return Outcome{NIK: id}, fmt.Errorf("normalize %s: %w", id, err)
		}
		out := invalidOutcome(id, err)
		return out, e.persist(ctx, out, prev)
	}

	l := e.locks.For(entity.NIK, entity.Name)
	held, err := l.Lock()
	if err != nil {
		return Outcome{NIK: id, Entity: entity}, fmt.Errorf("lock %s: %w", id, err)
	}
	if !held {
		out := outcome(KindLocked, entity, "another process holds "+filepath.Base(l.Path()))
		latest, err := e.latest(ctx, id)
		if err != nil {
			return out, err
		}
		if latest.IsSuccess() {
			return out, nil
		}
		return out, e.persist(ctx, out, latest)
	}
	defer func() {
		if err := l.Unlock(); err != nil {
			e.logger.WarnContext(ctx, "release entity lock", "nik", id, "error", err)
		}
	}()

	latest, err := e.latest(ctx, id)
	if err != nil {
		return Outcome{NIK: id, Entity: entity}, err
	}
	if latest.IsSuccess() {
		return outcome(KindDuplicate, entity, "submitted by another process"), nil
	}

	out, err := e.drive(ctx, s, e.current.Load(), entity)
	if err != nil {
		s.markSeen(id)
		e.screenshot(ctx, s, id, "unexpected")
		entry := domain.LogEntry{
			ID:        id,
			Status:    domain.LogStatusError,
			Reason:    "unexpected_error",
			Message:   err.Error(),
			Timestamp: e.now().UTC(),
			Attempt:   nextAttempt(latest),
			Payload:   entity,
		}
		if perr := e.record(ctx, entry); perr != nil {
			err = errors.Join(err, perr)
		}
		return Outcome{NIK: id, Entity: entity}, err
	}

	switch out.Kind {
	case KindNavigationFailed, KindUnauthorized:
	default:
		s.markSeen(id)
	}
	if out.Kind == KindSessionExpired {
		s.Invalidate()
	}
	if status, ok := out.Kind.LogStatus(); ok && status == domain.LogStatusError {
		e.screenshot(ctx, s, id, string(out.Kind))
	}
	return out, e.persist(ctx, out, latest)
}

func invalidOutcome(id string, err error) Outcome {
	reason := dErrors.ReasonOf(err)
	kind := KindInvalid
	if reason == normalize.ReasonNIKLength {
		kind = KindInvalidNIKLength
	}
	if reason == "" {
		reason = string(kind)
	}
	return Outcome{Kind: kind, NIK: id, Reason: reason, Detail: err.Error()}
}

func (e *Engine) latest(ctx context.Context, id string) (*domain.LogEntry, error) {
	entry, err := e.store.GetLogByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("read log for %s: %w", id, err)
	}
	return entry, nil
}

func nextAttempt(prev *domain.LogEntry) int {
	if prev == nil {
		return 1
	}
	return prev.Attempt + 1
}

// persist writes a terminal outcome. Kinds without a log status and rows
// without a usable NIK are skipped.
func (e *Engine) persist(ctx context.Context, out Outcome, prev *domain.LogEntry) error {
	status, ok := out.Kind.LogStatus()
	if !ok || out.NIK == "" {
		return nil
	}
	return e.record(ctx, domain.LogEntry{
		ID:         out.NIK,
		Status:     status,
		Reason:     out.Reason,
		Message:    out.Detail,
		Registered: out.Kind == KindSuccess,
		Timestamp:  e.now().UTC(),
		Attempt:    nextAttempt(prev),
		Payload:    out.Entity,
	})
}

// record survives cancellation of ctx so an interrupted run still leaves
// its last outcome behind.
func (e *Engine) record(ctx context.Context, entry domain.LogEntry) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	if err := e.store.AddLog(ctx, entry); err != nil {
		return fmt.Errorf("persist outcome for %s: %w", entry.ID, err)
	}
	return nil
}

func (e *Engine) screenshot(ctx context.Context, s *Session, id, label string) {
	if e.screenshotDir == "" || s.page == nil {
		return
	}
	name := fmt.Sprintf("%s_%s_%s.png", id, label, e.now().Format("20060102T150405"))
	path := filepath.Join(e.screenshotDir, name)
	if err := s.page.Screenshot(context.WithoutCancel(ctx), path); err != nil {
		e.logger.WarnContext(ctx, "failure screenshot", "nik", id, "path", path, "error", err)
	}
}
