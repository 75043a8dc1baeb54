// Package batch feeds records to the submission engine one at a time and
// decides, per outcome, whether to continue, retry or halt.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	"skrining/internal/normalize"
	"skrining/internal/platform/metrics"
	"skrining/internal/submission"
)

// ErrHalted wraps the outcome that stopped a batch.
var ErrHalted = errors.New("batch halted")

// Processor is the engine surface the runner needs.
type Processor interface {
	Process(ctx context.Context, s *submission.Session, raw domain.RawRecord) (submission.Outcome, error)
}

// Options select and order the records of one run.
type Options struct {
	// NIK restricts the run to rows with this NIK.
	NIK string
	// Single stops after the first record that is not a duplicate.
	Single bool
	// Shuffle randomizes order before prioritization.
	Shuffle bool
	// PrioritizeStale moves rows whose latest log entry is not a success to
	// the front, oldest entry first.
	PrioritizeStale bool
	// Retries bounds re-runs of a record after navigation_failed.
	Retries int
}

// Summary counts outcomes of one run.
type Summary struct {
	Total    int
	Counts   map[submission.Kind]int
	Retries  int
	Started  time.Time
	Finished time.Time
}

func (s Summary) Count(k submission.Kind) int { return s.Counts[k] }

type Runner struct {
	engine  Processor
	store   logstore.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	rng     *rand.Rand
	now     func() time.Time
}

type Option func(*Runner)

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

func WithRand(rng *rand.Rand) Option {
	return func(r *Runner) {
		if rng != nil {
			r.rng = rng
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRunner(engine Processor, store logstore.Store, opts ...Option) *Runner {
	r := &Runner{
		engine: engine,
		store:  store,
		logger: slog.Default(),
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes records sequentially within one session. It returns an
// error wrapping ErrHalted on a fatal outcome, the engine's error on an
// unexpected failure, or ctx.Err() when cancelled between records. The
// summary is valid in every case.
func (r *Runner) Run(ctx context.Context, s *submission.Session, records []domain.RawRecord, opts Options) (Summary, error) {
	sum := Summary{Counts: make(map[submission.Kind]int), Started: r.now()}

	ordered, err := r.order(ctx, records, opts)
	if err != nil {
		return sum, err
	}
	r.logger.InfoContext(ctx, "batch started", "records", len(ordered), "input", len(records))

	for i, raw := range ordered {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, sum, err)
		}
		out, err := r.processWithRetry(ctx, s, raw, opts.Retries, &sum)
		if err != nil {
			return r.finish(ctx, sum, fmt.Errorf("record %d: %w", i+1, err))
		}
		sum.Total++
		sum.Counts[out.Kind]++
		if out.Fatal() {
			return r.finish(ctx, sum, fmt.Errorf("%w: %s", ErrHalted, out))
		}
		if opts.Single && out.Kind != submission.KindDuplicate {
			break
		}
	}
	return r.finish(ctx, sum, nil)
}

func (r *Runner) processWithRetry(ctx context.Context, s *submission.Session, raw domain.RawRecord, retries int, sum *Summary) (submission.Outcome, error) {
	for attempt := 0; ; attempt++ {
		out, err := r.engine.Process(ctx, s, raw)
		if err != nil || !out.Retryable() || attempt >= retries {
			return out, err
		}
		if ctx.Err() != nil {
			return out, nil
		}
		sum.Retries++
		r.metrics.IncrementBatchRetries()
		r.logger.WarnContext(ctx, "retrying record", "nik", out.NIK, "attempt", attempt+2, "detail", out.Detail)
	}
}

func (r *Runner) finish(ctx context.Context, sum Summary, err error) (Summary, error) {
	sum.Finished = r.now()
	attrs := []any{"total", sum.Total, "retries", sum.Retries, "elapsed", sum.Finished.Sub(sum.Started).String()}
	for _, k := range sortedKinds(sum.Counts) {
		attrs = append(attrs, string(k), sum.Counts[k])
	}
	if err != nil {
		r.logger.ErrorContext(ctx, "batch stopped", append(attrs, "error", err)...)
		return sum, err
	}
	r.logger.InfoContext(ctx, "batch finished", attrs...)
	return sum, nil
}

func sortedKinds(m map[submission.Kind]int) []submission.Kind {
	kinds := make([]submission.Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// order applies the NIK filter, shuffle and stale prioritization.
func (r *Runner) order(ctx context.Context, records []domain.RawRecord, opts Options) ([]domain.RawRecord, error) {
	out := make([]domain.RawRecord, 0, len(records))
	for _, raw := range records {
		if opts.NIK != "" {
			if id, _ := normalize.Key(raw); id != opts.NIK {
				continue
			}
		}
		out = append(out, raw)
	}
	if opts.Shuffle {
		r.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	if !opts.PrioritizeStale {
		return out, nil
	}

	stale, err := r.store.GetLogs(ctx, logstore.NotStatus(domain.LogStatusSuccess))
	if err != nil {
		return nil, fmt.Errorf("load stale entries: %w", err)
	}
	lastSeen := make(map[string]time.Time, len(stale))
	for _, e := range stale {
		lastSeen[e.ID] = e.Timestamp
	}
	slices.SortStableFunc(out, func(a, b domain.RawRecord) int {
		ia, _ := normalize.Key(a)
		ib, _ := normalize.Key(b)
		ta, sa := lastSeen[ia]
		tb, sb := lastSeen[ib]
		switch {
		case sa && sb:
			return ta.Compare(tb)
		case sa:
			return -1
		case sb:
			return 1
		}
		return 0
	})
	return out, nil
}
