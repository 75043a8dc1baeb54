package geocode

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"skrining/internal/platform/metrics"
	"skrining/pkg/platform/circuit"
)

// Cache is the read-through store consulted before any provider.
type Cache interface {
	Get(keyword string) (*Result, bool, error)
	Put(keyword string, r *Result) error
}

type guardedProvider struct {
	Provider
	breaker *circuit.Breaker
	limiter *rate.Limiter
}

// Chain tries providers in order behind a shared cache.
type Chain struct {
	cache     Cache
	providers []*guardedProvider
	delay     time.Duration
	breaker   []circuit.Option
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// Option configures a Chain.
type Option func(*Chain)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithDelay sets the minimum spacing between two calls to the same provider.
func WithDelay(d time.Duration) Option {
	return func(c *Chain) {
		c.delay = d
	}
}

// WithBreaker tunes the per-provider circuit breakers.
func WithBreaker(opts ...circuit.Option) Option {
	return func(c *Chain) {
		c.breaker = append(c.breaker, opts...)
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Chain) {
		if now != nil {
			c.now = now
		}
	}
}

// NewChain builds a chain. cache may be nil to disable caching.
func NewChain(cache Cache, providers []Provider, opts ...Option) (*Chain, error) {
	if len(providers) == 0 {
		return nil, errors.New("at least one geocode provider is required")
	}
	c := &Chain{
		cache:   cache,
		delay:   time.Second,
		breaker: []circuit.Option{circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)},
		logger:  slog.Default(),
		tracer:  otel.Tracer("skrining/geocode"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	limit := rate.Inf
	if c.delay > 0 {
		limit = rate.Every(c.delay)
	}
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("geocode provider is nil")
		}
		c.providers = append(c.providers, &guardedProvider{
			Provider: p,
			breaker:  circuit.New(p.ID(), c.breaker...),
			limiter:  rate.NewLimiter(limit, 1),
		})
	}
	return c, nil
}

// Resolve returns the first result from cache or providers. When every
// provider fails or finds nothing it returns (nil, nil); only context
// cancellation is reported as an error.
func (c *Chain) Resolve(ctx context.Context, keyword string, opts Options) (*Result, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}

	ctx, span := c.tracer.Start(ctx, "geocode.Resolve", trace.WithAttributes(
		attribute.String("geocode.keyword", keyword),
		attribute.Bool("geocode.skip_cache", opts.SkipCache),
	))
	defer span.End()

	if c.cache != nil && !opts.SkipCache {
		cached, ok, err := c.cache.Get(keyword)
		if err != nil {
			c.logger.WarnContext(ctx, "geocode cache read failed", "keyword", keyword, "error", err)
		}
		c.metrics.IncrementGeocodeCache(ok)
		if ok {
			span.SetAttributes(attribute.String("geocode.provider", "cache"))
			return cached, nil
		}
	}

	for _, p := range c.providers {
		if !p.breaker.Allow() {
			c.logger.DebugContext(ctx, "geocode provider skipped, circuit open", "provider", p.ID())
			c.metrics.IncrementGeocodeRequest(p.ID(), "skipped")
			continue
		}
		if err := p.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return nil, err
		}

		result, err := p.Search(ctx, keyword, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				span.RecordError(ctxErr)
				span.SetStatus(codes.Error, "cancelled")
				return nil, ctxErr
			}
			c.metrics.IncrementGeocodeRequest(p.ID(), string(CategoryOf(err)))
			c.recordFailure(ctx, p, err)
			continue
		}

		c.metrics.IncrementGeocodeRequest(p.ID(), "ok")
		if _, change := p.breaker.RecordSuccess(); change.Closed {
			c.logger.InfoContext(ctx, "geocode provider recovered", "provider", p.ID())
			c.metrics.IncrementBreakerTransition(p.ID(), circuit.StateClosed.String())
		}

		result.Keyword = keyword
		result.Provider = p.ID()
		result.ResolvedAt = c.now()
		if c.cache != nil {
			if err := c.cache.Put(keyword, result); err != nil {
				c.logger.WarnContext(ctx, "geocode cache write failed", "keyword", keyword, "error", err)
			}
		}
		span.SetAttributes(attribute.String("geocode.provider", p.ID()))
		return result, nil
	}

	c.logger.InfoContext(ctx, "geocode exhausted all providers", "keyword", keyword)
	span.SetAttributes(attribute.Bool("geocode.exhausted", true))
	return nil, nil
}

func (c *Chain) recordFailure(ctx context.Context, p *guardedProvider, err error) {
	level := slog.LevelWarn
	if CategoryOf(err) == ErrorNotFound {
		level = slog.LevelDebug
	}
	c.logger.Log(ctx, level, "geocode provider failed", "provider", p.ID(), "category", CategoryOf(err), "error", err)

	if !countsAgainstBreaker(err) {
		return
	}
	if _, change := p.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "geocode provider circuit opened", "provider", p.ID())
		c.metrics.IncrementBreakerTransition(p.ID(), circuit.StateOpen.String())
	}
}
