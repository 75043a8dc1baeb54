package geocode

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"skrining/internal/platform/metrics"
	"skrining/pkg/platform/circuit"
)

// stubProvider answers from a scripted function and counts calls.
type stubProvider struct {
	id    string
	mu    sync.Mutex
	calls []string
	fn    func(keyword string) (*Result, error)
}

func (s *stubProvider) ID() string { return s.id }

func (s *stubProvider) Search(_ context.Context, keyword string, _ Options) (*Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, keyword)
	s.mu.Unlock()
	return s.fn(keyword)
}

func (s *stubProvider) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func found(id, province string) func(string) (*Result, error) {
	return func(string) (*Result, error) {
		return &Result{Province: province, FullAddress: province + ", Indonesia"}, nil
	}
}

func failing(id string, category ErrorCategory) func(string) (*Result, error) {
	return func(string) (*Result, error) {
		return nil, NewProviderError(category, id, "scripted", nil)
	}
}

// ChainSuite exercises fallback order, caching and breaker behaviour.
//
// Justification for unit tests: provider ordering and cache bypass are the
// observable contract of Resolve and must hold without network access.
type ChainSuite struct {
	suite.Suite
	cache     *FileCache
	primary   *stubProvider
	secondary *stubProvider
	metrics   *metrics.Metrics
	now       time.Time
}

func TestChainSuite(t *testing.T) {
	suite.Run(t, new(ChainSuite))
}

func (s *ChainSuite) SetupTest() {
	var err error
	s.cache, err = NewFileCache(s.T().TempDir())
	s.Require().NoError(err)
	s.primary = &stubProvider{id: "locationiq"}
	s.secondary = &stubProvider{id: "nominatim"}
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2025, 2, 3, 9, 0, 0, 0, time.UTC)
}

func (s *ChainSuite) newChain(opts ...Option) *Chain {
	base := []Option{
		WithDelay(0),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	}
	c, err := NewChain(s.cache, []Provider{s.primary, s.secondary}, append(base, opts...)...)
	s.Require().NoError(err)
	return c
}

// =============================================================================
// Fallback order
// =============================================================================

func (s *ChainSuite) TestPrimaryAnswers() {
	s.primary.fn = found("locationiq", "Jawa Timur")
	s.secondary.fn = found("nominatim", "DKI Jakarta")

	res, err := s.newChain().Resolve(context.Background(), "Gubeng", Options{})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	s.Equal("Jawa Timur", res.Province)
	s.Equal("locationiq", res.Provider)
	s.Equal("Gubeng", res.Keyword)
	s.Equal(s.now, res.ResolvedAt)
	s.Equal(0, s.secondary.callCount())
}

func (s *ChainSuite) TestSecondaryConsultedWhenPrimaryEmpty() {
	s.primary.fn = failing("locationiq", ErrorNotFound)
	s.secondary.fn = found("nominatim", "Jawa Timur")

	res, err := s.newChain().Resolve(context.Background(), "Gubeng", Options{})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	s.Equal("nominatim", res.Provider)
	s.Equal(1, s.primary.callCount())
	s.Equal(1, s.secondary.callCount())
}

func (s *ChainSuite) TestExhaustedReturnsNothing() {
	s.primary.fn = failing("locationiq", ErrorProviderOutage)
	s.secondary.fn = failing("nominatim", ErrorNotFound)

	res, err := s.newChain().Resolve(context.Background(), "Atlantis", Options{})
	s.NoError(err)
	s.Nil(res)

	_, ok, err := s.cache.Get("Atlantis")
	s.NoError(err)
	s.False(ok, "failures are not cached")
}

func (s *ChainSuite) TestEmptyKeyword() {
	res, err := s.newChain().Resolve(context.Background(), "   ", Options{})
	s.NoError(err)
	s.Nil(res)
	s.Equal(0, s.primary.callCount())
}

// =============================================================================
// Cache
// =============================================================================

func (s *ChainSuite) TestCacheHitBypassesProviders() {
	s.primary.fn = failing("locationiq", ErrorProviderOutage)
	s.secondary.fn = found("nominatim", "Jawa Timur")
	chain := s.newChain()

	_, err := chain.Resolve(context.Background(), "Gubeng", Options{})
	s.Require().NoError(err)
	s.Equal(1, s.secondary.callCount())

	res, err := chain.Resolve(context.Background(), "gubeng", Options{})
	s.Require().NoError(err)
	s.Require().NotNil(res)
	s.Equal("nominatim", res.Provider)
	s.Equal(1, s.primary.callCount())
	s.Equal(1, s.secondary.callCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.GeocodeCache.WithLabelValues("hit")))
}

func (s *ChainSuite) TestSkipCacheStillWrites() {
	require.NoError(s.T(), s.cache.Put("Gubeng", &Result{Province: "stale", Provider: "locationiq"}))
	s.primary.fn = found("locationiq", "Jawa Timur")

	res, err := s.newChain().Resolve(context.Background(), "Gubeng", Options{SkipCache: true})
	s.Require().NoError(err)
	s.Equal("Jawa Timur", res.Province)

	cached, ok, err := s.cache.Get("Gubeng")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("Jawa Timur", cached.Province)
}

// =============================================================================
// Breaker and throttle
// =============================================================================

func (s *ChainSuite) TestOpenBreakerSkipsProvider() {
	s.primary.fn = failing("locationiq", ErrorProviderOutage)
	s.secondary.fn = found("nominatim", "Jawa Timur")
	chain := s.newChain(WithBreaker(circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour)))

	for _, kw := range []string{"a", "b", "c", "d"} {
		_, err := chain.Resolve(context.Background(), kw, Options{SkipCache: true})
		s.Require().NoError(err)
	}

	s.Equal(2, s.primary.callCount(), "primary skipped once its circuit opened")
	s.Equal(4, s.secondary.callCount())
	s.Equal(1.0, testutil.ToFloat64(s.metrics.BreakerTransition.WithLabelValues("locationiq", "open")))
}

func (s *ChainSuite) TestNotFoundDoesNotTripBreaker() {
	s.primary.fn = failing("locationiq", ErrorNotFound)
	s.secondary.fn = found("nominatim", "Jawa Timur")
	chain := s.newChain(WithBreaker(circuit.WithFailureThreshold(1)))

	for _, kw := range []string{"a", "b", "c"} {
		_, err := chain.Resolve(context.Background(), kw, Options{SkipCache: true})
		s.Require().NoError(err)
	}
	s.Equal(3, s.primary.callCount())
}

func (s *ChainSuite) TestDelaySpacesProviderCalls() {
	s.primary.fn = found("locationiq", "Jawa Timur")
	chain := s.newChain(WithDelay(50 * time.Millisecond))

	start := time.Now()
	for _, kw := range []string{"a", "b", "c"} {
		_, err := chain.Resolve(context.Background(), kw, Options{SkipCache: true})
		s.Require().NoError(err)
	}
	s.GreaterOrEqual(time.Since(start), 90*time.Millisecond)
}

func (s *ChainSuite) TestCancelledContext() {
	s.primary.fn = found("locationiq", "Jawa Timur")
	chain := s.newChain(WithDelay(time.Hour))

	_, err := chain.Resolve(context.Background(), "first", Options{SkipCache: true})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = chain.Resolve(ctx, "second", Options{SkipCache: true})
	s.Error(err)
}

func TestNewChain_RequiresProvider(t *testing.T) {
	_, err := NewChain(nil, nil)
	require.Error(t, err)
}
