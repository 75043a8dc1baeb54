package geocode

import (
	"context"
	"math/rand/v2"
	"net/url"
	"sync"
)

// LocationIQ is the primary provider. Each request draws its API key at
// random from the pool to spread quota usage.
type LocationIQ struct {
	*httpSearch
	keys []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewLocationIQ builds the provider. An empty key pool is allowed; the
// service then rejects requests and the chain moves on.
func NewLocationIQ(baseURL string, keys []string, rng *rand.Rand, opts ...ProviderOption) *LocationIQ {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &LocationIQ{
		httpSearch: newHTTPSearch("locationiq", baseURL, opts),
		keys:       keys,
		rng:        rng,
	}
}

func (l *LocationIQ) ID() string { return l.id }

func (l *LocationIQ) Search(ctx context.Context, keyword string, opts Options) (*Result, error) {
	extra := url.Values{}
	if key := l.pickKey(); key != "" {
		extra.Set("key", key)
	}
	return l.search(ctx, keyword, opts, extra)
}

func (l *LocationIQ) pickKey() string {
	if len(l.keys) == 0 {
		return ""
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.keys[l.rng.IntN(len(l.keys))]
}
