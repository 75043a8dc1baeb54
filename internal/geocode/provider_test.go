package geocode

import (
	"context"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gubengPlace = `[{
	"lat": "-7.2653",
	"lon": "112.7520",
	"display_name": "Airlangga, Gubeng, Surabaya, Jawa Timur, Indonesia",
	"address": {
		"suburb": "Airlangga",
		"city_district": "Gubeng",
		"city": "Surabaya",
		"state": "Jawa Timur",
		"country_code": "id"
	}
}]`

// providerContract runs the same expectations against every HTTP provider.
func providerContract(t *testing.T, build func(baseURL string) Provider) {
	t.Run("decodes the first place", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Gubeng Surabaya", r.URL.Query().Get("q"))
			assert.Equal(t, "json", r.URL.Query().Get("format"))
			assert.Equal(t, "id", r.URL.Query().Get("countrycodes"))
			assert.NotEmpty(t, r.Header.Get("User-Agent"))
			_, _ = w.Write([]byte(gubengPlace))
		}))
		defer srv.Close()

		res, err := build(srv.URL).Search(context.Background(), "Gubeng Surabaya", Options{CountryCode: "ID"})
		require.NoError(t, err)
		assert.Equal(t, "Jawa Timur", res.Province)
		assert.Equal(t, "Surabaya", res.Regency)
		assert.Equal(t, "Gubeng", res.District)
		assert.Equal(t, "Airlangga", res.Village)
		assert.InDelta(t, -7.2653, res.Latitude, 1e-6)
		assert.NotEmpty(t, res.Raw)
	})

	errorCases := []struct {
		name      string
		status    int
		body      string
		category  ErrorCategory
		retryable bool
	}{
		{"empty result", http.StatusOK, `[]`, ErrorNotFound, false},
		{"not found status", http.StatusNotFound, `{"error":"Unable to geocode"}`, ErrorNotFound, false},
		{"bad key", http.StatusUnauthorized, `{"error":"Invalid key"}`, ErrorAuthentication, false},
		{"rate limited", http.StatusTooManyRequests, ``, ErrorRateLimited, true},
		{"outage", http.StatusBadGateway, ``, ErrorProviderOutage, true},
		{"garbage", http.StatusOK, `<html>`, ErrorBadData, false},
		{"bad coordinates", http.StatusOK, `[{"lat":"x","lon":"1"}]`, ErrorBadData, false},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := build(srv.URL).Search(context.Background(), "nowhere", Options{})
			require.Error(t, err)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tc.category, pe.Category)
			assert.Equal(t, tc.retryable, pe.Retryable)
		})
	}

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(gubengPlace))
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := build(srv.URL).Search(ctx, "slow", Options{})
		assert.Equal(t, ErrorTimeout, CategoryOf(err))
	})
}

func TestNominatimContract(t *testing.T) {
	providerContract(t, func(baseURL string) Provider {
		return NewNominatim(baseURL, WithUserAgent("skrining-test"))
	})
}

func TestLocationIQContract(t *testing.T) {
	providerContract(t, func(baseURL string) Provider {
		return NewLocationIQ(baseURL, []string{"k1"}, nil)
	})
}

func TestLocationIQ_SpreadsKeys(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Query().Get("key")]++
		mu.Unlock()
		_, _ = w.Write([]byte(gubengPlace))
	}))
	defer srv.Close()

	p := NewLocationIQ(srv.URL, []string{"a", "b", "c"}, rand.New(rand.NewPCG(1, 2)))
	for i := 0; i < 60; i++ {
		_, err := p.Search(context.Background(), "Gubeng", Options{})
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
	for key, n := range seen {
		assert.Greater(t, n, 5, "key %s under-used", key)
	}
}
