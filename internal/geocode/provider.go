package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Provider searches one geocoding service. Implementations return a
// *ProviderError for every failure, with ErrorNotFound for empty results.
type Provider interface {
	ID() string
	Search(ctx context.Context, keyword string, opts Options) (*Result, error)
}

// ProviderOption configures the HTTP providers.
type ProviderOption func(*httpSearch)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(s *httpSearch) {
		if c != nil {
			s.client = c
		}
	}
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) ProviderOption {
	return func(s *httpSearch) {
		if ua != "" {
			s.userAgent = ua
		}
	}
}

// WithTimeout bounds a single provider request.
func WithTimeout(d time.Duration) ProviderOption {
	return func(s *httpSearch) {
		if d > 0 {
			s.client = &http.Client{Timeout: d, Transport: s.client.Transport}
		}
	}
}

// httpSearch is the Nominatim-compatible search API shared by LocationIQ
// and OpenStreetMap Nominatim.
type httpSearch struct {
	id        string
	baseURL   string
	client    *http.Client
	userAgent string
}

func newHTTPSearch(id, baseURL string, opts []ProviderOption) *httpSearch {
	s := &httpSearch{
		id:        id,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		userAgent: "skrining/1.0",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type place struct {
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	DisplayName string            `json:"display_name"`
	Address     map[string]string `json:"address"`
}

func (s *httpSearch) search(ctx context.Context, keyword string, opts Options, extra url.Values) (*Result, error) {
	q := url.Values{}
	q.Set("q", keyword)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", "1")
	if opts.CountryCode != "" {
		q.Set("countrycodes", strings.ToLower(opts.CountryCode))
	}
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, NewProviderError(ErrorInternal, s.id, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, s.transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, NewProviderError(ErrorProviderOutage, s.id, "read body", err)
	}
	if err := s.statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, NewProviderError(ErrorBadData, s.id, "decode response", err)
	}
	if len(places) == 0 {
		return nil, NewProviderError(ErrorNotFound, s.id, "no results", nil)
	}

	p := places[0]
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return nil, NewProviderError(ErrorBadData, s.id, "parse latitude", err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return nil, NewProviderError(ErrorBadData, s.id, "parse longitude", err)
	}
	raw, _ := json.Marshal(p)

	return &Result{
		Keyword:     keyword,
		FullAddress: p.DisplayName,
		Latitude:    lat,
		Longitude:   lon,
		Province:    firstOf(p.Address, "state", "province"),
		Regency:     firstOf(p.Address, "city", "county", "regency", "municipality"),
		District:    firstOf(p.Address, "city_district", "district", "town"),
		Village:     firstOf(p.Address, "village", "suburb", "quarter", "neighbourhood", "hamlet"),
		Provider:    s.id,
		Raw:         raw,
	}, nil
}

func (s *httpSearch) statusError(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return NewProviderError(ErrorAuthentication, s.id, fmt.Sprintf("status %d", code), nil)
	case code == http.StatusTooManyRequests:
		return NewProviderError(ErrorRateLimited, s.id, "rate limited", nil)
	case code == http.StatusNotFound:
		// LocationIQ answers 404 {"error":"Unable to geocode"} for no match.
		return NewProviderError(ErrorNotFound, s.id, "no results", nil)
	case code >= 500:
		return NewProviderError(ErrorProviderOutage, s.id, fmt.Sprintf("status %d", code), nil)
	default:
		return NewProviderError(ErrorBadData, s.id, fmt.Sprintf("unexpected status %d", code), nil)
	}
}

func (s *httpSearch) transportError(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return NewProviderError(ErrorTimeout, s.id, "request timed out", err)
	}
	return NewProviderError(ErrorProviderOutage, s.id, "request failed", err)
}

func firstOf(m map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}
