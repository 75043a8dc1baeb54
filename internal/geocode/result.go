// Package geocode resolves free-text Indonesian locality keywords into
// administrative addresses. Lookups go through a content-addressed file
// cache first, then an ordered list of HTTP providers.
package geocode

import (
	"encoding/json"
	"time"
)

// Result is a resolved address.
type Result struct {
	Keyword     string          `json:"keyword"`
	FullAddress string          `json:"full_address"`
	Latitude    float64         `json:"latitude"`
	Longitude   float64         `json:"longitude"`
	Province    string          `json:"province,omitempty"`
	Regency     string          `json:"regency,omitempty"`
	District    string          `json:"district,omitempty"`
	Village     string          `json:"village,omitempty"`
	Provider    string          `json:"provider"`
	ResolvedAt  time.Time       `json:"resolved_at"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// Options tunes a single Resolve call.
type Options struct {
	// SkipCache bypasses the cache read. Successful results are still written.
	SkipCache bool
	// CountryCode restricts provider searches (ISO 3166-1 alpha-2).
	CountryCode string
}
