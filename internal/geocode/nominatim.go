package geocode

import "context"

// Nominatim is the OpenStreetMap fallback provider.
type Nominatim struct {
	*httpSearch
}

func NewNominatim(baseURL string, opts ...ProviderOption) *Nominatim {
	return &Nominatim{httpSearch: newHTTPSearch("nominatim", baseURL, opts)}
}

func (n *Nominatim) ID() string { return n.id }

func (n *Nominatim) Search(ctx context.Context, keyword string, opts Options) (*Result, error) {
	return n.search(ctx, keyword, opts, nil)
}
