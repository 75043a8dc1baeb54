package submission

import (
	"context"
	"time"

	"skrining/internal/domain"
)

// WaitOptions bounds a selector wait. A zero Timeout checks once.
type WaitOptions struct {
	Timeout time.Duration
	Visible bool
}

// Page is the narrow UI automation surface the engine drives. Every call is
// a suspension point; implementations honour ctx cancellation.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitForSelector reports whether the selector appeared within the
	// timeout. A timeout is not an error.
	WaitForSelector(ctx context.Context, selector string, opts WaitOptions) (bool, error)
	SetFieldValue(ctx context.Context, selector, value string) error
	ReadField(ctx context.Context, selector string) (string, error)
	Click(ctx context.Context, selector string) error
	Evaluate(ctx context.Context, script string, out any) error
	Screenshot(ctx context.Context, path string) error
	Close() error
}

// Browser owns pages of one persistent browser profile.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Pages() []Page
}

// Operator is the human escalation point. Confirm blocks until the operator
// answers; there is deliberately no timeout.
type Operator interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Normalizer turns a raw row into a submit-ready entity.
type Normalizer interface {
	Normalize(ctx context.Context, raw domain.RawRecord) (*domain.NormalizedEntity, error)
}
