package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and adapters return these
// (optionally wrapped) so services can translate them into outcomes.
//
// - ErrNotFound: no record exists for the key
// - ErrUnavailable: backend or remote provider temporarily unavailable
// - ErrInvalidState: resource is in the wrong state for the operation
// - ErrNotOwner: caller does not own the resource it tried to release
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrInvalidState = errors.New("invalid state")
	ErrNotOwner     = errors.New("not owner")
)
