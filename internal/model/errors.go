package model

import "errors"

// Domain error taxonomy. Services return these (optionally wrapped with
// fmt.Errorf and %w); handlers map them to HTTP status codes.
var (
	ErrInvalidPRNumber        = errors.New("pr number must match PR-YYYY-MM-XXXX")
	ErrDuplicatePRNumber      = errors.New("pr number already exists")
	ErrPRNotFound             = errors.New("purchase request not found")
	ErrInvalidTransition      = errors.New("action not permitted from current status")
	ErrNotOwner               = errors.New("acting role does not currently hold this purchase request")
	ErrMissingDestination     = errors.New("destination designation is required")
	ErrConcurrentModification = errors.New("purchase request was modified concurrently, reload and retry")
	ErrPersistence            = errors.New("persistence failure")
)
