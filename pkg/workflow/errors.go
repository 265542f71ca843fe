package workflow

import "errors"

var (
	// ErrActionNotAllowed is returned when the transition table does not
	// permit the requested action in the procurement's current state.
	ErrActionNotAllowed = errors.New("action not allowed")
	// ErrNotFound is returned when a procurement has no status record.
	ErrNotFound = errors.New("procurement not found")
	// ErrInvalidRequest is returned for malformed requests.
	ErrInvalidRequest = errors.New("invalid request")
)

// ErrUnsupported is returned when the configured ledger lacks a capability.
var ErrUnsupported = errors.New("not supported by this ledger")
