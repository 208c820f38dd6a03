package model

import "errors"

// Error taxonomy shared across the engine. Callers match with
// errors.Is; operations wrap these with operation context.
var (
	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks an unknown id or missing storage key.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID marks an id that already exists (or is tombstoned).
	ErrDuplicateID = errors.New("duplicate id")

	// ErrAddressCollision marks two distinct entities deriving the
	// same hyperbolic coordinate.
	ErrAddressCollision = errors.New("address collision")

	// ErrConsolidation marks a non-fatal consolidation failure; the
	// operation reports zero effect.
	ErrConsolidation = errors.New("consolidation error")

	// ErrCompression marks a non-fatal compression failure; the
	// operation reports zero effect.
	ErrCompression = errors.New("compression error")

	// ErrIncompatibleStateVersion marks a restore attempt against a
	// snapshot written under a different schema version.
	ErrIncompatibleStateVersion = errors.New("incompatible state version")

	// ErrSecurity marks an authentication, authorization or
	// encryption failure. The operation aborts with no state change.
	ErrSecurity = errors.New("security error")
)
