package identity

import "errors"

// Sentinel errors for identity operations. Callers match with errors.Is;
// the wrapped message carries the offending IDs.
var (
	// ErrNotFound indicates a referenced name or identity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTypeMismatch indicates the group/person rule was violated.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrSelfReference indicates source and target are the same name.
	ErrSelfReference = errors.New("source and target are the same name")

	// ErrCollision indicates a spelling is already owned by another identity
	// in a context where no merge confirmation flow applies.
	ErrCollision = errors.New("name already in use")

	// ErrIntegrityViolation indicates an invariant would be broken and no
	// safe recovery exists. The transaction is rolled back in full.
	ErrIntegrityViolation = errors.New("integrity violation")
)
