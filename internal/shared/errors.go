package shared

import "errors"

var (
	// ErrInvalidTransition indicates a workflow precondition violation: the
	// sales document is not in a state the requested transition accepts.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrValidation indicates a malformed or missing request field.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness violation on a business key.
	ErrDuplicate = errors.New("duplicate entry")
)
