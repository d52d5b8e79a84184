package session

import "errors"

var (
	// ErrUndeclared is returned when an output is requested for a relation
	// that no declaration in the buffer or the include tree introduces.
	ErrUndeclared = errors.New("undeclared relation")

	// ErrInvalidStatement is returned for lines failing the statement check.
	ErrInvalidStatement = errors.New("invalid statement")

	// ErrMissingArea is returned when a working area or the cache file the
	// operation needs is absent. The operation is skipped.
	ErrMissingArea = errors.New("missing working area")
)
