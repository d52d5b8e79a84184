package datalog

import (
	"errors"
	"fmt"
)

// ErrMalformedDecl reports a declaration header no relation name could be extracted from.
var ErrMalformedDecl = errors.New("malformed declaration header")

// ParseError carries file and line context for a fatal scan error.
type ParseError struct {
	File string
	Line int
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v: %q", e.File, e.Line, e.Err, e.Text)
}

func (e *ParseError) Unwrap() error { return e.Err }
