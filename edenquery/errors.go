package edenquery

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownMethod is returned by Route.Method for names that are not HTTP methods.
	ErrUnknownMethod = errors.New("edenquery: unknown method")

	// ErrNilSegment is returned when navigation reaches a nil node where a
	// further segment is expected.
	ErrNilSegment = errors.New("edenquery: cannot access segment on nil")

	// ErrQuerySkipped is returned when SkipToken is called as a query function.
	ErrQuerySkipped = errors.New("edenquery: query is skipped")

	// ErrNilTransport is returned by New and FromConfig without a route tree.
	ErrNilTransport = errors.New("edenquery: transport root is nil")
)

// PathError records a failed re-navigation of the transport tree.
type PathError struct {
	// Path is the dotted path of the procedure being resolved.
	Path string
	// Segment is the segment at which navigation failed.
	Segment string
	Err     error
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("edenquery: invalid path %q at %q: %v", e.Path, e.Segment, e.Err)
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error {
	return e.Err
}
