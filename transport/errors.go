package transport

import (
	"errors"
	"fmt"
)

// Sentinel errors for route navigation and calls.
var (
	// ErrSegmentNotFound is returned when a named segment does not exist.
	ErrSegmentNotFound = errors.New("transport: segment not found")

	// ErrInvalidSegment is returned for a segment name that is empty, a dot
	// segment, or contains "/".
	ErrInvalidSegment = errors.New("transport: invalid segment name")

	// ErrMethodNotFound is returned when a node has no handler for a method.
	ErrMethodNotFound = errors.New("transport: method not found")

	// ErrNoParamSegment is returned when params are applied where the route
	// has no parameter segment.
	ErrNoParamSegment = errors.New("transport: no parameter segment at this position")

	// ErrInvalidParams is returned when a param record does not hold exactly one value.
	ErrInvalidParams = errors.New("transport: params must hold exactly one value")

	// ErrInvalidQuery is returned when a query value cannot be encoded as URL values.
	ErrInvalidQuery = errors.New("transport: query must be an object")

	// ErrInvalidBaseURL is returned for an empty or unparsable base URL.
	ErrInvalidBaseURL = errors.New("transport: invalid base URL")

	// ErrInvalidPattern is returned for a malformed route pattern.
	ErrInvalidPattern = errors.New("transport: invalid route pattern")
)

// Error is the error value of a non-2xx response.
//
// Value holds the decoded response body (JSON value or text).
type Error struct {
	Status int
	Value  any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("transport: status %d", e.Status)
	}
	return fmt.Sprintf("transport: status %d: %v", e.Status, e.Value)
}

// NewError creates an Error with the given status and value.
func NewError(status int, value any) *Error {
	return &Error{Status: status, Value: value}
}
