package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Methods lists the recognized HTTP method names in lower case.
var Methods = []string{"get", "post", "put", "patch", "delete", "head", "options"}

var methodSet = map[string]bool{
	"get":     true,
	"post":    true,
	"put":     true,
	"patch":   true,
	"delete":  true,
	"head":    true,
	"options": true,
}

// IsMethod reports whether name is a recognized HTTP method name.
// Matching is case-insensitive.
func IsMethod(name string) bool {
	return methodSet[strings.ToLower(name)]
}

// IsQueryMethod reports whether name is a read-only method (get, head, options).
func IsQueryMethod(name string) bool {
	switch strings.ToLower(name) {
	case "get", "head", "options":
		return true
	default:
		return false
	}
}

// Request is the per-call input of an Endpoint.
type Request struct {
	// Query is encoded into the URL query string. It may be url.Values,
	// map[string]string, map[string]any, or any value that marshals to a
	// JSON object.
	Query any

	// Body is sent as JSON. Ignored for GET and HEAD.
	Body any

	// Headers are merged over the transport's default headers.
	Headers http.Header

	// PathParams holds bound parameter values by segment name.
	// Populated by Router before a handler runs.
	PathParams map[string]string
}

// Result is the outcome of a call that reached the remote side.
type Result struct {
	// Data is the decoded body of a 2xx response.
	Data any

	// Error is set for non-2xx responses, usually to an *Error.
	Error error

	// Status is the HTTP status code.
	Status int

	// Headers are the response headers, when available.
	Headers http.Header
}

// Node is one position in a route tree.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Ownership: every method returns a new Node; the receiver is unchanged.
//   - Errors: Child returns ErrSegmentNotFound for unknown names. A nil Node
//     with a nil error means the position exists but holds nothing.
type Node interface {
	// Child descends into a named segment.
	Child(name string) (Node, error)

	// Params binds a parameter record to the parameter segment at this position.
	Params(params map[string]any) (Node, error)

	// Endpoint returns the callable for an HTTP method at this position.
	Endpoint(method string) (Endpoint, error)
}

// Endpoint performs one call.
//
// Contract:
//   - Context: implementations must honor cancellation of ctx.
//   - Errors: non-2xx outcomes are reported in Result.Error, not as the
//     returned error.
type Endpoint interface {
	Call(ctx context.Context, req Request) (Result, error)
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(ctx context.Context, req Request) (Result, error)

// Call calls f.
func (f EndpointFunc) Call(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// paramValue extracts the single value of a parameter record.
// Only the value is used; the key name is informational.
func paramValue(params map[string]any) (string, error) {
	if len(params) != 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidParams, len(params))
	}
	for _, v := range params {
		if v == nil {
			return "", fmt.Errorf("%w: value is nil", ErrInvalidParams)
		}
		return fmt.Sprint(v), nil
	}
	return "", ErrInvalidParams
}
