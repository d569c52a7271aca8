package edenquery

import "context"

// Skip is the type of SkipToken.
type Skip struct {
	name string
}

// SkipToken disables a query. Passed as the input of QueryOptions or
// InfiniteQueryOptions, it yields a path-only key and a descriptor whose
// QueryFn is SkipToken itself:
//
//	opts := proc.QueryOptions(edenquery.SkipToken)
//	opts.QueryFn == edenquery.SkipToken // true
var SkipToken = &Skip{name: "skipToken"}

// Fetch always fails with ErrQuerySkipped.
func (*Skip) Fetch(context.Context, QueryContext) (any, error) {
	return nil, ErrQuerySkipped
}

// String returns "skipToken".
func (s *Skip) String() string {
	return s.name
}

// IsSkip reports whether v is SkipToken.
func IsSkip(v any) bool {
	s, ok := v.(*Skip)
	return ok && s == SkipToken
}

var _ QueryFunction = SkipToken
