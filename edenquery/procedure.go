package edenquery

import (
	"context"
	"maps"
	"strings"

	"github.com/xkelxmc/eden-tanstack-query/transport"
)

// Procedure is a route terminated at an HTTP method.
type Procedure interface {
	// Path returns the segments followed by the method name.
	Path() []string
	// DottedPath returns Path joined by ".".
	DottedPath() string
	// Method returns the lower-case method name.
	Method() string
}

type procedure struct {
	route  Route
	method string
}

func (p procedure) Path() []string     { return p.route.fullPath(p.method) }
func (p procedure) DottedPath() string { return strings.Join(p.Path(), ".") }
func (p procedure) Method() string     { return p.method }

func (p procedure) info(s settings) RouteInfo {
	return RouteInfo{Path: p.DottedPath(), AbortOnUnmount: p.route.abortOnUnmount(s)}
}

// QueryProcedure builds query and infinite-query descriptors for a read-only method.
type QueryProcedure struct {
	procedure
}

// QueryKey returns the key QueryOptions would use for input.
func (p *QueryProcedure) QueryKey(input any) QueryKey {
	return BuildQueryKey(p.Path(), p.route.keyInput(input, KindQuery), KindQuery)
}

// QueryFilter returns filters matching every query and infinite query of
// this route for input. A nil input matches all inputs.
func (p *QueryProcedure) QueryFilter(input any, opts ...FilterOption) QueryFilters {
	return newFilters(BuildQueryKey(p.Path(), p.route.keyInput(input, KindAny), KindAny), opts)
}

// QueryOptions returns the descriptor of a query with input. With
// SkipToken as input the key is path-only and QueryFn is SkipToken.
//
// The fetch function sends the original input as the request query.
func (p *QueryProcedure) QueryOptions(input any, opts ...Option) QueryOptions {
	s := newSettings(opts)
	out := QueryOptions{
		QueryKey:     p.QueryKey(input),
		CacheOptions: s.cache,
		Eden:         p.info(s),
	}
	if IsSkip(input) {
		out.QueryFn = SkipToken
		return out
	}

	abort := out.Eden.AbortOnUnmount
	out.QueryFn = QueryFunc(func(ctx context.Context, _ QueryContext) (any, error) {
		if !abort {
			ctx = context.WithoutCancel(ctx)
		}
		return p.route.call(ctx, p.method, string(KindQuery), transport.Request{
			Query:   input,
			Headers: s.headers.Clone(),
		})
	})
	return out
}

// InfiniteQueryKey returns the key InfiniteQueryOptions would use for input.
// Cursor and direction fields of input are not part of the key.
func (p *QueryProcedure) InfiniteQueryKey(input any) QueryKey {
	return BuildQueryKey(p.Path(), p.route.keyInput(input, KindInfinite), KindInfinite)
}

// InfiniteQueryFilter returns filters matching the infinite queries of this route.
func (p *QueryProcedure) InfiniteQueryFilter(input any, opts ...FilterOption) QueryFilters {
	return newFilters(p.InfiniteQueryKey(input), opts)
}

// InfiniteQueryOptions returns the descriptor of a paginated query.
//
// Each page fetch sends a copy of input with "cursor" set to the page param,
// and "direction" when the consumer passes one. getNext and the option set by
// WithPreviousPageParam are passed through untouched.
func (p *QueryProcedure) InfiniteQueryOptions(input any, getNext PageParamFunc, opts ...Option) InfiniteQueryOptions {
	s := newSettings(opts)
	out := InfiniteQueryOptions{
		QueryKey:             p.InfiniteQueryKey(input),
		InitialPageParam:     s.initialPageParam,
		GetNextPageParam:     getNext,
		GetPreviousPageParam: s.getPrevious,
		CacheOptions:         s.cache,
		Eden:                 p.info(s),
	}
	if IsSkip(input) {
		out.QueryFn = SkipToken
		return out
	}

	abort := out.Eden.AbortOnUnmount
	out.QueryFn = QueryFunc(func(ctx context.Context, qc QueryContext) (any, error) {
		if !abort {
			ctx = context.WithoutCancel(ctx)
		}
		return p.route.call(ctx, p.method, string(KindInfinite), transport.Request{
			Query:   pageInput(input, qc.PageParam, qc.Direction),
			Headers: s.headers.Clone(),
		})
	})
	return out
}

// pageInput returns a copy of input with the page fields set. Fields of a
// non-object input cannot be merged, so only the page fields are sent.
func pageInput(input any, cursor any, direction Direction) map[string]any {
	out := make(map[string]any)
	switch v := input.(type) {
	case map[string]any:
		maps.Copy(out, v)
	default:
		if value, ok := normalize(input); ok {
			if obj, ok := value.(map[string]any); ok {
				maps.Copy(out, obj)
			}
		}
	}
	out["cursor"] = cursor
	if direction != "" {
		out["direction"] = string(direction)
	}
	return out
}

// MutationProcedure builds mutation descriptors for a write method.
type MutationProcedure struct {
	procedure
}

// MutationKey returns the path-only mutation key.
func (p *MutationProcedure) MutationKey() MutationKey {
	return BuildMutationKey(p.Path())
}

// MutationOptions returns the descriptor of a mutation. MutationFn sends
// the variables unchanged as the request body and never forwards ctx
// cancellation.
func (p *MutationProcedure) MutationOptions(opts ...Option) MutationOptions {
	s := newSettings(opts)
	info := p.info(s)
	info.AbortOnUnmount = false
	return MutationOptions{
		MutationKey: p.MutationKey(),
		MutationFn: func(ctx context.Context, variables any) (any, error) {
			return p.route.call(context.WithoutCancel(ctx), p.method, "mutation", transport.Request{
				Body:    variables,
				Headers: s.headers.Clone(),
			})
		},
		CacheOptions: s.cache,
		Eden:         info,
	}
}

var (
	_ Procedure = (*QueryProcedure)(nil)
	_ Procedure = (*MutationProcedure)(nil)
)
