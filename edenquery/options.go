package edenquery

import (
	"context"
	"maps"
	"net/http"
	"time"
)

// QueryContext is what a consumer passes to a QueryFunction.
type QueryContext struct {
	// QueryKey is the key the fetch is stored under.
	QueryKey QueryKey
	// PageParam is the page cursor of an infinite query.
	PageParam any
	// Direction is set by consumers paging in both directions.
	Direction Direction
	// Meta is the descriptor's Meta.
	Meta map[string]any
}

// Direction is the paging direction of an infinite-query fetch.
type Direction string

const (
	Forward  Direction = "forward"
	Backward Direction = "backward"
)

// QueryFunction fetches one query result. SkipToken is also a QueryFunction.
type QueryFunction interface {
	Fetch(ctx context.Context, qc QueryContext) (any, error)
}

// QueryFunc adapts a function to QueryFunction.
type QueryFunc func(ctx context.Context, qc QueryContext) (any, error)

// Fetch calls f.
func (f QueryFunc) Fetch(ctx context.Context, qc QueryContext) (any, error) {
	return f(ctx, qc)
}

// MutationFunc performs one mutation with the given variables.
type MutationFunc func(ctx context.Context, variables any) (any, error)

// PageParamFunc computes the next or previous page param of an infinite
// query. Returning false means there is no such page.
type PageParamFunc func(lastPage any, allPages []any, lastPageParam any, allPageParams []any) (any, bool)

// RouteInfo is resolution metadata attached to every descriptor.
type RouteInfo struct {
	// Path is the route path joined by ".", e.g. "users.posts.get".
	Path string
	// AbortOnUnmount reports whether the fetch forwards ctx cancellation.
	AbortOnUnmount bool
}

// CacheOptions are passed through to the consumer untouched. A nil field
// means the consumer's default.
type CacheOptions struct {
	StaleTime *time.Duration
	GCTime    *time.Duration
	Retry     *int
	Enabled   *bool
	Meta      map[string]any
}

// QueryOptions describes a query for a cache consumer.
type QueryOptions struct {
	QueryKey QueryKey
	// QueryFn is SkipToken when the query was built with SkipToken.
	QueryFn QueryFunction
	CacheOptions
	Eden RouteInfo
}

// MutationOptions describes a mutation for a cache consumer.
type MutationOptions struct {
	MutationKey MutationKey
	MutationFn  MutationFunc
	CacheOptions
	Eden RouteInfo
}

// InfiniteQueryOptions describes a paginated query for a cache consumer.
type InfiniteQueryOptions struct {
	QueryKey QueryKey
	// QueryFn reads the page cursor from QueryContext.PageParam.
	QueryFn              QueryFunction
	InitialPageParam     any
	GetNextPageParam     PageParamFunc
	GetPreviousPageParam PageParamFunc
	CacheOptions
	Eden RouteInfo
}

// Option configures a descriptor.
type Option func(*settings)

type settings struct {
	cache            CacheOptions
	headers          http.Header
	abortOnUnmount   *bool
	initialPageParam any
	getPrevious      PageParamFunc
}

func newSettings(opts []Option) settings {
	var s settings
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithStaleTime sets how long a fetched result counts as fresh.
func WithStaleTime(d time.Duration) Option {
	return func(s *settings) { s.cache.StaleTime = &d }
}

// WithGCTime sets how long an unused result is kept.
func WithGCTime(d time.Duration) Option {
	return func(s *settings) { s.cache.GCTime = &d }
}

// WithRetry sets the number of retries after a failed fetch.
func WithRetry(n int) Option {
	return func(s *settings) { s.cache.Retry = &n }
}

// WithEnabled enables or disables automatic fetching.
func WithEnabled(enabled bool) Option {
	return func(s *settings) { s.cache.Enabled = &enabled }
}

// WithMeta attaches consumer metadata. Later calls merge over earlier ones.
func WithMeta(meta map[string]any) Option {
	return func(s *settings) {
		if s.cache.Meta == nil {
			s.cache.Meta = make(map[string]any, len(meta))
		}
		maps.Copy(s.cache.Meta, meta)
	}
}

// WithHeaders adds headers to every transport call of the descriptor.
func WithHeaders(h http.Header) Option {
	return func(s *settings) {
		if s.headers == nil {
			s.headers = make(http.Header, len(h))
		}
		for k, vs := range h {
			for _, v := range vs {
				s.headers.Add(k, v)
			}
		}
	}
}

// WithAbortOnUnmount controls whether cancellation of the fetch ctx is
// forwarded to the transport. By default in-flight requests run to completion.
// Mutations never forward cancellation.
func WithAbortOnUnmount(abort bool) Option {
	return func(s *settings) { s.abortOnUnmount = &abort }
}

// WithInitialPageParam sets the cursor of the first page. Defaults to nil.
func WithInitialPageParam(v any) Option {
	return func(s *settings) { s.initialPageParam = v }
}

// WithPreviousPageParam sets the backward paging callback.
func WithPreviousPageParam(fn PageParamFunc) Option {
	return func(s *settings) { s.getPrevious = fn }
}

// QueryFilters selects cached queries for invalidation or removal.
type QueryFilters struct {
	QueryKey QueryKey
	// Exact requires the whole key to be equal rather than a prefix match.
	Exact bool
	// Predicate, when set, must also accept the key.
	Predicate func(QueryKey) bool
}

// Matches reports whether key is selected by f.
func (f QueryFilters) Matches(key QueryKey) bool {
	if f.Exact {
		if !f.QueryKey.Equal(key) {
			return false
		}
	} else if !PartialMatch(f.QueryKey, key) {
		return false
	}
	return f.Predicate == nil || f.Predicate(key)
}

// FilterOption configures QueryFilters.
type FilterOption func(*QueryFilters)

// WithExact requires exact key equality.
func WithExact() FilterOption {
	return func(f *QueryFilters) { f.Exact = true }
}

// WithPredicate adds a predicate the key must satisfy.
func WithPredicate(fn func(QueryKey) bool) FilterOption {
	return func(f *QueryFilters) { f.Predicate = fn }
}

func newFilters(key QueryKey, opts []FilterOption) QueryFilters {
	f := QueryFilters{QueryKey: key}
	for _, opt := range opts {
		if opt != nil {
			opt(&f)
		}
	}
	return f
}
