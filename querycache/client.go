package querycache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/xkelxmc/eden-tanstack-query/edenquery"
	"github.com/xkelxmc/eden-tanstack-query/observe"
)

// Client is an in-memory query cache.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: fetch errors are returned to every waiting caller and never cached.
//   - Context: a shared fetch runs detached from every caller's cancellation.
//     A caller whose ctx is done stops waiting with ctx.Err(); the fetch and
//     its retries continue for the remaining callers and the cache.
//   - Ownership: cached values are returned as stored; callers must not mutate them.
type Client struct {
	store  *store
	policy Policy
	group  singleflight.Group
	logger observe.Logger
	now    func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithPolicy sets the defaults applied to descriptors.
func WithPolicy(p Policy) Option {
	return func(c *Client) { c.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l observe.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source used for staleness and gc.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Client with DefaultPolicy.
func New(opts ...Option) *Client {
	c := &Client{
		store:  newStore(),
		policy: DefaultPolicy(),
		logger: observe.NopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the client's policy.
func (c *Client) Policy() Policy {
	return c.policy
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *Client) Len() int {
	return c.store.len()
}

// FetchQuery returns fresh cached data for opts.QueryKey or fetches it.
// Concurrent calls for one key share a single fetch.
func (c *Client) FetchQuery(ctx context.Context, opts edenquery.QueryOptions) (any, error) {
	if opts.QueryFn == nil {
		return nil, ErrNoQueryFn
	}
	hash, err := opts.QueryKey.Hash()
	if err != nil {
		return nil, err
	}

	logger := c.logger.WithRoute(routeMeta(opts.QueryKey))
	now := c.now()
	if e, ok := c.store.get(hash, now); ok && e.fresh(now, c.policy.EffectiveStaleTime(opts.StaleTime)) {
		logger.Debug(ctx, "query cache hit")
		return e.data, nil
	}

	v, shared, err := c.shared(ctx, hash, func(ctx context.Context) (any, error) {
		retries := c.policy.EffectiveRetry(opts.Retry, c.policy.Retry)
		data, err := c.retrier(retries, logger).do(ctx, func(ctx context.Context) (any, error) {
			return opts.QueryFn.Fetch(ctx, edenquery.QueryContext{QueryKey: opts.QueryKey, Meta: opts.Meta})
		})
		if err != nil {
			return nil, err
		}
		c.store.set(hash, &entry{
			key:       opts.QueryKey,
			data:      data,
			updatedAt: c.now(),
			gcTime:    c.policy.EffectiveGCTime(opts.GCTime),
		})
		return data, nil
	})
	if err != nil {
		logger.Warn(ctx, "query fetch failed", observe.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	logger.Debug(ctx, "query fetched", observe.Field{Key: "shared", Value: shared})
	return v, nil
}

// EnsureQueryData returns cached data for opts.QueryKey, stale or not, and
// fetches only when nothing is cached.
func (c *Client) EnsureQueryData(ctx context.Context, opts edenquery.QueryOptions) (any, error) {
	if data, ok := c.GetQueryData(opts.QueryKey); ok {
		return data, nil
	}
	return c.FetchQuery(ctx, opts)
}

// GetQueryData returns the data cached under key.
func (c *Client) GetQueryData(key edenquery.QueryKey) (any, bool) {
	state, ok := c.GetQueryState(key)
	if !ok {
		return nil, false
	}
	return state.Data, true
}

// GetQueryState returns a snapshot of the entry cached under key.
func (c *Client) GetQueryState(key edenquery.QueryKey) (QueryState, bool) {
	hash, err := key.Hash()
	if err != nil {
		return QueryState{}, false
	}
	e, ok := c.store.get(hash, c.now())
	if !ok {
		return QueryState{}, false
	}
	return e.state(), true
}

// SetQueryData stores data under key as freshly fetched.
func (c *Client) SetQueryData(key edenquery.QueryKey, data any) error {
	hash, err := key.Hash()
	if err != nil {
		return err
	}
	c.store.set(hash, &entry{key: key, data: data, updatedAt: c.now(), gcTime: c.policy.GCTime})
	return nil
}

// FetchInfiniteQuery returns fresh cached pages or (re)fetches them. A
// refetch starts at the first cached page param and walks GetNextPageParam
// for as many pages as were cached.
func (c *Client) FetchInfiniteQuery(ctx context.Context, opts edenquery.InfiniteQueryOptions) (InfiniteData, error) {
	if opts.QueryFn == nil {
		return InfiniteData{}, ErrNoQueryFn
	}
	hash, err := opts.QueryKey.Hash()
	if err != nil {
		return InfiniteData{}, err
	}

	now := c.now()
	cached, hasCached, err := c.infiniteEntry(hash, now)
	if err != nil {
		return InfiniteData{}, err
	}
	if hasCached && cached.fresh(now, c.policy.EffectiveStaleTime(opts.StaleTime)) {
		return cached.data.(InfiniteData).clone(), nil
	}

	v, _, err := c.shared(ctx, hash, func(ctx context.Context) (any, error) {
		pageCount := 1
		param := opts.InitialPageParam
		if hasCached {
			prev := cached.data.(InfiniteData)
			if n := len(prev.Pages); n > 0 {
				pageCount = n
				param = prev.PageParams[0]
			}
		}

		var data InfiniteData
		for i := 0; i < pageCount; i++ {
			if i > 0 {
				next, ok := nextParam(opts, data)
				if !ok {
					break
				}
				param = next
			}
			page, err := c.fetchPage(ctx, opts, param, "")
			if err != nil {
				return nil, err
			}
			data.Pages = append(data.Pages, page)
			data.PageParams = append(data.PageParams, param)
		}

		c.storeInfinite(hash, opts, data)
		return data, nil
	})
	if err != nil {
		return InfiniteData{}, err
	}
	return v.(InfiniteData).clone(), nil
}

// FetchNextPage appends the page after the last cached one. Without cached
// pages it behaves like FetchInfiniteQuery.
func (c *Client) FetchNextPage(ctx context.Context, opts edenquery.InfiniteQueryOptions) (InfiniteData, error) {
	return c.fetchAdjacentPage(ctx, opts, edenquery.Forward)
}

// FetchPreviousPage prepends the page before the first cached one.
func (c *Client) FetchPreviousPage(ctx context.Context, opts edenquery.InfiniteQueryOptions) (InfiniteData, error) {
	return c.fetchAdjacentPage(ctx, opts, edenquery.Backward)
}

func (c *Client) fetchAdjacentPage(ctx context.Context, opts edenquery.InfiniteQueryOptions, dir edenquery.Direction) (InfiniteData, error) {
	if opts.QueryFn == nil {
		return InfiniteData{}, ErrNoQueryFn
	}
	hash, err := opts.QueryKey.Hash()
	if err != nil {
		return InfiniteData{}, err
	}
	cached, ok, err := c.infiniteEntry(hash, c.now())
	if err != nil {
		return InfiniteData{}, err
	}
	if !ok || len(cached.data.(InfiniteData).Pages) == 0 {
		return c.FetchInfiniteQuery(ctx, opts)
	}

	v, _, err := c.shared(ctx, string(dir)+":"+hash, func(ctx context.Context) (any, error) {
		data := cached.data.(InfiniteData).clone()

		var (
			param any
			has   bool
		)
		if dir == edenquery.Backward {
			param, has = previousParam(opts, data)
			if !has {
				return nil, ErrNoPreviousPage
			}
		} else {
			param, has = nextParam(opts, data)
			if !has {
				return nil, ErrNoNextPage
			}
		}

		page, err := c.fetchPage(ctx, opts, param, dir)
		if err != nil {
			return nil, err
		}
		if dir == edenquery.Backward {
			data.Pages = append([]any{page}, data.Pages...)
			data.PageParams = append([]any{param}, data.PageParams...)
		} else {
			data.Pages = append(data.Pages, page)
			data.PageParams = append(data.PageParams, param)
		}

		c.storeInfinite(hash, opts, data)
		return data, nil
	})
	if err != nil {
		return InfiniteData{}, err
	}
	return v.(InfiniteData).clone(), nil
}

// shared runs fn once per key on a context without cancellation. Each caller
// waits for the result until its own ctx is done.
func (c *Client) shared(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (any, bool, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

func nextParam(opts edenquery.InfiniteQueryOptions, data InfiniteData) (any, bool) {
	if opts.GetNextPageParam == nil || len(data.Pages) == 0 {
		return nil, false
	}
	last := len(data.Pages) - 1
	return opts.GetNextPageParam(data.Pages[last], data.Pages, data.PageParams[last], data.PageParams)
}

func previousParam(opts edenquery.InfiniteQueryOptions, data InfiniteData) (any, bool) {
	if opts.GetPreviousPageParam == nil || len(data.Pages) == 0 {
		return nil, false
	}
	return opts.GetPreviousPageParam(data.Pages[0], data.Pages, data.PageParams[0], data.PageParams)
}

func (c *Client) fetchPage(ctx context.Context, opts edenquery.InfiniteQueryOptions, param any, dir edenquery.Direction) (any, error) {
	logger := c.logger.WithRoute(routeMeta(opts.QueryKey))
	retries := c.policy.EffectiveRetry(opts.Retry, c.policy.Retry)
	page, err := c.retrier(retries, logger).do(ctx, func(ctx context.Context) (any, error) {
		return opts.QueryFn.Fetch(ctx, edenquery.QueryContext{
			QueryKey:  opts.QueryKey,
			PageParam: param,
			Direction: dir,
			Meta:      opts.Meta,
		})
	})
	if err != nil {
		logger.Warn(ctx, "page fetch failed", observe.Field{Key: "error", Value: err.Error()})
		return nil, err
	}
	return page, nil
}

func (c *Client) infiniteEntry(hash string, now time.Time) (*entry, bool, error) {
	e, ok := c.store.get(hash, now)
	if !ok {
		return nil, false, nil
	}
	if _, isInfinite := e.data.(InfiniteData); !isInfinite {
		return nil, false, fmt.Errorf("%w: %s", ErrNotInfinite, e.key)
	}
	return e, true, nil
}

func (c *Client) storeInfinite(hash string, opts edenquery.InfiniteQueryOptions, data InfiniteData) {
	c.store.set(hash, &entry{
		key:       opts.QueryKey,
		data:      data.clone(),
		updatedAt: c.now(),
		gcTime:    c.policy.EffectiveGCTime(opts.GCTime),
	})
}

// MutationResult is the outcome of a successful Mutate.
type MutationResult struct {
	// ID identifies this mutation call in logs.
	ID   string
	Key  edenquery.MutationKey
	Data any
}

// Mutate runs opts.MutationFn with variables, retrying per the descriptor
// or MutationRetry. Mutations are never cached or deduplicated.
func (c *Client) Mutate(ctx context.Context, opts edenquery.MutationOptions, variables any) (MutationResult, error) {
	if opts.MutationFn == nil {
		return MutationResult{}, ErrNoQueryFn
	}

	id := uuid.NewString()
	logger := c.logger.WithRoute(observe.RouteMeta{Path: opts.MutationKey.Path, Kind: "mutation"})
	retries := c.policy.EffectiveRetry(opts.Retry, c.policy.MutationRetry)

	data, err := c.retrier(retries, logger).do(ctx, func(ctx context.Context) (any, error) {
		return opts.MutationFn(ctx, variables)
	})
	if err != nil {
		logger.Warn(ctx, "mutation failed",
			observe.Field{Key: "mutation_id", Value: id},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return MutationResult{}, err
	}
	logger.Debug(ctx, "mutation succeeded", observe.Field{Key: "mutation_id", Value: id})
	return MutationResult{ID: id, Key: opts.MutationKey, Data: data}, nil
}

// InvalidateQueries marks every entry selected by filters as stale and
// returns how many were marked. Stale entries keep their data.
func (c *Client) InvalidateQueries(filters edenquery.QueryFilters) int {
	n := 0
	c.store.update(c.now(), func(e *entry) *entry {
		if !filters.Matches(e.key) {
			return e
		}
		n++
		next := *e
		next.invalidated = true
		return &next
	})
	return n
}

// RemoveQueries drops every entry selected by filters and returns how many
// were dropped.
func (c *Client) RemoveQueries(filters edenquery.QueryFilters) int {
	n := 0
	c.store.update(c.now(), func(e *entry) *entry {
		if !filters.Matches(e.key) {
			return e
		}
		n++
		return nil
	})
	return n
}

// Clear drops every entry.
func (c *Client) Clear() {
	c.store.update(c.now(), func(*entry) *entry { return nil })
}

func (c *Client) retrier(retries int, logger observe.Logger) retrier {
	return retrier{
		retries:  retries,
		initial:  c.policy.RetryDelay,
		maxDelay: c.policy.MaxRetryDelay,
		jitter:   true,
		onRetry: func(attempt int, err error, delay time.Duration) {
			logger.Debug(context.Background(), "retrying",
				observe.Field{Key: "attempt", Value: attempt},
				observe.Field{Key: "delay_ms", Value: delay.Milliseconds()},
				observe.Field{Key: "error", Value: err.Error()},
			)
		},
	}
}

func routeMeta(key edenquery.QueryKey) observe.RouteMeta {
	meta := observe.RouteMeta{Path: key.Path}
	if key.Meta != nil && !key.Meta.Type.IsWildcard() {
		meta.Kind = string(key.Meta.Type)
	}
	return meta
}
