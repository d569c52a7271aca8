package querycache

import "errors"

// Sentinel errors for cache operations.
var (
	// ErrNoQueryFn is returned when a descriptor has no fetch function.
	ErrNoQueryFn = errors.New("querycache: descriptor has no query function")

	// ErrNoNextPage is returned when GetNextPageParam reports no further page.
	ErrNoNextPage = errors.New("querycache: no next page")

	// ErrNoPreviousPage is returned when there is no previous page callback
	// or it reports no earlier page.
	ErrNoPreviousPage = errors.New("querycache: no previous page")

	// ErrNotInfinite is returned when an infinite operation finds a plain
	// query stored under the key.
	ErrNotInfinite = errors.New("querycache: entry is not an infinite query")
)
