// Package querycache is an in-memory query cache that consumes edenquery
// descriptors.
//
// It stores results under the canonical hash of their QueryKey, treats data
// older than the stale time as refetchable, collapses concurrent fetches of
// one key into a single call, retries failed fetches with exponential
// backoff, and drops entries that have not been updated within the gc time.
// Filters built by QueryFilter and InfiniteQueryFilter select entries for
// invalidation and removal.
package querycache
