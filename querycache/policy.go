package querycache

import (
	"time"

	"github.com/xkelxmc/eden-tanstack-query/config"
)

// Policy holds the defaults for descriptors that leave an option unset.
type Policy struct {
	// StaleTime is how long fetched data counts as fresh.
	// Zero means data is stale immediately.
	StaleTime time.Duration

	// GCTime is how long an entry is kept after its last update.
	// Zero or negative keeps entries until removed.
	GCTime time.Duration

	// Retry is the number of retries after a failed query fetch.
	Retry int

	// MutationRetry is the number of retries after a failed mutation.
	MutationRetry int

	// RetryDelay is the delay before the first retry. It doubles per attempt.
	RetryDelay time.Duration

	// MaxRetryDelay caps the retry delay.
	MaxRetryDelay time.Duration
}

// DefaultPolicy returns the default policy.
// StaleTime: 0, GCTime: 5 minutes, Retry: 3, MutationRetry: 0,
// RetryDelay: 1s doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		StaleTime:     0,
		GCTime:        5 * time.Minute,
		Retry:         3,
		MutationRetry: 0,
		RetryDelay:    time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// PolicyFromConfig builds a Policy from the cache section of a config file.
func PolicyFromConfig(c config.CacheConfig) Policy {
	p := DefaultPolicy()
	p.StaleTime = c.StaleTime
	p.GCTime = c.GCTime
	p.Retry = c.Retry
	if c.RetryDelay > 0 {
		p.RetryDelay = c.RetryDelay
	}
	if c.MaxRetryDelay > 0 {
		p.MaxRetryDelay = c.MaxRetryDelay
	}
	return p
}

// EffectiveStaleTime returns override when set, else the policy value.
func (p Policy) EffectiveStaleTime(override *time.Duration) time.Duration {
	if override != nil && *override >= 0 {
		return *override
	}
	return p.StaleTime
}

// EffectiveGCTime returns override when set, else the policy value.
func (p Policy) EffectiveGCTime(override *time.Duration) time.Duration {
	if override != nil {
		return *override
	}
	return p.GCTime
}

// EffectiveRetry returns override when set, else def.
func (p Policy) EffectiveRetry(override *int, def int) int {
	if override != nil && *override >= 0 {
		return *override
	}
	return def
}
