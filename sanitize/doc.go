// Package sanitize strips prototype-style keys from caller input before it is
// embedded in a cache key.
//
// The keys "__proto__", "constructor" and "prototype" are removed at every
// nesting level of maps and slices. Other values pass through unchanged.
// The argument is never modified in place.
package sanitize
