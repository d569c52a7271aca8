// Package edenquery turns a nested HTTP route tree into cache-aware query,
// mutation and infinite-query descriptors.
//
// A Route is an immutable builder over the segments and parameter bindings
// a caller navigates:
//
//	client.Root().Path("users").Params(map[string]any{"id": "1"}).Path("posts").Get()
//
// The terminal method returns a procedure whose QueryOptions,
// MutationOptions or InfiniteQueryOptions build a deterministic QueryKey and
// a fetch function. The fetch function re-walks the transport tree with the
// same segments, applying each binding at the position it was recorded.
//
// Building never fails. Navigation errors surface from the fetch call as a
// *PathError.
package edenquery
