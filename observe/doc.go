// Package observe provides observability primitives for route fetches.
//
// It is a pure instrumentation library: no transport and no I/O beyond
// exporter setup. edenquery wires the Middleware around every descriptor
// fetch and mutate call when an Observer is configured.
package observe
