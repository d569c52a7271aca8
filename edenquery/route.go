package edenquery

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/xkelxmc/eden-tanstack-query/observe"
	"github.com/xkelxmc/eden-tanstack-query/transport"
)

// Binding is one parameter record applied during navigation.
type Binding struct {
	// Position is the number of plain segments navigated before the binding.
	Position int
	Params   map[string]any
}

// Route is an immutable position in the route tree. Every method returns a
// new Route, so routes branching from the same value never interfere.
// The zero Route has no transport and every fetch built from it fails.
type Route struct {
	client   *Client
	segments []string
	bindings []Binding
}

// Path descends one segment per name.
func (r Route) Path(names ...string) Route {
	segments := make([]string, 0, len(r.segments)+len(names))
	segments = append(segments, r.segments...)
	segments = append(segments, names...)
	return Route{client: r.client, segments: segments, bindings: r.bindings}
}

// Params binds a parameter record to the parameter segment at the current
// position. Only the position correlates the binding with the route tree;
// the record's key names are not matched.
func (r Route) Params(params map[string]any) Route {
	bindings := make([]Binding, 0, len(r.bindings)+1)
	bindings = append(bindings, r.bindings...)
	bindings = append(bindings, Binding{Position: len(r.segments), Params: maps.Clone(params)})
	return Route{client: r.client, segments: r.segments, bindings: bindings}
}

// Segments returns a copy of the plain segments navigated so far.
func (r Route) Segments() []string {
	return slices.Clone(r.segments)
}

// Bindings returns a copy of the parameter bindings applied so far.
func (r Route) Bindings() []Binding {
	out := make([]Binding, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = Binding{Position: b.Position, Params: maps.Clone(b.Params)}
	}
	return out
}

// Get terminates the route at GET.
func (r Route) Get() *QueryProcedure { return r.queryProcedure("get") }

// Head terminates the route at HEAD.
func (r Route) Head() *QueryProcedure { return r.queryProcedure("head") }

// Options terminates the route at OPTIONS.
func (r Route) Options() *QueryProcedure { return r.queryProcedure("options") }

// Post terminates the route at POST.
func (r Route) Post() *MutationProcedure { return r.mutationProcedure("post") }

// Put terminates the route at PUT.
func (r Route) Put() *MutationProcedure { return r.mutationProcedure("put") }

// Patch terminates the route at PATCH.
func (r Route) Patch() *MutationProcedure { return r.mutationProcedure("patch") }

// Delete terminates the route at DELETE.
func (r Route) Delete() *MutationProcedure { return r.mutationProcedure("delete") }

// Method terminates the route at a method given by name. Read-only methods
// give a *QueryProcedure, the others a *MutationProcedure.
func (r Route) Method(name string) (Procedure, error) {
	method := strings.ToLower(name)
	if !transport.IsMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
	if transport.IsQueryMethod(method) {
		return r.queryProcedure(method), nil
	}
	return r.mutationProcedure(method), nil
}

func (r Route) queryProcedure(method string) *QueryProcedure {
	return &QueryProcedure{procedure{route: r, method: method}}
}

func (r Route) mutationProcedure(method string) *MutationProcedure {
	return &MutationProcedure{procedure{route: r, method: method}}
}

// fullPath returns the segments followed by method.
func (r Route) fullPath(method string) []string {
	path := make([]string, 0, len(r.segments)+1)
	path = append(path, r.segments...)
	return append(path, method)
}

// resolve walks the transport tree, applying each binding at its recorded
// position, and returns the endpoint for method.
func (r Route) resolve(method string) (transport.Endpoint, error) {
	dotted := strings.Join(r.fullPath(method), ".")
	fail := func(segment string, err error) error {
		return &PathError{Path: dotted, Segment: segment, Err: err}
	}

	var node transport.Node
	if r.client != nil {
		node = r.client.root
	}
	next := 0

	bind := func(pos int) error {
		for next < len(r.bindings) && r.bindings[next].Position == pos {
			segment := fmt.Sprintf("params[%d]", next)
			if node == nil {
				return fail(segment, ErrNilSegment)
			}
			bound, err := node.Params(maps.Clone(r.bindings[next].Params))
			if err != nil {
				return fail(segment, err)
			}
			node = bound
			next++
		}
		return nil
	}

	for i, seg := range r.segments {
		if err := bind(i); err != nil {
			return nil, err
		}
		if node == nil {
			return nil, fail(seg, ErrNilSegment)
		}
		child, err := node.Child(seg)
		if err != nil {
			return nil, fail(seg, err)
		}
		node = child
	}
	if err := bind(len(r.segments)); err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fail(method, ErrNilSegment)
	}

	ep, err := node.Endpoint(method)
	if err != nil {
		return nil, fail(method, err)
	}
	if ep == nil {
		return nil, fail(method, ErrNilSegment)
	}
	return ep, nil
}

// keyInput embeds the bound parameter records next to the caller's input as
// {"params":[{"position":p,"values":{...}},...],"input":...}. Records stay
// keyed by position, so neither same-named parameters at different positions
// nor input fields named like a parameter can make two routes share a key.
func (r Route) keyInput(input any, kind Kind) any {
	if len(r.bindings) == 0 || IsSkip(input) {
		return input
	}
	params := make([]any, len(r.bindings))
	for i, b := range r.bindings {
		params[i] = map[string]any{
			"position": b.Position,
			"values":   maps.Clone(b.Params),
		}
	}
	out := map[string]any{"params": params}
	if value, present := normalize(input); present {
		if kind == KindInfinite {
			value = stripPageFields(value)
		}
		out["input"] = value
	}
	return out
}

// call resolves the endpoint and performs req. A non-nil Result.Error is
// returned as-is.
func (r Route) call(ctx context.Context, method string, kind string, req transport.Request) (any, error) {
	route := observe.RouteMeta{Path: r.fullPath(method), Kind: kind}

	fetch := func(ctx context.Context, meta observe.RouteMeta, _ any) (any, error) {
		ep, err := r.resolve(method)
		if err != nil {
			r.logger().WithRoute(meta).Debug(ctx, "route resolve failed", observe.Field{Key: "error", Value: err.Error()})
			return nil, err
		}
		res, err := ep.Call(ctx, req)
		if err != nil {
			return nil, err
		}
		if res.Error != nil {
			return nil, res.Error
		}
		return res.Data, nil
	}

	if r.client != nil && r.client.middleware != nil {
		fetch = r.client.middleware.Wrap(fetch)
	}
	if req.Body != nil {
		return fetch(ctx, route, req.Body)
	}
	return fetch(ctx, route, req.Query)
}

func (r Route) logger() observe.Logger {
	if r.client == nil || r.client.logger == nil {
		return observe.NopLogger()
	}
	return r.client.logger
}

func (r Route) abortOnUnmount(s settings) bool {
	if s.abortOnUnmount != nil {
		return *s.abortOnUnmount
	}
	return r.client != nil && r.client.abortOnUnmount
}
