package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

// HandlerFunc handles one routed call. Returning an *Error sends that status
// and value; any other error becomes a 500.
type HandlerFunc func(ctx context.Context, req Request) (any, error)

// Router is a static route table. Patterns use ":name" or "{name}" for
// parameter segments, e.g. "/users/:id/posts/:postId".
//
// Parameters are bound by position: a Params call fills whichever parameter
// segment sits at the current position, whatever key the caller used.
//
// Over HTTP the routes are served by a chi mux. Register every route before
// calling ServeHTTP.
type Router struct {
	mu   sync.RWMutex
	root *routeNode
	mux  *chi.Mux
}

type routeNode struct {
	children  map[string]*routeNode
	param     *routeNode
	paramName string
	handlers  map[string]HandlerFunc
}

func newRouteNode() *routeNode {
	return &routeNode{
		children: make(map[string]*routeNode),
		handlers: make(map[string]HandlerFunc),
	}
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	mux := chi.NewRouter()
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "NOT_FOUND")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED")
	})
	return &Router{root: newRouteNode(), mux: mux}
}

// Handle registers h for method at pattern.
func (r *Router) Handle(method, pattern string, h HandlerFunc) error {
	if !IsMethod(method) {
		return fmt.Errorf("%w: %q", ErrMethodNotFound, method)
	}
	if h == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrInvalidPattern, pattern)
	}

	segments := splitPath(pattern)
	seen := make(map[string]bool)
	for _, seg := range segments {
		if name, isParam := paramSegment(seg); isParam && name != "" {
			if seen[name] {
				return fmt.Errorf("%w: duplicate parameter %q in %q", ErrInvalidPattern, name, pattern)
			}
			seen[name] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	node := r.root
	muxPattern := make([]string, 0, len(segments))
	for _, seg := range segments {
		name, isParam := paramSegment(seg)
		if isParam {
			muxPattern = append(muxPattern, "{"+name+"}")
			if name == "" {
				return fmt.Errorf("%w: empty parameter in %q", ErrInvalidPattern, pattern)
			}
			if node.param == nil {
				node.param = newRouteNode()
				node.paramName = name
			} else if node.paramName != name {
				return fmt.Errorf("%w: parameter %q conflicts with %q in %q",
					ErrInvalidPattern, name, node.paramName, pattern)
			}
			node = node.param
			continue
		}
		muxPattern = append(muxPattern, seg)
		child, ok := node.children[seg]
		if !ok {
			child = newRouteNode()
			node.children[seg] = child
		}
		node = child
	}

	node.handlers[strings.ToUpper(method)] = h
	r.mux.MethodFunc(strings.ToUpper(method), "/"+strings.Join(muxPattern, "/"), serveRoute(h))
	return nil
}

// MustHandle is like Handle but panics on error.
func (r *Router) MustHandle(method, pattern string, h HandlerFunc) {
	if err := r.Handle(method, pattern, h); err != nil {
		panic(err)
	}
}

// Root returns the route tree root.
func (r *Router) Root() Node {
	return &routeCursor{router: r, node: r.root}
}

func splitPath(p string) []string {
	var out []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func paramSegment(seg string) (string, bool) {
	if strings.HasPrefix(seg, ":") {
		return seg[1:], true
	}
	if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
		return seg[1 : len(seg)-1], true
	}
	return "", false
}

// routeCursor is an immutable position in the router's tree.
type routeCursor struct {
	router *Router
	node   *routeNode
	params map[string]string
}

func (c *routeCursor) Child(name string) (Node, error) {
	c.router.mu.RLock()
	child, ok := c.node.children[name]
	c.router.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSegmentNotFound, name)
	}
	return &routeCursor{router: c.router, node: child, params: c.params}, nil
}

func (c *routeCursor) Params(params map[string]any) (Node, error) {
	c.router.mu.RLock()
	next, name := c.node.param, c.node.paramName
	c.router.mu.RUnlock()
	if next == nil {
		return nil, ErrNoParamSegment
	}
	v, err := paramValue(params)
	if err != nil {
		return nil, err
	}
	bound := make(map[string]string, len(c.params)+1)
	maps.Copy(bound, c.params)
	bound[name] = v
	return &routeCursor{router: c.router, node: next, params: bound}, nil
}

func (c *routeCursor) Endpoint(method string) (Endpoint, error) {
	c.router.mu.RLock()
	h, ok := c.node.handlers[strings.ToUpper(method)]
	c.router.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, method)
	}
	params := c.params
	return EndpointFunc(func(ctx context.Context, req Request) (Result, error) {
		req.PathParams = maps.Clone(params)
		if req.PathParams == nil {
			req.PathParams = map[string]string{}
		}
		return invoke(ctx, h, req), nil
	}), nil
}

// invoke runs a handler and maps its outcome onto a Result.
func invoke(ctx context.Context, h HandlerFunc, req Request) Result {
	data, err := h(ctx, req)
	if err == nil {
		return Result{Data: data, Status: http.StatusOK}
	}
	var te *Error
	if errors.As(err, &te) {
		return Result{Error: te, Status: te.Status}
	}
	return Result{
		Error:  NewError(http.StatusInternalServerError, err.Error()),
		Status: http.StatusInternalServerError,
	}
}

// ServeHTTP serves the routes over HTTP with JSON bodies.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// serveRoute adapts h to a chi handler. Query values become strings (or
// lists of strings) and the body is decoded as JSON.
func serveRoute(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		params := make(map[string]string)
		if rctx := chi.RouteContext(req.Context()); rctx != nil {
			for i, key := range rctx.URLParams.Keys {
				v := rctx.URLParams.Values[i]
				if unescaped, err := url.PathUnescape(v); err == nil {
					v = unescaped
				}
				params[key] = v
			}
		}

		query := make(map[string]any)
		for k, vs := range req.URL.Query() {
			if len(vs) == 1 {
				query[k] = vs[0]
				continue
			}
			items := make([]any, len(vs))
			for i, v := range vs {
				items[i] = v
			}
			query[k] = items
		}

		var body any
		if req.Body != nil {
			raw, err := io.ReadAll(io.LimitReader(req.Body, maxResponseBytes))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, err.Error())
				return
			}
			if len(raw) > 0 {
				if err := json.Unmarshal(raw, &body); err != nil {
					writeJSON(w, http.StatusBadRequest, "invalid JSON body")
					return
				}
			}
		}

		res := invoke(req.Context(), h, Request{
			Query:      query,
			Body:       body,
			Headers:    req.Header,
			PathParams: params,
		})
		if res.Error != nil {
			var te *Error
			if errors.As(res.Error, &te) {
				writeJSON(w, te.Status, te.Value)
				return
			}
			writeJSON(w, http.StatusInternalServerError, res.Error.Error())
			return
		}
		writeJSON(w, res.Status, res.Data)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Ensure Router implements http.Handler
var _ http.Handler = (*Router)(nil)
