package edenquery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xkelxmc/eden-tanstack-query/auth"
	"github.com/xkelxmc/eden-tanstack-query/config"
	"github.com/xkelxmc/eden-tanstack-query/observe"
	"github.com/xkelxmc/eden-tanstack-query/transport"
)

// Client holds the transport tree that descriptors re-navigate.
// It is immutable after construction and safe for concurrent use.
type Client struct {
	root           transport.Node
	logger         observe.Logger
	middleware     *observe.Middleware
	abortOnUnmount bool
	observer       observe.Observer
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger used for navigation diagnostics.
func WithLogger(l observe.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMiddleware runs every fetch and mutation through mw.
func WithMiddleware(mw *observe.Middleware) ClientOption {
	return func(c *Client) {
		c.middleware = mw
	}
}

// WithDefaultAbortOnUnmount sets the abort behavior of descriptors that do
// not use WithAbortOnUnmount.
func WithDefaultAbortOnUnmount(abort bool) ClientOption {
	return func(c *Client) {
		c.abortOnUnmount = abort
	}
}

// New creates a Client over a transport tree root.
func New(root transport.Node, opts ...ClientOption) (*Client, error) {
	if root == nil {
		return nil, ErrNilTransport
	}
	c := &Client{root: root, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the empty route.
func (c *Client) Root() Route {
	return Route{client: c}
}

// Path is shorthand for c.Root().Path(names...).
func (c *Client) Path(names ...string) Route {
	return c.Root().Path(names...)
}

// Close shuts down telemetry created by FromConfig. It is a no-op for
// clients built with New.
func (c *Client) Close(ctx context.Context) error {
	if c.observer == nil {
		return nil
	}
	return c.observer.Shutdown(ctx)
}

// FromConfig builds an HTTP-backed Client from cfg: base URL, timeout,
// default headers, bearer token source and telemetry.
func FromConfig(ctx context.Context, cfg config.Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientOpts := []transport.ClientOption{
		transport.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	for k, v := range cfg.Headers {
		clientOpts = append(clientOpts, transport.WithHeader(k, v))
	}

	tokens, err := tokenSource(cfg.Auth)
	if err != nil {
		return nil, err
	}
	if tokens != nil {
		clientOpts = append(clientOpts, transport.WithTokenSource(tokens))
	}

	httpClient, err := transport.NewClient(cfg.BaseURL, clientOpts...)
	if err != nil {
		return nil, err
	}

	obs, err := observe.NewObserver(ctx, cfg.Observe)
	if err != nil {
		return nil, fmt.Errorf("edenquery: observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("edenquery: middleware: %w", err)
	}

	base := []ClientOption{
		WithLogger(obs.Logger()),
		WithMiddleware(mw),
		WithDefaultAbortOnUnmount(cfg.AbortOnUnmount),
	}
	c, err := New(httpClient.Root(), append(base, opts...)...)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	c.observer = obs
	return c, nil
}

func tokenSource(cfg config.AuthConfig) (auth.TokenSource, error) {
	switch {
	case cfg.JWT.Secret != "":
		src, err := auth.NewJWTSource(auth.SignerConfig{
			Secret:   []byte(cfg.JWT.Secret),
			Issuer:   cfg.JWT.Issuer,
			Subject:  cfg.JWT.Subject,
			Audience: cfg.JWT.Audience,
			TTL:      cfg.JWT.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("edenquery: jwt token source: %w", err)
		}
		return src, nil
	case cfg.Token != "":
		return auth.StaticToken(cfg.Token), nil
	default:
		return nil, nil
	}
}
