package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// DefaultTimeout is the timeout of the default HTTP client.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 10 << 20

// TokenSource supplies bearer tokens for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP implementation of the route tree. Segments and parameter
// values become URL path elements under the base URL. Each element is
// escaped on its own, so a value containing "/" stays one element.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	headers    http.Header
	tokens     TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a default header sent with every request.
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers.Add(key, value)
	}
}

// WithTokenSource sets the bearer token source for the Authorization header.
func WithTokenSource(ts TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// NewClient creates an HTTP client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrInvalidBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBaseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q needs scheme and host", ErrInvalidBaseURL, baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		headers:    make(http.Header),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Root returns the route tree root.
func (c *Client) Root() Node {
	return &httpNode{client: c}
}

// httpNode holds escaped path elements.
type httpNode struct {
	client *Client
	parts  []string
}

func (n *httpNode) Child(name string) (Node, error) {
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, name)
	}
	return n.with(name), nil
}

func (n *httpNode) Params(params map[string]any) (Node, error) {
	v, err := paramValue(params)
	if err != nil {
		return nil, err
	}
	if v == "" || v == "." || v == ".." {
		return nil, fmt.Errorf("%w: value %q is not a path element", ErrInvalidParams, v)
	}
	return n.with(v), nil
}

func (n *httpNode) with(element string) *httpNode {
	return &httpNode{client: n.client, parts: append(slices.Clone(n.parts), url.PathEscape(element))}
}

func (n *httpNode) Endpoint(method string) (Endpoint, error) {
	if !IsMethod(method) {
		return nil, fmt.Errorf("%w: %q", ErrMethodNotFound, method)
	}
	return &httpEndpoint{
		client: n.client,
		method: strings.ToUpper(method),
		parts:  slices.Clone(n.parts),
	}, nil
}

type httpEndpoint struct {
	client *Client
	method string
	parts  []string
}

// Call sends the request and decodes the response.
func (e *httpEndpoint) Call(ctx context.Context, req Request) (Result, error) {
	u, err := e.client.endpointURL(e.parts)
	if err != nil {
		return Result{}, err
	}

	values, err := EncodeQuery(req.Query)
	if err != nil {
		return Result{}, err
	}
	if len(values) > 0 {
		u.RawQuery = values.Encode()
	}

	var body io.Reader
	hasBody := req.Body != nil && e.method != http.MethodGet && e.method != http.MethodHead
	if hasBody {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return Result{}, fmt.Errorf("transport: encode body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, e.method, u.String(), body)
	if err != nil {
		return Result{}, fmt.Errorf("transport: build request: %w", err)
	}

	for k, vs := range e.client.headers {
		httpReq.Header[k] = slices.Clone(vs)
	}
	if hasBody {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if e.client.tokens != nil {
		token, err := e.client.tokens.Token(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("transport: token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}
	for k, vs := range req.Headers {
		httpReq.Header[http.CanonicalHeaderKey(k)] = slices.Clone(vs)
	}

	resp, err := e.client.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("transport: %s %s: %w", e.method, u.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("transport: read response: %w", err)
	}

	value, err := decodeBody(resp.Header.Get("Content-Type"), raw)
	if err != nil {
		return Result{}, err
	}

	res := Result{Status: resp.StatusCode, Headers: resp.Header}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		res.Error = NewError(resp.StatusCode, value)
		return res, nil
	}
	res.Data = value
	return res, nil
}

// endpointURL appends escaped path elements to the base URL. RawPath keeps
// the escaped form so that an escaped "/" is sent as %2F.
func (c *Client) endpointURL(parts []string) (*url.URL, error) {
	u := *c.baseURL
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + strings.Join(parts, "/")
	path, err := url.PathUnescape(raw)
	if err != nil {
		return nil, fmt.Errorf("transport: build path: %w", err)
	}
	u.Path, u.RawPath = path, raw
	return &u, nil
}

// decodeBody decodes JSON bodies and returns everything else as text.
func decodeBody(contentType string, raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("transport: decode response: %w", err)
		}
		return v, nil
	}
	return string(raw), nil
}

// EncodeQuery converts a query value into URL values.
// Nested objects are encoded as JSON strings; slices repeat the key.
func EncodeQuery(q any) (url.Values, error) {
	switch v := q.(type) {
	case nil:
		return nil, nil
	case url.Values:
		return v, nil
	case map[string]string:
		out := make(url.Values, len(v))
		for k, s := range v {
			out.Set(k, s)
		}
		return out, nil
	case map[string]any:
		out := make(url.Values, len(v))
		for k, val := range v {
			if err := addQueryValue(out, k, val); err != nil {
				return nil, err
			}
		}
		return out, nil
	default:
		data, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %T", ErrInvalidQuery, q)
		}
		return EncodeQuery(m)
	}
}

func addQueryValue(out url.Values, key string, val any) error {
	switch v := val.(type) {
	case nil:
		return nil
	case string:
		out.Add(key, v)
	case []any:
		for _, item := range v {
			if err := addQueryValue(out, key, item); err != nil {
				return err
			}
		}
	case []string:
		for _, item := range v {
			out.Add(key, item)
		}
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		out.Add(key, string(data))
	default:
		out.Add(key, fmt.Sprint(v))
	}
	return nil
}
