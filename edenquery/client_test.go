package edenquery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/xkelxmc/eden-tanstack-query/auth"
	"github.com/xkelxmc/eden-tanstack-query/config"
	"github.com/xkelxmc/eden-tanstack-query/transport"
)

func newAuthServer(t *testing.T, secret string) *httptest.Server {
	t.Helper()
	router := transport.NewRouter()
	router.MustHandle("get", "/users/:id", func(ctx context.Context, req transport.Request) (any, error) {
		return map[string]any{
			"id":     req.PathParams["id"],
			"caller": auth.SubjectFromContext(ctx),
			"search": req.Query.(map[string]any)["search"],
		}, nil
	})
	router.MustHandle("post", "/users", func(_ context.Context, req transport.Request) (any, error) {
		return req.Body, nil
	})

	verifier, err := auth.NewVerifier(auth.VerifierConfig{Secret: []byte(secret), Issuer: "edenquery"})
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}
	srv := httptest.NewServer(auth.RequireBearer(verifier, router))
	t.Cleanup(srv.Close)
	return srv
}

func TestFromConfig_EndToEnd(t *testing.T) {
	srv := newAuthServer(t, "shared")

	cfg := config.Default()
	cfg.BaseURL = srv.URL
	cfg.Timeout = 5 * time.Second
	cfg.Auth.JWT = config.JWTConfig{Secret: "shared", Issuer: "edenquery", Subject: "svc-reports"}

	c, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	opts := c.Path("users").Params(map[string]any{"id": 42}).Get().QueryOptions(map[string]any{"search": "a"})
	if got := mustJSON(t, opts.QueryKey); got != `[["users","get"],{"input":{"input":{"search":"a"},"params":[{"position":1,"values":{"id":42}}]},"type":"query"}]` {
		t.Errorf("QueryKey = %s", got)
	}

	got, err := opts.QueryFn.Fetch(context.Background(), QueryContext{QueryKey: opts.QueryKey})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	want := map[string]any{"id": "42", "caller": "svc-reports", "search": "a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
	}

	created, err := c.Path("users").Post().MutationOptions().MutationFn(context.Background(), map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("MutationFn() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "ada"}, created); diff != "" {
		t.Errorf("MutationFn() mismatch (-want +got):\n%s", diff)
	}
}

func TestFromConfig_TransportErrorSurfaces(t *testing.T) {
	srv := newAuthServer(t, "shared")

	cfg := config.Default()
	cfg.BaseURL = srv.URL

	c, err := FromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	_, err = c.Path("users").Params(map[string]any{"id": "1"}).Get().
		QueryOptions(nil).QueryFn.Fetch(context.Background(), QueryContext{})

	var te *transport.Error
	if !errors.As(err, &te) {
		t.Fatalf("Fetch() error = %v, want *transport.Error", err)
	}
	if te.Status != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", te.Status)
	}
}

func TestFromConfig_Invalid(t *testing.T) {
	if _, err := FromConfig(context.Background(), config.Default()); !errors.Is(err, config.ErrMissingBaseURL) {
		t.Fatalf("FromConfig() error = %v, want ErrMissingBaseURL", err)
	}

	cfg := config.Default()
	cfg.BaseURL = "not a url"
	if _, err := FromConfig(context.Background(), cfg); !errors.Is(err, transport.ErrInvalidBaseURL) {
		t.Fatalf("FromConfig() error = %v, want ErrInvalidBaseURL", err)
	}
}

func TestClient_CloseWithoutObserver(t *testing.T) {
	root, _ := newRecordingNode()
	c := newTestClient(t, root)
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
