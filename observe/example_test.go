package observe_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xkelxmc/eden-tanstack-query/observe"
)

func ExampleRouteMeta_SpanName() {
	meta := observe.RouteMeta{Path: []string{"users", "posts", "get"}, Kind: "query"}
	fmt.Println(meta.SpanName())
	fmt.Println(meta.DottedPath())
	// Output:
	// edenquery.query.users.posts.get
	// users.posts.get
}

func ExampleLogger_WithRoute() {
	var buf bytes.Buffer
	logger := observe.NewLoggerWithWriter("info", &buf)

	routeLogger := logger.WithRoute(observe.RouteMeta{Path: []string{"users", "get"}})
	routeLogger.Info(context.Background(), "fetched", observe.Field{Key: "input", Value: "private"})

	out := buf.String()
	fmt.Println("Contains route.path:", strings.Contains(out, `"route.path":"users.get"`))
	fmt.Println("Input redacted:", strings.Contains(out, `"input":"[REDACTED]"`))
	// Output:
	// Contains route.path: true
	// Input redacted: true
}

func ExampleMiddleware_Wrap() {
	ctx := context.Background()

	obs, _ := observe.NewObserver(ctx, observe.Config{
		ServiceName: "example",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none"},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
	})
	defer func() {
		_ = obs.Shutdown(ctx)
	}()

	mw, _ := observe.MiddlewareFromObserver(obs)

	fetch := mw.Wrap(func(ctx context.Context, route observe.RouteMeta, input any) (any, error) {
		return map[string]string{"route": route.DottedPath()}, nil
	})

	result, err := fetch(ctx, observe.RouteMeta{Path: []string{"users", "get"}, Kind: "query"}, nil)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	fmt.Printf("Result: %v\n", result)
	// Output:
	// Result: map[route:users.get]
}

func ExampleParseLogLevel() {
	for _, s := range []string{"debug", "warn", "unknown"} {
		fmt.Printf("%s -> %s\n", s, observe.ParseLogLevel(s))
	}
	// Output:
	// debug -> debug
	// warn -> warn
	// unknown -> info
}
