package querycache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/xkelxmc/eden-tanstack-query/edenquery"
	"github.com/xkelxmc/eden-tanstack-query/observe"
	"github.com/xkelxmc/eden-tanstack-query/transport"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.Retry = 0
	p.RetryDelay = time.Millisecond
	p.MaxRetryDelay = 5 * time.Millisecond
	return p
}

func userKey(id int) edenquery.QueryKey {
	return edenquery.BuildQueryKey([]string{"users", "get"}, map[string]any{"id": id}, edenquery.KindQuery)
}

func countingQuery(key edenquery.QueryKey, calls *atomic.Int32, data any) edenquery.QueryOptions {
	return edenquery.QueryOptions{
		QueryKey: key,
		QueryFn: edenquery.QueryFunc(func(context.Context, edenquery.QueryContext) (any, error) {
			calls.Add(1)
			return data, nil
		}),
	}
}

func ptr[T any](v T) *T { return &v }

func TestFetchQuery_FreshDataServedFromCache(t *testing.T) {
	clock := newFakeClock()
	c := New(WithPolicy(testPolicy()), WithClock(clock.now))

	var calls atomic.Int32
	opts := countingQuery(userKey(1), &calls, "alice")
	opts.StaleTime = ptr(time.Minute)

	for range 3 {
		got, err := c.FetchQuery(context.Background(), opts)
		if err != nil {
			t.Fatalf("FetchQuery() error = %v", err)
		}
		if got != "alice" {
			t.Fatalf("FetchQuery() = %v, want alice", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}

	clock.advance(2 * time.Minute)
	if _, err := c.FetchQuery(context.Background(), opts); err != nil {
		t.Fatalf("FetchQuery() error = %v", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fetch calls after stale = %d, want 2", n)
	}
}

func TestFetchQuery_StaleImmediatelyByDefault(t *testing.T) {
	c := New(WithPolicy(testPolicy()), WithClock(newFakeClock().now))

	var calls atomic.Int32
	opts := countingQuery(userKey(1), &calls, "alice")
	for range 2 {
		if _, err := c.FetchQuery(context.Background(), opts); err != nil {
			t.Fatalf("FetchQuery() error = %v", err)
		}
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}
}

func TestFetchQuery_DistinctKeys(t *testing.T) {
	c := New(WithPolicy(testPolicy()))
	ctx := context.Background()

	var calls atomic.Int32
	a := countingQuery(userKey(1), &calls, "a")
	b := countingQuery(userKey(2), &calls, "b")
	a.StaleTime = ptr(time.Hour)
	b.StaleTime = ptr(time.Hour)

	if _, err := c.FetchQuery(ctx, a); err != nil {
		t.Fatal(err)
	}
	if _, err := c.FetchQuery(ctx, b); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}
	if got, _ := c.GetQueryData(userKey(2)); got != "b" {
		t.Fatalf("GetQueryData(2) = %v, want b", got)
	}
}

func TestFetchQuery_ConcurrentCallersShareOneFetch(t *testing.T) {
	c := New(WithPolicy(testPolicy()))

	release := make(chan struct{})
	var calls atomic.Int32
	opts := edenquery.QueryOptions{
		QueryKey: userKey(1),
		QueryFn: edenquery.QueryFunc(func(context.Context, edenquery.QueryContext) (any, error) {
			calls.Add(1)
			<-release
			return "alice", nil
		}),
	}
	opts.StaleTime = ptr(time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.FetchQuery(context.Background(), opts)
		}(i)
	}

	deadline := time.After(time.Second)
	for calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("fetch never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(release)
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d error = %v", i, errs[i])
		}
		if results[i] != "alice" {
			t.Fatalf("caller %d = %v, want alice", i, results[i])
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fetch calls = %d, want 1", n)
	}
}

func TestFetchQuery_RetriesTransientErrors(t *testing.T) {
	p := testPolicy()
	p.Retry = 2
	c := New(WithPolicy(p))

	var calls atomic.Int32
	opts := edenquery.QueryOptions{
		QueryKey: userKey(1),
		QueryFn: edenquery.QueryFunc(func(context.Context, edenquery.QueryContext) (any, error) {
			if calls.Add(1) < 3 {
				return nil, errors.New("unavailable")
			}
			return "alice", nil
		}),
	}

	got, err := c.FetchQuery(context.Background(), opts)
	if err != nil {
		t.Fatalf("FetchQuery() error = %v", err)
	}
	if got != "alice" || calls.Load() != 3 {
		t.Fatalf("FetchQuery() = %v after %d calls, want alice after 3", got, calls.Load())
	}
}

func TestFetchQuery_DescriptorRetryOverridesPolicy(t *testing.T) {
	p := testPolicy()
	p.Retry = 5
	c := New(WithPolicy(p))

	boom := errors.New("boom")
	var calls atomic.Int32
	opts := edenquery.QueryOptions{
		QueryKey: userKey(1),
		QueryFn: edenquery.QueryFunc(func(context.Context, edenquery.QueryContext) (any, error) {
			calls.Add(1)
			return nil, boom
		}),
	}
	opts.Retry = ptr(1)

	if _, err := c.FetchQuery(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("FetchQuery() error = %v, want boom", err)
	}
	if n := calls.Load(); n != 2 {
		t.Fatalf("fetch calls = %d, want 2", n)
	}
}

func TestFetchQuery_ErrorsAreNotCached(t *testing.T) {
	c := New(WithPolicy(testPolicy()))

	boom := errors.New("boom")
	opts := edenquery.QueryOptions{
		QueryKey: userKey(1),
		QueryFn: edenquery.QueryFunc(func(context.Context, edenquery.QueryContext) (any, error) {
			return nil, boom
		}),
	}

	if _, err := c.FetchQuery(context.Background(), opts); !errors.Is(err, boom) {
		t.Fatalf("FetchQuery() error = %v, want boom", err)
	}
	if _, ok := c.GetQueryData(userKey(1)); ok {
		t.Fatal("GetQueryData() found data after failed fetch")
	}
}

func TestFetchQuery_SkipTokenIsNotRetried(t *testing.T) {
	p := testPolicy()
	p.Retry = 3
	c := New(WithPolicy(p))

	opts := edenquery.QueryOptions{QueryKey: userKey(1), QueryFn: edenquery.SkipToken}
	if _, err := c.FetchQuery(context.Background(), opts); !errors.Is(err, edenquery.ErrQuerySkipped) {
		t.Fatalf("FetchQuery() error = %v, want ErrQuerySkipped", err)
	}
}

func TestFetchQuery_NoQueryFn(t *testing.T) {
	c := New()
	if _, err := c.FetchQuery(context.Background(), edenquery.QueryOptions{QueryKey: userKey(1)}); !errors.Is(err, ErrNoQueryFn) {
		t.Fatalf("FetchQuery() error = %v, want ErrNoQueryFn", err)
	}
}

func TestFetchQuery_LogsCacheHit(t *testing.T) {
	var buf bytes.Buffer
	c := New(WithPolicy(testPolicy()), WithLogger(observe.NewLoggerWithWriter("debug", &buf)))

	var calls atomic.Int32
	opts := countingQuery(userKey(1), &calls, "alice")
	opts.StaleTime = ptr(time.Hour)
	for range 2 {
		if _, err := c.FetchQuery(context.Background(), opts); err != nil {
			t.Fatal(err)
		}
	}

	out := buf.String()
	if !strings.Contains(out, "query cache hit") {
		t.Fatalf("log output missing cache hit: %s", out)
	}
	if !strings.Contains(out, "users.get") {
		t.Fatalf("log output missing route path: %s", out)
	}
}

func TestEnsureQueryData_ReturnsStaleData(t *testing.T) {
	c := New(WithPolicy(testPolicy()))
	if err := c.SetQueryData(userKey(1), "cached"); err != nil {
		t.Fatalf("SetQueryData() error = %v", err)
	}

	var calls atomic.Int32
	got, err := c.EnsureQueryData(context.Background(), countingQuery(userKey(1), &calls, "fetched"))
	if err != nil {
		t.Fatalf("EnsureQueryData() error = %v", err)
	}
	if got != "cached" || calls.Load() != 0 {
		t.Fatalf("EnsureQueryData() = %v after %d calls, want cached after 0", got, calls.Load())
	}

	got, err = c.EnsureQueryData(context.Background(), countingQuery(userKey(2), &calls, "fetched"))
	if err != nil {
		t.Fatalf("EnsureQueryData() error = %v", err)
	}
	if got != "fetched" || calls.Load() != 1 {
		t.Fatalf("EnsureQueryData() = %v after %d calls, want fetched after 1", got, calls.Load())
	}
}

func TestGetQueryState(t *testing.T) {
	clock := newFakeClock()
	c := New(WithClock(clock.now))

	if _, ok := c.GetQueryState(userKey(1)); ok {
		t.Fatal("GetQueryState() found an entry in an empty cache")
	}
	if err := c.SetQueryData(userKey(1), "alice"); err != nil {
		t.Fatal(err)
	}

	state, ok := c.GetQueryState(userKey(1))
	if !ok {
		t.Fatal("GetQueryState() found no entry")
	}
	if state.Data != "alice" || !state.UpdatedAt.Equal(clock.now()) || state.Invalidated {
		t.Fatalf("GetQueryState() = %+v", state)
	}
	if !state.Key.Equal(userKey(1)) {
		t.Fatalf("GetQueryState().Key = %v, want %v", state.Key, userKey(1))
	}
}

func TestGCTime_ExpiresEntries(t *testing.T) {
	clock := newFakeClock()
	p := testPolicy()
	p.GCTime = time.Minute
	c := New(WithPolicy(p), WithClock(clock.now))

	if err := c.SetQueryData(userKey(1), "alice"); err != nil {
		t.Fatal(err)
	}
	clock.advance(30 * time.Second)
	if _, ok := c.GetQueryData(userKey(1)); !ok {
		t.Fatal("entry expired before gc time")
	}

	clock.advance(time.Minute)
	if _, ok := c.GetQueryData(userKey(1)); ok {
		t.Fatal("entry survived past gc time")
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("Len() = %d, want 0", n)
	}
}

func TestInvalidateQueries(t *testing.T) {
	c := New(WithPolicy(testPolicy()))
	posts := edenquery.BuildQueryKey([]string{"posts", "get"}, nil, edenquery.KindQuery)
	for _, k := range []edenquery.QueryKey{userKey(1), userKey(2), posts} {
		if err := c.SetQueryData(k, "v"); err != nil {
			t.Fatal(err)
		}
	}

	all := edenquery.QueryFilters{QueryKey: edenquery.BuildQueryKey([]string{"users", "get"}, nil, edenquery.KindAny)}
	if n := c.InvalidateQueries(all); n != 2 {
		t.Fatalf("InvalidateQueries() = %d, want 2", n)
	}

	for _, tt := range []struct {
		key  edenquery.QueryKey
		want bool
	}{
		{userKey(1), true},
		{userKey(2), true},
		{posts, false},
	} {
		state, ok := c.GetQueryState(tt.key)
		if !ok {
			t.Fatalf("GetQueryState(%v) found no entry", tt.key)
		}
		if state.Invalidated != tt.want {
			t.Errorf("GetQueryState(%v).Invalidated = %v, want %v", tt.key, state.Invalidated, tt.want)
		}
		if state.Data != "v" {
			t.Errorf("invalidation dropped data of %v", tt.key)
		}
	}

	var calls atomic.Int32
	opts := countingQuery(userKey(1), &calls, "fresh")
	opts.StaleTime = ptr(time.Hour)
	got, err := c.FetchQuery(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if got != "fresh" || calls.Load() != 1 {
		t.Fatalf("FetchQuery() after invalidation = %v after %d calls, want refetch", got, calls.Load())
	}
	if state, _ := c.GetQueryState(userKey(1)); state.Invalidated {
		t.Fatal("refetch did not clear invalidation")
	}
}

func TestRemoveQueries(t *testing.T) {
	c := New(WithPolicy(testPolicy()))
	for _, id := range []int{1, 2} {
		if err := c.SetQueryData(userKey(id), id); err != nil {
			t.Fatal(err)
		}
	}

	if n := c.RemoveQueries(edenquery.QueryFilters{QueryKey: userKey(1), Exact: true}); n != 1 {
		t.Fatalf("RemoveQueries(exact) = %d, want 1", n)
	}
	if _, ok := c.GetQueryData(userKey(1)); ok {
		t.Fatal("removed entry still cached")
	}

	onlyTwo := edenquery.QueryFilters{
		QueryKey: edenquery.BuildQueryKey([]string{"users"}, nil, ""),
		Predicate: func(k edenquery.QueryKey) bool {
			return k.Equal(userKey(2))
		},
	}
	if n := c.RemoveQueries(onlyTwo); n != 1 {
		t.Fatalf("RemoveQueries(predicate) = %d, want 1", n)
	}
	if n := c.Len(); n != 0 {
		t.Fatalf("Len() = %d, want 0", n)
	}
}

func TestClear(t *testing.T) {
	c := New()
	_ = c.SetQueryData(userKey(1), 1)
	_ = c.SetQueryData(userKey(2), 2)
	c.Clear()
	if n := c.Len(); n != 0 {
		t.Fatalf("Len() after Clear = %d, want 0", n)
	}
}

func TestMutate(t *testing.T) {
	c := New(WithPolicy(testPolicy()))

	var got []any
	opts := edenquery.MutationOptions{
		MutationKey: edenquery.BuildMutationKey([]string{"users", "post"}),
		MutationFn: func(_ context.Context, variables any) (any, error) {
			got = append(got, variables)
			return map[string]any{"ok": true}, nil
		},
	}

	first, err := c.Mutate(context.Background(), opts, map[string]any{"name": "a"})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}
	second, err := c.Mutate(context.Background(), opts, map[string]any{"name": "b"})
	if err != nil {
		t.Fatalf("Mutate() error = %v", err)
	}

	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("mutation IDs = %q, %q, want distinct non-empty", first.ID, second.ID)
	}
	if diff := cmp.Diff([]string{"users", "post"}, first.Key.Path); diff != "" {
		t.Fatalf("Mutate().Key mismatch (-want +got):\n%s", diff)
	}
	want := []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("variables mismatch (-want +got):\n%s", diff)
	}
	if c.Len() != 0 {
		t.Fatal("mutation results were cached")
	}
}

func TestMutate_Retry(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		retry     *int
		wantCalls int32
	}{
		{name: "policy default does not retry", retry: nil, wantCalls: 1},
		{name: "descriptor retry", retry: ptr(2), wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(WithPolicy(testPolicy()))
			var calls atomic.Int32
			opts := edenquery.MutationOptions{
				MutationFn: func(context.Context, any) (any, error) {
					calls.Add(1)
					return nil, boom
				},
			}
			opts.Retry = tt.retry

			if _, err := c.Mutate(context.Background(), opts, nil); !errors.Is(err, boom) {
				t.Fatalf("Mutate() error = %v, want boom", err)
			}
			if n := calls.Load(); n != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestMutate_NoMutationFn(t *testing.T) {
	if _, err := New().Mutate(context.Background(), edenquery.MutationOptions{}, nil); !errors.Is(err, ErrNoQueryFn) {
		t.Fatalf("Mutate() error = %v, want ErrNoQueryFn", err)
	}
}

func TestFetchQuery_ParamsSelectDistinctEntries(t *testing.T) {
	router := transport.NewRouter()
	router.MustHandle("GET", "/users/:id/posts/:postId", func(_ context.Context, req transport.Request) (any, error) {
		return "user=" + req.PathParams["id"] + " post=" + req.PathParams["postId"], nil
	})
	eden, err := edenquery.New(router.Root())
	if err != nil {
		t.Fatalf("edenquery.New() error = %v", err)
	}
	post := func(user, post int) edenquery.QueryOptions {
		return eden.Path("users").Params(map[string]any{"id": user}).
			Path("posts").Params(map[string]any{"id": post}).Get().
			QueryOptions(nil, edenquery.WithStaleTime(time.Hour))
	}

	c := New(WithPolicy(testPolicy()))
	for _, tt := range []struct {
		opts edenquery.QueryOptions
		want string
	}{
		{post(1, 9), "user=1 post=9"},
		{post(3, 9), "user=3 post=9"},
		{post(1, 9), "user=1 post=9"},
	} {
		got, err := c.FetchQuery(context.Background(), tt.opts)
		if err != nil {
			t.Fatalf("FetchQuery() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("FetchQuery() = %v, want %v", got, tt.want)
		}
	}
	if n := c.Len(); n != 2 {
		t.Fatalf("Len() = %d, want 2", n)
	}
}

func TestFetchQuery_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	c := New(WithPolicy(testPolicy()))

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var fetchErr atomic.Value
	opts := edenquery.QueryOptions{
		QueryKey: userKey(1),
		QueryFn: edenquery.QueryFunc(func(ctx context.Context, _ edenquery.QueryContext) (any, error) {
			once.Do(func() { close(started) })
			<-release
			if err := ctx.Err(); err != nil {
				fetchErr.Store(err)
			}
			return "alice", nil
		}),
	}
	opts.StaleTime = ptr(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.FetchQuery(ctx, opts)
		firstErr <- err
	}()
	<-started

	second := make(chan any, 1)
	go func() {
		v, err := c.FetchQuery(context.Background(), opts)
		if err != nil {
			second <- err
			return
		}
		second <- v
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled caller error = %v, want context.Canceled", err)
	}

	close(release)
	if got := <-second; got != "alice" {
		t.Fatalf("waiting caller = %v, want alice", got)
	}
	if err := fetchErr.Load(); err != nil {
		t.Fatalf("shared fetch saw ctx error %v", err)
	}
	if got, ok := c.GetQueryData(userKey(1)); !ok || got != "alice" {
		t.Fatalf("GetQueryData() = %v, %v, want alice", got, ok)
	}
}
