package fetch_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/fetch"
	"github.com/waabox/changesdeck/internal/observability"
)

// settled returns a notify hook and a channel receiving one value per settle.
func settled() (func(stage, key string), chan string) {
	ch := make(chan string, 64)
	return func(_, key string) { ch <- key }, ch
}

func waitSettled(t *testing.T, ch chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d settles (got %d)", n, i)
		}
	}
}

func TestFetchOnce_DispatchesLoaderExactlyOnce(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[string](cache, "builds")

	var calls int32
	release := make(chan struct{})
	loader := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "payload", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.FetchOnce("b1", loader)
		}()
	}
	wg.Wait()

	if !c.Get("b1").IsPending() {
		t.Fatalf("expected pending state, got %v", c.Get("b1").Phase)
	}
	close(release)
	waitSettled(t, ch, 1)

	for i := 0; i < 5; i++ {
		c.FetchOnce("b1", loader)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected loader to run once, ran %d times", got)
	}
	state := c.Get("b1")
	if !state.IsLoaded() || state.Payload != "payload" {
		t.Errorf("unexpected state: %+v", state)
	}
}

func TestFetchOnce_LoaderErrorRejects(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[int](cache, "jobs")

	boom := errors.New("boom")
	c.FetchOnce("j1", func(ctx context.Context) (int, error) { return 0, boom })
	waitSettled(t, ch, 1)

	state := c.Get("j1")
	if !state.IsErrored() || !errors.Is(state.Err, boom) {
		t.Errorf("expected errored state with boom, got %+v", state)
	}
}

func TestReject_NilErrorStillErrors(t *testing.T) {
	cache := fetch.NewCache(context.Background(), fetch.WithStrict(true))
	c := fetch.NewCoordinator[int](cache, "builds")

	if !c.Loading("b1") {
		t.Fatal("expected b1 to start loading")
	}
	c.Reject("b1", nil)

	state := c.Get("b1")
	if !state.IsErrored() || state.Err == nil {
		t.Fatalf("expected errored state with an error, got %+v", state)
	}
	if ok, err := fetch.AnyErrored([]fetch.State[int]{state}); !ok || err == nil {
		t.Errorf("expected AnyErrored to report an error, got %v %v", ok, err)
	}
}

func TestFetchOnce_LoaderPanicRejects(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[int](cache, "jobs")

	c.FetchOnce("j1", func(ctx context.Context) (int, error) { panic("bad payload") })
	waitSettled(t, ch, 1)

	if !c.Get("j1").IsErrored() {
		t.Errorf("expected errored state, got %v", c.Get("j1").Phase)
	}
}

func TestFetchMapOnce_SingleGatePerBatch(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[string](cache, "builds")

	var mu sync.Mutex
	dispatched := map[string]int{}
	factory := func(key string) fetch.Loader[string] {
		return func(ctx context.Context) (string, error) {
			mu.Lock()
			dispatched[key]++
			mu.Unlock()
			return key, nil
		}
	}

	c.FetchMapOnce("builds", []string{"a", "b", "a"}, factory)
	c.FetchMapOnce("builds", []string{"a", "b", "c"}, factory)
	waitSettled(t, ch, 2)

	if !c.Dispatched("builds") {
		t.Error("expected batch to be marked dispatched")
	}
	mu.Lock()
	defer mu.Unlock()
	if dispatched["a"] != 1 || dispatched["b"] != 1 {
		t.Errorf("expected a and b dispatched once, got %v", dispatched)
	}
	if _, ok := dispatched["c"]; ok {
		t.Error("second call for the same batch must not dispatch new keys")
	}
	if c.Get("c").IsRequested() {
		t.Error("c must stay not requested")
	}
}

func TestFetchMapOnce_SkipsKeysAlreadyKnown(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[string](cache, "builds")

	var calls int32
	load := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "x", nil
	}
	c.FetchOnce("a", load)
	waitSettled(t, ch, 1)

	c.FetchMapOnce("page", []string{"a", "b"}, func(string) fetch.Loader[string] { return load })
	waitSettled(t, ch, 1)

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 loader calls total, got %d", got)
	}
}

func TestFetchMapOnce_PartialSuccessIsTerminal(t *testing.T) {
	notify, ch := settled()
	cache := fetch.NewCache(context.Background(), fetch.WithNotify(notify))
	c := fetch.NewCoordinator[string](cache, "builds")

	factory := func(key string) fetch.Loader[string] {
		return func(ctx context.Context) (string, error) {
			if key == "bad" {
				return "", &domain.ServerError{StatusCode: 500, Status: "500 Internal Server Error"}
			}
			return key, nil
		}
	}
	keys := []string{"ok1", "bad", "ok2"}
	c.FetchMapOnce("builds", keys, factory)
	waitSettled(t, ch, 3)

	states := c.States(keys)
	if !states[0].IsLoaded() || !states[2].IsLoaded() {
		t.Errorf("siblings of a failed key must still load: %+v", states)
	}
	failed, err := fetch.AnyErrored(states)
	if !failed || domain.ErrorKind(err) != "server" {
		t.Errorf("expected server error surfaced, got %v %v", failed, err)
	}
	if got := fetch.Payloads(states); len(got) != 2 {
		t.Errorf("expected 2 payloads, got %v", got)
	}
}

func TestResolve_TwiceIsIgnoredOutsideStrictMode(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	cache := fetch.NewCache(context.Background(), fetch.WithMetrics(metrics))
	c := fetch.NewCoordinator[string](cache, "seed")

	if !c.Loading("k") {
		t.Fatal("expected Loading to create the state")
	}
	if c.Loading("k") {
		t.Fatal("expected second Loading to report an existing state")
	}
	c.Resolve("k", "first")
	c.Resolve("k", "second")
	c.Reject("k", errors.New("late"))

	state := c.Get("k")
	if !state.IsLoaded() || state.Payload != "first" {
		t.Errorf("state must be immutable once loaded, got %+v", state)
	}
	if got := testutil.ToFloat64(metrics.Violations("seed")); got != 2 {
		t.Errorf("expected 2 violations counted, got %v", got)
	}
}

func TestResolve_UnknownKeyIsViolation(t *testing.T) {
	cache := fetch.NewCache(context.Background(), fetch.WithStrict(true))
	c := fetch.NewCoordinator[string](cache, "seed")

	defer func() {
		r := recover()
		v, ok := r.(*domain.ContractViolation)
		if !ok {
			t.Fatalf("expected *ContractViolation panic, got %v", r)
		}
		if v.Stage != "seed" || v.Key != "missing" {
			t.Errorf("unexpected violation: %+v", v)
		}
	}()
	c.Resolve("missing", "x")
}

func TestResolve_TwicePanicsInStrictMode(t *testing.T) {
	cache := fetch.NewCache(context.Background(), fetch.WithStrict(true))
	c := fetch.NewCoordinator[string](cache, "seed")
	c.Loading("k")
	c.Resolve("k", "first")

	defer func() {
		if _, ok := recover().(*domain.ContractViolation); !ok {
			t.Fatal("expected a contract violation panic")
		}
	}()
	c.Resolve("k", "second")
}

func TestClose_LateResultIsDropped(t *testing.T) {
	var notified int32
	cache := fetch.NewCache(context.Background(),
		fetch.WithStrict(true),
		fetch.WithNotify(func(_, _ string) { atomic.AddInt32(&notified, 1) }))
	c := fetch.NewCoordinator[string](cache, "jobs")

	release := make(chan struct{})
	done := make(chan struct{})
	c.FetchOnce("j1", func(ctx context.Context) (string, error) {
		defer close(done)
		<-release
		return "late", nil
	})

	cache.Close()
	close(release)
	<-done
	time.Sleep(20 * time.Millisecond)

	if cache.Alive() {
		t.Error("expected cache to be closed")
	}
	if !c.Get("j1").IsPending() {
		t.Errorf("late result must not be stored, got %v", c.Get("j1").Phase)
	}
	if atomic.LoadInt32(&notified) != 0 {
		t.Error("late result must not notify")
	}

	c.FetchOnce("j2", func(ctx context.Context) (string, error) { return "", nil })
	if c.Get("j2").IsRequested() {
		t.Error("closed cache must not dispatch")
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	cache := fetch.NewCache(context.Background())
	c := fetch.NewCoordinator[string](cache, "builds")
	c.Loading("a")

	snap := c.Snapshot()
	delete(snap, "a")
	if !c.Get("a").IsPending() {
		t.Error("mutating a snapshot must not affect the coordinator")
	}
}
