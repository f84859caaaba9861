package fetch

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/waabox/changesdeck/internal/observability"
)

// Coordinator owns the fetch states of one stage, keyed by entity ID.
// A key is dispatched at most once for the lifetime of the cache, no matter
// how often FetchOnce or FetchMapOnce are called for it.
type Coordinator[T any] struct {
	cache  *Cache
	stage  string
	logger *slog.Logger

	mu      sync.RWMutex
	states  map[string]State[T]
	batches map[string]struct{}
}

// NewCoordinator creates the coordinator for stage on cache.
func NewCoordinator[T any](cache *Cache, stage string) *Coordinator[T] {
	return &Coordinator[T]{
		cache:   cache,
		stage:   stage,
		logger:  observability.WithStage(cache.logger, stage),
		states:  make(map[string]State[T]),
		batches: make(map[string]struct{}),
	}
}

// Stage returns the coordinator's stage name.
func (c *Coordinator[T]) Stage() string { return c.stage }

// Loading records key as in flight. It returns false and leaves the
// existing state untouched when key is already known or the cache is closed.
func (c *Coordinator[T]) Loading(key string) bool {
	if !c.cache.Alive() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.states[key]; ok {
		return false
	}
	c.states[key] = State[T]{Phase: Loading}
	return true
}

// Resolve moves key from Loading to Loaded.
func (c *Coordinator[T]) Resolve(key string, payload T) {
	c.settle(key, State[T]{Phase: Loaded, Payload: payload})
}

// errRejected stands in for a nil error passed to Reject.
var errRejected = errors.New("rejected without error")

// Reject moves key from Loading to Errored. A nil err is recorded as a
// non-nil error so Errored states always carry one.
func (c *Coordinator[T]) Reject(key string, err error) {
	if err == nil {
		err = errRejected
	}
	c.settle(key, State[T]{Phase: Errored, Err: err})
}

func (c *Coordinator[T]) settle(key string, next State[T]) {
	var violation string

	c.cache.mu.RLock()
	alive := !c.cache.closed
	if alive {
		c.mu.Lock()
		cur, ok := c.states[key]
		switch {
		case !ok:
			violation = "settled a key that was never dispatched"
		case cur.Phase != Loading:
			violation = fmt.Sprintf("settled a key already %s", cur.Phase)
		default:
			c.states[key] = next
		}
		c.mu.Unlock()
	}
	c.cache.mu.RUnlock()

	if !alive {
		c.logger.Debug("dropping result after teardown", "key", key)
		return
	}
	if violation != "" {
		c.cache.Violate(c.stage, key, violation)
		return
	}

	c.cache.metrics.IncResolution(c.stage, next.Phase.String())
	if next.Err != nil {
		c.logger.Warn("fetch failed", "key", key, "error", next.Err)
	} else {
		c.logger.Debug("fetch loaded", "key", key)
	}
	if c.cache.notify != nil {
		c.cache.notify(c.stage, key)
	}
}

// FetchOnce dispatches load for key on its own goroutine if key has no
// state yet; otherwise it does nothing. Callers poll Get for the outcome.
func (c *Coordinator[T]) FetchOnce(key string, load Loader[T]) {
	if !c.Loading(key) {
		return
	}
	c.dispatch(key, load)
}

// FetchMapOnce dispatches one loader per key, behind a single gate named
// batch: the first call for a batch dispatches every key that has no state
// yet, and every later call for the same batch is a no-op, even with a
// different key set. Keys resolve independently; one failure does not
// affect its siblings.
func (c *Coordinator[T]) FetchMapOnce(batch string, keys []string, factory func(key string) Loader[T]) {
	if !c.cache.Alive() {
		return
	}
	c.mu.Lock()
	if _, done := c.batches[batch]; done {
		c.mu.Unlock()
		return
	}
	c.batches[batch] = struct{}{}
	fresh := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, ok := c.states[key]; ok {
			continue
		}
		c.states[key] = State[T]{Phase: Loading}
		fresh = append(fresh, key)
	}
	c.mu.Unlock()

	c.logger.Debug("dispatching batch", "batch", batch, "keys", len(fresh))
	for _, key := range fresh {
		c.dispatch(key, factory(key))
	}
}

// Dispatched reports whether FetchMapOnce already ran for batch.
func (c *Coordinator[T]) Dispatched(batch string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.batches[batch]
	return ok
}

func (c *Coordinator[T]) dispatch(key string, load Loader[T]) {
	c.cache.metrics.IncDispatch(c.stage)
	go func() {
		payload, err := c.run(load)
		if err != nil {
			c.Reject(key, err)
			return
		}
		c.Resolve(key, payload)
	}()
}

func (c *Coordinator[T]) run(load Loader[T]) (payload T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("loader panicked: %v", r)
		}
	}()
	return load(c.cache.ctx)
}

// Get returns key's state; unknown keys report NotRequested.
func (c *Coordinator[T]) Get(key string) State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.states[key]
}

// States returns the states of keys in order.
func (c *Coordinator[T]) States(keys []string) []State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]State[T], len(keys))
	for i, key := range keys {
		out[i] = c.states[key]
	}
	return out
}

// Snapshot copies the current state map.
func (c *Coordinator[T]) Snapshot() map[string]State[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]State[T], len(c.states))
	for k, v := range c.states {
		out[k] = v
	}
	return out
}
