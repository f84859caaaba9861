package fetch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/waabox/changesdeck/internal/domain"
	"github.com/waabox/changesdeck/internal/observability"
)

// Cache is the lifetime of one page view. Every Coordinator created on it
// shares its liveness: once Close is called, fetches that complete later
// are dropped and nothing new is dispatched.
type Cache struct {
	ctx     context.Context
	logger  *slog.Logger
	metrics *observability.Metrics
	strict  bool
	notify  func(stage, key string)

	mu     sync.RWMutex
	closed bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for dispatch and violation messages.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records dispatches, resolutions and violations.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithStrict makes contract violations panic instead of being logged.
func WithStrict(strict bool) Option {
	return func(c *Cache) { c.strict = strict }
}

// WithNotify registers a hook called after each state settles. It runs on
// the loader's goroutine and must not block.
func WithNotify(fn func(stage, key string)) Option {
	return func(c *Cache) { c.notify = fn }
}

// NewCache creates a live cache. ctx is handed to every loader.
func NewCache(ctx context.Context, opts ...Option) *Cache {
	c := &Cache{
		ctx:    ctx,
		logger: observability.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close tears the page down. In-flight loaders are not cancelled; their
// results are discarded when they arrive.
func (c *Cache) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Alive reports whether Close has not been called yet.
func (c *Cache) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// Logger returns the cache's logger.
func (c *Cache) Logger() *slog.Logger { return c.logger }

// Metrics returns the cache's metrics, possibly nil.
func (c *Cache) Metrics() *observability.Metrics { return c.metrics }

// Violate reports a contract violation: panics in strict mode, otherwise
// logs and counts it.
func (c *Cache) Violate(stage, key, reason string) {
	v := &domain.ContractViolation{Stage: stage, Key: key, Reason: reason}
	c.metrics.IncViolation(stage)
	if c.strict {
		panic(v)
	}
	c.logger.Warn("ignoring contract violation", "stage", stage, "key", key, "reason", reason)
}
