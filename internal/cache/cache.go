// Package cache is the process-wide store for server-owned resources: keyed
// query results with in-flight de-duplication, stale-while-revalidate reads,
// explicit invalidation and optional persistence to the local database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/nhle/agora/internal/observe"
)

// DefaultStaleTime is how long a fetched result counts as fresh.
const DefaultStaleTime = 30 * time.Second

// ErrNoFetcher is returned by Refetch for a key no query has registered.
var ErrNoFetcher = errors.New("cache: no fetcher registered for key")

// Fetcher loads the current server value for a key.
type Fetcher func(ctx context.Context) (any, error)

// Result is the state of one cache entry as seen by a view.
type Result struct {
	Data      any
	Err       error
	IsLoading bool
	Stale     bool
	UpdatedAt time.Time
}

// IsError reports whether the last fetch for the entry failed.
func (r Result) IsError() bool {
	return r.Err != nil
}

// HasData reports whether the entry has ever been populated.
func (r Result) HasData() bool {
	return !r.UpdatedAt.IsZero()
}

// QueryOption customizes a single Query call.
type QueryOption func(*queryOptions)

type queryOptions struct {
	enabled   bool
	staleTime time.Duration
}

// Enabled toggles fetching. A disabled query returns whatever the cache
// holds without calling the fetcher.
func Enabled(enabled bool) QueryOption {
	return func(o *queryOptions) { o.enabled = enabled }
}

// StaleAfter overrides the cache's stale time for this key.
func StaleAfter(d time.Duration) QueryOption {
	return func(o *queryOptions) { o.staleTime = d }
}

// Option configures a Cache.
type Option func(*Cache)

// WithStaleTime sets the default freshness window.
func WithStaleTime(d time.Duration) Option {
	return func(c *Cache) { c.staleTime = d }
}

// WithPersister saves every successful fetch through p.
func WithPersister(p Persister) Option {
	return func(c *Cache) { c.persister = p }
}

// WithMetrics records lookups and fetches on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type entry struct {
	key       Key
	data      any
	err       error
	updatedAt time.Time
	// invalidated forces the entry stale regardless of age.
	invalidated bool
	// generation is bumped by Invalidate and Reset. A fetch that started
	// under an older generation is discarded when it completes.
	generation   uint64
	inflight     int
	revalidating bool
	fetcher      Fetcher
	staleTime    time.Duration
	subs         observe.Registry[Result]
}

// Cache holds query results keyed by Key. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	group   singleflight.Group

	staleTime time.Duration
	persister Persister
	metrics   *Metrics
	logger    *zap.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an empty Cache.
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:   make(map[string]*entry),
		staleTime: DefaultStaleTime,
		logger:    zap.NewNop(),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Close stops background revalidations and waits for them to finish.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Query returns the entry for key, fetching it when missing. A fresh entry
// is returned as is; a stale one is returned immediately while a background
// revalidation runs and its subscribers receive the fresh result. Concurrent
// queries for the same key share one fetch.
func (c *Cache) Query(ctx context.Context, key Key, fetch Fetcher, opts ...QueryOption) Result {
	o := queryOptions{enabled: true}
	for _, opt := range opts {
		opt(&o)
	}

	c.mu.Lock()
	e := c.entryLocked(key)
	if !o.enabled {
		res := c.resultLocked(e)
		c.mu.Unlock()
		return res
	}
	e.fetcher = fetch
	if o.staleTime > 0 {
		e.staleTime = o.staleTime
	}

	if !e.updatedAt.IsZero() {
		stale := c.isStaleLocked(e)
		res := c.resultLocked(e)
		if stale && !e.revalidating {
			e.revalidating = true
			c.wg.Add(1)
			go c.revalidate(key, fetch)
		}
		c.mu.Unlock()

		if stale {
			c.metrics.Lookups.WithLabelValues("stale").Inc()
		} else {
			c.metrics.Lookups.WithLabelValues("hit").Inc()
		}
		return res
	}
	c.mu.Unlock()

	c.metrics.Lookups.WithLabelValues("miss").Inc()
	return c.fetch(ctx, key, fetch)
}

// Peek returns the entry for key without fetching.
func (c *Cache) Peek(key Key) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return Result{}
	}
	return c.resultLocked(e)
}

// Refetch forces a fetch of key with the fetcher last passed to Query.
func (c *Cache) Refetch(ctx context.Context, key Key) Result {
	c.mu.Lock()
	e, ok := c.entries[key.String()]
	var fetch Fetcher
	if ok {
		fetch = e.fetcher
	}
	c.mu.Unlock()

	if fetch == nil {
		return Result{Err: fmt.Errorf("%w: %s", ErrNoFetcher, key)}
	}
	return c.fetch(ctx, key, fetch)
}

// Invalidate marks every entry whose key starts with prefix as stale and
// refetches those that currently have subscribers. It returns once the
// refetches have completed and subscribers have been notified.
func (c *Cache) Invalidate(ctx context.Context, prefix Key) {
	type target struct {
		key   Key
		fetch Fetcher
	}

	var targets []target
	c.mu.Lock()
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.invalidated = true
		e.generation++
		// A fetch already in flight may predate the write being
		// invalidated; later callers must not join it.
		c.group.Forget(id)
		if e.fetcher != nil && e.subs.Len() > 0 {
			targets = append(targets, target{key: e.key, fetch: e.fetcher})
		}
	}
	c.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.fetch(ctx, t.key, t.fetch)
		}()
	}
	wg.Wait()
}

// Mutate runs a write against the server. Callers invalidate the keys the
// write affects once it succeeds.
func (c *Cache) Mutate(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mutation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Subscribe registers fn to receive every new result for key. Subscribed
// entries are the ones Invalidate refetches.
func (c *Cache) Subscribe(key Key, fn func(Result)) (unsubscribe func()) {
	c.mu.Lock()
	e := c.entryLocked(key)
	c.mu.Unlock()
	return e.subs.Add(fn)
}

// Set stores data for key as if it had just been fetched, and notifies
// subscribers.
func (c *Cache) Set(key Key, data any) {
	c.mu.Lock()
	gen := c.entryLocked(key).generation
	c.mu.Unlock()
	c.complete(context.Background(), key, gen, data, nil)
}

// Reset drops every entry and persisted snapshot. Subscriptions survive.
func (c *Cache) Reset(ctx context.Context) error {
	c.mu.Lock()
	for id, e := range c.entries {
		c.group.Forget(id)
		e.generation++
		e.data = nil
		e.err = nil
		e.updatedAt = time.Time{}
		e.invalidated = false
		e.fetcher = nil
	}
	c.mu.Unlock()

	if c.persister == nil {
		return nil
	}
	if err := c.persister.DeleteCacheEntries(ctx, ""); err != nil {
		return fmt.Errorf("clearing persisted cache: %w", err)
	}
	return nil
}

func (c *Cache) revalidate(key Key, fetch Fetcher) {
	defer c.wg.Done()
	res := c.fetch(c.ctx, key, fetch)

	c.mu.Lock()
	if e, ok := c.entries[key.String()]; ok {
		e.revalidating = false
	}
	c.mu.Unlock()

	if res.IsError() {
		c.logger.Warn("background revalidation failed",
			zap.String("key", key.String()),
			zap.Error(res.Err),
		)
	}
}

// fetch runs fetch through the single-flight group and returns the
// resulting entry state.
func (c *Cache) fetch(ctx context.Context, key Key, fetch Fetcher) Result {
	id := key.String()
	ran := false

	_, _, _ = c.group.Do(id, func() (any, error) {
		ran = true
		c.mu.Lock()
		e := c.entryLocked(key)
		e.inflight++
		gen := e.generation
		c.mu.Unlock()

		c.metrics.Fetches.Inc()
		data, err := safeFetch(ctx, fetch)
		if err != nil {
			c.metrics.FetchErrors.Inc()
		}
		c.complete(ctx, key, gen, data, err)
		return nil, nil
	})
	if !ran {
		c.metrics.Deduped.Inc()
	}

	return c.Peek(key)
}

// complete records a fetch outcome, persists successes and notifies
// subscribers outside the lock. A failed fetch keeps the previous data.
// Outcomes of fetches started before the last Invalidate are dropped.
func (c *Cache) complete(ctx context.Context, key Key, gen uint64, data any, err error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if e.inflight > 0 {
		e.inflight--
	}
	if gen < e.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded fetch", zap.String("key", key.String()))
		return
	}
	e.err = err
	if err == nil {
		e.data = data
		e.updatedAt = c.now()
		e.invalidated = false
	}
	res := c.resultLocked(e)
	c.mu.Unlock()

	if err == nil && c.persister != nil {
		c.persist(ctx, key, data, res.UpdatedAt)
	}

	e.subs.Notify(res)
}

func (c *Cache) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: append(Key(nil), key...)}
		c.entries[id] = e
	}
	return e
}

func (c *Cache) isStaleLocked(e *entry) bool {
	if e.invalidated {
		return true
	}
	staleTime := e.staleTime
	if staleTime <= 0 {
		staleTime = c.staleTime
	}
	return c.now().Sub(e.updatedAt) >= staleTime
}

func (c *Cache) resultLocked(e *entry) Result {
	res := Result{
		Data:      e.data,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		IsLoading: e.inflight > 0 && e.updatedAt.IsZero(),
	}
	if !e.updatedAt.IsZero() {
		res.Stale = c.isStaleLocked(e)
	}
	return res
}

func safeFetch(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetcher panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// Value returns r.Data as T. Data rehydrated from disk arrives as raw JSON
// and is decoded into T.
func Value[T any](r Result) (T, bool) {
	var zero T
	switch v := r.Data.(type) {
	case nil:
		return zero, false
	case T:
		return v, true
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(v, &out); err != nil {
			return zero, false
		}
		return out, true
	default:
		return zero, false
	}
}
