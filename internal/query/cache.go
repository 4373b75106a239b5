package query

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Status is the lifecycle state of a cached key.
type Status int

const (
	// StatusLoading means no result has been stored for the key yet.
	StatusLoading Status = iota
	// StatusSuccess means the entry holds data from the last fetch.
	StatusSuccess
	// StatusError means the last fetch for the key failed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}

// MarshalText renders the status for JSON payloads.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status rendered by MarshalText.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "loading":
		*s = StatusLoading
	case "success":
		*s = StatusSuccess
	case "error":
		*s = StatusError
	default:
		return fmt.Errorf("query: unknown status %q", text)
	}
	return nil
}

// Result is a snapshot of one key.
type Result[T any] struct {
	Key       Key
	Status    Status
	Data      T
	HasData   bool
	Err       error
	UpdatedAt time.Time
	// Fetching is set while a fetch for the key is still running.
	Fetching bool
	// Stale is set when Data is no longer authoritative and a refetch is due.
	Stale bool
}

// Fetcher loads the value for one key.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Options tune a Cache.
type Options struct {
	// Name labels the cache in metrics.
	Name string
	// StaleTime is the freshness window of a successful result.
	StaleTime time.Duration
	// GCTime evicts entries that were not read for this long. Zero disables eviction.
	GCTime  time.Duration
	Metrics *Metrics
	Now     func() time.Time
}

// Cache stores the latest result per key and coalesces concurrent fetches.
type Cache[T any] struct {
	name      string
	staleTime time.Duration
	gcTime    time.Duration
	metrics   *Metrics
	now       func() time.Time

	mu      sync.Mutex
	entries map[Key]*entry[T]
	flights singleflight.Group
}

type entry[T any] struct {
	status      Status
	data        T
	hasData     bool
	err         error
	updatedAt   time.Time
	lastAccess  time.Time
	generation  uint64
	invalidated bool
	fetching    bool
}

type outcome[T any] struct {
	data    T
	err     error
	at      time.Time
	applied bool
}

// NewCache constructs an empty cache.
func NewCache[T any](opts Options) *Cache[T] {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	name := opts.Name
	if name == "" {
		name = "default"
	}
	return &Cache[T]{
		name:      name,
		staleTime: opts.StaleTime,
		gcTime:    opts.GCTime,
		metrics:   opts.Metrics,
		now:       now,
		entries:   make(map[Key]*entry[T]),
	}
}

// Query returns the result for key, fetching it when the entry is missing,
// invalidated or outside the freshness window. Concurrent callers for the same
// key share one fetch. When ctx ends first the current snapshot is returned
// with Fetching set; the shared fetch keeps running and still fills the entry.
func (c *Cache[T]) Query(ctx context.Context, key Key, fetch Fetcher[T]) Result[T] {
	now := c.now()

	c.mu.Lock()
	c.sweepLocked(now)
	e, ok := c.entries[key]
	if !ok {
		e = &entry[T]{}
		c.entries[key] = e
	}
	e.lastAccess = now
	if c.freshLocked(e, now) {
		res := c.snapshotLocked(key, e, now)
		c.mu.Unlock()
		c.metrics.hit(c.name)
		return res
	}
	generation := e.generation
	e.fetching = true
	c.mu.Unlock()
	c.metrics.miss(c.name)

	flight := c.flights.DoChan(flightKey(key, generation), func() (any, error) {
		return c.run(context.WithoutCancel(ctx), key, generation, fetch), nil
	})

	select {
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key]; ok {
			return c.snapshotLocked(key, e, c.now())
		}
		return Result[T]{Key: key, Status: StatusLoading, Fetching: true}
	case res := <-flight:
		if res.Shared {
			c.metrics.coalesced(c.name)
		}
		out := res.Val.(outcome[T])
		result := Result[T]{Key: key, Data: out.data, UpdatedAt: out.at, Stale: !out.applied}
		if out.err != nil {
			result.Status = StatusError
			result.Err = out.err
		} else {
			result.Status = StatusSuccess
			result.HasData = true
		}
		return result
	}
}

func (c *Cache[T]) run(ctx context.Context, key Key, generation uint64, fetch Fetcher[T]) outcome[T] {
	start := c.now()
	data, err := fetch(ctx)
	finished := c.now()
	c.metrics.observeFetch(c.name, err, finished.Sub(start))

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || e.generation != generation {
		return outcome[T]{data: data, err: err, at: finished}
	}
	e.fetching = false
	if err != nil {
		e.status = StatusError
		e.err = err
		return outcome[T]{err: err, at: finished, applied: true}
	}
	e.status = StatusSuccess
	e.data = data
	e.hasData = true
	e.err = nil
	e.updatedAt = finished
	e.invalidated = false
	return outcome[T]{data: data, at: finished, applied: true}
}

// Peek returns the current snapshot for key without fetching.
func (c *Cache[T]) Peek(key Key) (Result[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return Result[T]{Key: key, Status: StatusLoading}, false
	}
	return c.snapshotLocked(key, e, c.now()), true
}

// Invalidate marks every entry under prefix as stale so the next Query refetches.
// Fetches already running for those entries are not stored when they finish.
func (c *Cache[T]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if !key.HasPrefix(prefix) {
			continue
		}
		e.generation++
		e.invalidated = true
		e.fetching = false
		n++
	}
	c.metrics.invalidated(c.name, n)
	return n
}

// Len returns the number of tracked keys.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache[T]) freshLocked(e *entry[T], now time.Time) bool {
	if e.status != StatusSuccess || e.invalidated {
		return false
	}
	return now.Sub(e.updatedAt) < c.staleTime
}

func (c *Cache[T]) snapshotLocked(key Key, e *entry[T], now time.Time) Result[T] {
	return Result[T]{
		Key:       key,
		Status:    e.status,
		Data:      e.data,
		HasData:   e.hasData,
		Err:       e.err,
		UpdatedAt: e.updatedAt,
		Fetching:  e.fetching,
		Stale:     e.hasData && !c.freshLocked(e, now),
	}
}

func (c *Cache[T]) sweepLocked(now time.Time) {
	if c.gcTime <= 0 {
		return
	}
	for key, e := range c.entries {
		if e.fetching {
			continue
		}
		if now.Sub(e.lastAccess) >= c.gcTime {
			delete(c.entries, key)
		}
	}
}

func flightKey(key Key, generation uint64) string {
	return string(key) + "#" + strconv.FormatUint(generation, 10)
}
