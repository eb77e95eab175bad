// Package cache keeps the last Full Session aggregate per session id and applies
// optimistic patches to it.
package cache

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/victornm/quesgenie/internal/domain"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quesgenie_session_cache_lookups_total",
			Help: "Full session lookups by result (hit or miss).",
		},
		[]string{"result"},
	)

	invalidationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quesgenie_session_cache_invalidations_total",
			Help: "Full session cache entries marked stale.",
		},
	)

	rollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quesgenie_session_cache_rollbacks_total",
			Help: "Optimistic patches rolled back after a failed write.",
		},
	)
)

type Loader interface {
	FetchFullSession(ctx context.Context, id string) (*domain.FullSession, error)
}

type Config struct {
	Loader Loader
}

type Cache struct {
	loader Loader
	group  singleflight.Group

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// value is what readers see, optimistic patches included.
	value *domain.FullSession
	// confirmed is the last state the store agreed with.
	confirmed *domain.FullSession
	// gen moves on every write to the entry. A fetch only stores its result
	// when gen did not move while it was running.
	gen   uint64
	stale bool
}

func New(c Config) *Cache {
	return &Cache{
		loader:  c.Loader,
		entries: make(map[string]*entry),
	}
}

func (c *Cache) entry(id string) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{stale: true}
		c.entries[id] = e
	}
	return e
}

// Get returns a copy of the cached aggregate, fetching it when the entry is
// missing or stale. Concurrent misses for the same generation share one fetch.
func (c *Cache) Get(ctx context.Context, id string) (*domain.FullSession, error) {
	c.mu.Lock()
	e := c.entry(id)
	if !e.stale && e.value != nil {
		fs := e.value.Clone()
		c.mu.Unlock()

		lookupsTotal.WithLabelValues("hit").Inc()
		return fs, nil
	}
	gen := e.gen
	c.mu.Unlock()

	lookupsTotal.WithLabelValues("miss").Inc()

	key := id + "@" + strconv.FormatUint(gen, 10)
	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetch(context.WithoutCancel(ctx), id, gen)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.FullSession).Clone(), nil
}

func (c *Cache) fetch(ctx context.Context, id string, gen uint64) (*domain.FullSession, error) {
	fs, err := c.loader.FetchFullSession(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(id)
	if e.gen != gen {
		slog.DebugContext(ctx, "discard stale session fetch", "session_id", id, "fetched_gen", gen, "gen", e.gen)
		if !e.stale && e.value != nil {
			return e.value.Clone(), nil
		}
		return fs, nil
	}

	e.value = fs
	e.confirmed = fs.Clone()
	e.stale = false
	return fs.Clone(), nil
}

// Invalidate marks the entry stale so the next Get refetches it.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(id)
	e.gen++
	e.stale = true

	invalidationsTotal.Inc()
}

// Patch applies update to the cached aggregate right away. The caller must end
// it with Commit once the store accepted the change, or Rollback when it did not.
// Patching an entry that is not cached only records the update for Commit.
func (c *Cache) Patch(id string, update func(*domain.FullSession)) *Patch {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entry(id)
	e.gen++

	if e.value != nil {
		fs := e.value.Clone()
		update(fs)
		e.value = fs
	}

	return &Patch{c: c, id: id, gen: e.gen, update: update}
}

// Patch is an optimistic change waiting for the store's answer.
type Patch struct {
	c      *Cache
	id     string
	gen    uint64
	update func(*domain.FullSession)
	done   bool
}

// Commit folds the change into the last confirmed state.
func (p *Patch) Commit() {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	if p.done {
		return
	}
	p.done = true

	e := p.c.entry(p.id)
	if e.confirmed != nil {
		fs := e.confirmed.Clone()
		p.update(fs)
		e.confirmed = fs
	}
}

// Rollback restores the last confirmed state when nothing was written to the
// entry after this patch. Otherwise the entry is marked stale, since later
// patches were built on top of the failed one.
func (p *Patch) Rollback() {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()

	if p.done {
		return
	}
	p.done = true

	rollbacksTotal.Inc()

	e := p.c.entry(p.id)
	e.gen++
	if e.gen-1 == p.gen && e.confirmed != nil && !e.stale {
		e.value = e.confirmed.Clone()
		return
	}

	e.stale = true
}
