// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/backend/heightindex"
	"github.com/chainstate/statecache/backend/lock"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/logger"
	"go.uber.org/zap"
)

// Cache is a versioned, copy-on-write key/value cache. Its committed state
// is accessed through read-only Views and modified through a single Delta
// at a time. Committing the Delta atomically replaces the committed state.
//
// Views may be created at any time and observe the state committed at their
// creation, even while a Delta is outstanding. Only one producer of changes
// may be active at a time; this is either the attached Delta obtained from
// CreateDelta or a locked DetachedDelta.
type Cache[K deltaset.Key, V any] struct {
	traits  Traits[K, V]
	log     *zap.Logger
	metrics *cacheMetrics
	hook    func(ChangeSet[K, V])

	lock       lock.ReaderWriterLock
	slot       lock.WriterSlot
	current    atomic.Pointer[state[K, V]]
	generation atomic.Uint64

	attachedMutex sync.Mutex
	attached      *Delta[K, V]
}

// Options are optional collaborators of a cache.
type Options[K deltaset.Key, V any] struct {
	// Logger receives debug information on commits, prunes and stale
	// detached deltas. Defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics is the set the cache's metrics are registered in. Defaults
	// to the process-wide registry written by metrics.WritePrometheus.
	Metrics *metrics.Set
	// OnCommit is called after every commit with the committed changes.
	OnCommit func(ChangeSet[K, V])
}

// ChangeSet summarizes the net effect of a commit. The three groups are
// disjoint and sorted by key.
type ChangeSet[K deltaset.Key, V any] struct {
	Cache      string
	Generation uint64
	Added      []common.MapEntry[K, V]
	Modified   []common.MapEntry[K, V]
	Removed    []K
}

// IsEmpty returns true if the change set contains no changes.
func (c *ChangeSet[K, V]) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// state is an immutable snapshot of the committed content of a cache.
type state[K deltaset.Key, V any] struct {
	entries         *deltaset.BaseSet[K, V]
	heights         *deltaset.BaseSet[common.Height, heightindex.Group[K]]
	pruningBoundary common.Height
	hasBoundary     bool
}

// New creates an empty cache with the given traits.
func New[K deltaset.Key, V any](traits Traits[K, V], options Options[K, V]) (*Cache[K, V], error) {
	if err := traits.check(); err != nil {
		return nil, err
	}
	res := &Cache[K, V]{
		traits:  traits,
		log:     logger.OrNop(options.Logger).With(zap.String("cache", traits.Name)),
		metrics: newCacheMetrics(options.Metrics, traits.Name),
		hook:    options.OnCommit,
	}
	initial := &state[K, V]{entries: deltaset.NewBaseSet[K, V]()}
	if traits.isHeightIndexed() {
		initial.heights = heightindex.NewSet[K]()
	}
	res.current.Store(initial)
	return res, nil
}

// Name returns the name of this cache.
func (c *Cache[K, V]) Name() string {
	return c.traits.Name
}

// Generation returns the number of commits performed on this cache.
func (c *Cache[K, V]) Generation() uint64 {
	return c.generation.Load()
}

// CreateView creates a read-only view on the currently committed state.
// The view holds reader access to the cache, delaying commits, until it is
// released.
func (c *Cache[K, V]) CreateView() *View[K, V] {
	guard := c.lock.AcquireReader()
	return &View[K, V]{
		name:       c.traits.Name,
		state:      c.current.Load(),
		generation: c.generation.Load(),
		guard:      guard,
	}
}

// CreateDelta creates the attached delta of this cache, through which
// changes can be made and committed. Only one delta may be outstanding at a
// time; requesting a second one fails with ErrAlreadyInUse. The delta must
// be released once it is no longer needed.
func (c *Cache[K, V]) CreateDelta() (*Delta[K, V], error) {
	if !c.slot.TryClaim() {
		c.metrics.conflicts.Inc()
		return nil, fmt.Errorf("cache %q: %w", c.traits.Name, common.ErrAlreadyInUse)
	}
	delta := newDelta(c, c.current.Load(), c.generation.Load())
	delta.onRelease = func() {
		c.attachedMutex.Lock()
		c.attached = nil
		c.attachedMutex.Unlock()
		c.slot.Free()
	}
	c.attachedMutex.Lock()
	c.attached = delta
	c.attachedMutex.Unlock()
	return delta, nil
}

// CreateDetachedDelta creates a delta that is decoupled from the cache's
// lock. It can be handed to another goroutine and locked later. Changes
// made through it are never committed to this cache.
func (c *Cache[K, V]) CreateDetachedDelta() *DetachedDelta[K, V] {
	guard := c.lock.AcquireReader()
	defer guard.Release()
	generation := c.generation.Load()
	delta := newDelta(c, c.current.Load(), generation)
	delta.released = true
	return &DetachedDelta[K, V]{
		cache:      c,
		generation: generation,
		delta:      delta,
	}
}

// Commit applies the changes of the attached delta to the committed state.
// It blocks until all views and locked detached deltas have been released.
// The attached delta stays valid and is rebased onto the new state.
// Committing an empty delta is legal and still starts a new generation.
// Commit fails with ErrNoDelta if there is no attached delta.
func (c *Cache[K, V]) Commit() error {
	c.attachedMutex.Lock()
	delta := c.attached
	c.attachedMutex.Unlock()
	if delta == nil {
		return fmt.Errorf("cache %q: %w", c.traits.Name, common.ErrNoDelta)
	}

	start := time.Now()
	changes := delta.changeSet()

	guard := c.lock.AcquireWriter()
	next := delta.commit()
	c.current.Store(next)
	generation := c.generation.Add(1)
	delta.generation = generation
	guard.Release()

	c.metrics.observeCommit(start)
	c.log.Debug("committed",
		zap.Uint64("generation", generation),
		zap.Int("size", next.entries.Size()),
		zap.Int("added", len(changes.Added)),
		zap.Int("modified", len(changes.Modified)),
		zap.Int("removed", len(changes.Removed)),
	)
	if c.hook != nil {
		changes.Generation = generation
		c.hook(changes)
	}
	return nil
}

// GetMemoryFootprint approximates the memory used by the committed state.
func (c *Cache[K, V]) GetMemoryFootprint() *common.MemoryFootprint {
	current := c.current.Load()
	res := common.NewMemoryFootprint(0)
	res.AddChild("entries", current.entries.GetMemoryFootprint())
	if current.heights != nil {
		res.AddChild("heights", current.heights.GetMemoryFootprint())
	}
	return res
}
