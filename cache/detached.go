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
	"sync"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/backend/lock"
	"go.uber.org/zap"
)

// DetachedDelta is a delta that does not hold any lock on its cache. It
// can be passed to other goroutines and locked when needed. A detached
// delta is tied to the generation of the cache it was created at; once the
// cache has been committed, it can no longer be locked.
//
// Changes made while locked are kept by the detached delta across lock
// cycles. They are never committed to the cache.
type DetachedDelta[K deltaset.Key, V any] struct {
	cache      *Cache[K, V]
	generation uint64
	delta      *Delta[K, V]

	mutex  sync.Mutex
	stale  bool
	locked bool
}

// Generation returns the cache generation the delta was created at.
func (d *DetachedDelta[K, V]) Generation() uint64 {
	return d.generation
}

// TryLock attempts to gain write access to the detached delta. It returns
// nil if the cache has been committed since the delta was created, or if
// another delta currently has write access. It never blocks.
func (d *DetachedDelta[K, V]) TryLock() *LockedDelta[K, V] {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.stale || d.locked {
		return nil
	}
	c := d.cache
	guard, ok := c.lock.TryAcquireReader()
	if !ok {
		return nil
	}
	if current := c.generation.Load(); current != d.generation {
		guard.Release()
		d.stale = true
		c.metrics.stale.Inc()
		c.log.Debug("detached delta is stale",
			zap.Uint64("created", d.generation),
			zap.Uint64("current", current),
		)
		return nil
	}
	if !c.slot.TryClaim() {
		guard.Release()
		c.metrics.conflicts.Inc()
		return nil
	}
	d.locked = true
	d.delta.released = false
	return &LockedDelta[K, V]{
		Delta:    d.delta,
		guard:    guard,
		detached: d,
	}
}

// LockedDelta is a detached delta with write access. While it is held,
// commits on the cache are blocked and no other delta can be created.
type LockedDelta[K deltaset.Key, V any] struct {
	*Delta[K, V]
	guard    lock.ReaderGuard
	detached *DetachedDelta[K, V]
}

// Release gives up write access. Changes are retained by the detached
// delta and become visible again when it is locked the next time.
func (l *LockedDelta[K, V]) Release() {
	d := l.detached
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if !l.guard.Valid() {
		return
	}
	l.Delta.released = true
	d.locked = false
	d.cache.slot.Free()
	l.guard.Release()
}
