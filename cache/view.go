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

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/backend/lock"
	"github.com/chainstate/statecache/common"
)

// View is a read-only handle on the state of a cache committed at the time
// the view was created. Commits do not affect the content of a view. While
// a view is not released, commits on the cache are blocked.
type View[K deltaset.Key, V any] struct {
	name       string
	state      *state[K, V]
	generation uint64
	guard      lock.ReaderGuard
}

// Name returns the name of the viewed cache.
func (v *View[K, V]) Name() string {
	return v.name
}

// Generation returns the generation of the viewed state.
func (v *View[K, V]) Generation() uint64 {
	return v.generation
}

func (v *View[K, V]) Size() int {
	return v.state.entries.Size()
}

func (v *View[K, V]) Contains(key K) bool {
	return v.state.entries.Contains(key)
}

func (v *View[K, V]) Find(key K) FindResult[V] {
	if value, exists := v.state.entries.Find(key); exists {
		return found(key, value)
	}
	return notFound[V](key)
}

// Iterator enumerates the elements of the view in ascending key order.
func (v *View[K, V]) Iterator() *deltaset.Iterator[K, V] {
	return v.state.entries.Iterator()
}

// ForEach visits all elements in ascending key order until visit returns
// false.
func (v *View[K, V]) ForEach(visit func(K, V) bool) {
	v.state.entries.ForEach(visit)
}

// Range returns the smallest and largest key of the view.
func (v *View[K, V]) Range() (K, K, error) {
	lo, _, found := v.state.entries.Min()
	if !found {
		var zero K
		return zero, zero, fmt.Errorf("%w: cache %s is empty", common.ErrInvalidArgument, v.name)
	}
	hi, _, _ := v.state.entries.Max()
	return lo, hi, nil
}

// PruningBoundary returns the height up to which pruning is complete in
// the viewed state.
func (v *View[K, V]) PruningBoundary() (common.Height, bool) {
	return v.state.pruningBoundary, v.state.hasBoundary
}

// Release unblocks commits on the cache. The content of the view remains
// readable after it has been released.
func (v *View[K, V]) Release() {
	v.guard.Release()
}
