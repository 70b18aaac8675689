// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package deltaset

import (
	"bytes"
	"fmt"

	"github.com/chainstate/statecache/common"
	"golang.org/x/exp/slices"
)

// Delta is a mutable overlay of changes on top of a BaseSet. Changes are
// tracked in three disjoint groups:
//   - added: keys not present in the base set
//   - copied: keys present in the base set with a (potentially) new value
//   - removed: keys present in the base set that got deleted
//
// A key is in at most one of those groups at any time. A Delta is not
// thread safe; synchronization is the duty of the owning cache.
type Delta[K Key, V any] struct {
	base    *BaseSet[K, V]
	clone   func(V) V
	added   map[K]*V
	copied  map[K]*V
	removed map[K]struct{}
}

// NewDelta creates an empty delta on top of the given base set. The clone
// function is used to produce private copies of base values that are
// accessed for modification. If nil, values are copied by assignment.
func NewDelta[K Key, V any](base *BaseSet[K, V], clone func(V) V) *Delta[K, V] {
	return &Delta[K, V]{
		base:    base,
		clone:   clone,
		added:   map[K]*V{},
		copied:  map[K]*V{},
		removed: map[K]struct{}{},
	}
}

// Base returns the base set this delta is applied on.
func (d *Delta[K, V]) Base() *BaseSet[K, V] {
	return d.base
}

// Size returns the number of elements logically present in this delta.
func (d *Delta[K, V]) Size() int {
	return d.base.Size() + len(d.added) - len(d.removed)
}

// IsEmpty returns true if this delta contains no changes.
func (d *Delta[K, V]) IsEmpty() bool {
	return len(d.added) == 0 && len(d.copied) == 0 && len(d.removed) == 0
}

// Find looks up the current value of the given key, considering pending
// changes before consulting the base set.
func (d *Delta[K, V]) Find(key K) (V, bool) {
	if value, found := d.added[key]; found {
		return *value, true
	}
	if value, found := d.copied[key]; found {
		return *value, true
	}
	if _, found := d.removed[key]; found {
		var zero V
		return zero, false
	}
	return d.base.Find(key)
}

// FindMutable returns a pointer to a modifiable value of the given key.
// Values of the base set are copied and tracked as modified; the returned
// pointer stays valid until the delta is committed or reset.
func (d *Delta[K, V]) FindMutable(key K) (*V, bool) {
	if value, found := d.added[key]; found {
		return value, true
	}
	if value, found := d.copied[key]; found {
		return value, true
	}
	if _, found := d.removed[key]; found {
		return nil, false
	}
	value, found := d.base.Find(key)
	if !found {
		return nil, false
	}
	if d.clone != nil {
		value = d.clone(value)
	}
	d.copied[key] = &value
	return &value, true
}

// Contains checks whether the given key is logically present.
func (d *Delta[K, V]) Contains(key K) bool {
	_, found := d.Find(key)
	return found
}

// Insert adds a new element. It fails if the key is already present.
func (d *Delta[K, V]) Insert(key K, value V) error {
	if d.Contains(key) {
		return fmt.Errorf("%w: key %v is already present", common.ErrInvalidArgument, key)
	}
	d.put(key, value)
	return nil
}

// Set inserts or overwrites the value of the given key.
func (d *Delta[K, V]) Set(key K, value V) {
	if ref, found := d.added[key]; found {
		*ref = value
		return
	}
	d.put(key, value)
}

func (d *Delta[K, V]) put(key K, value V) {
	if _, found := d.removed[key]; found {
		// a removed base element being re-inserted is a modification
		delete(d.removed, key)
		d.copied[key] = &value
		return
	}
	if d.base.Contains(key) {
		d.copied[key] = &value
		return
	}
	d.added[key] = &value
}

// Remove deletes the element with the given key. It fails if the key is
// not present.
func (d *Delta[K, V]) Remove(key K) error {
	if _, found := d.added[key]; found {
		delete(d.added, key)
		return nil
	}
	if _, found := d.removed[key]; found || !d.base.Contains(key) {
		return fmt.Errorf("%w: key %v is not present", common.ErrInvalidArgument, key)
	}
	delete(d.copied, key)
	d.removed[key] = struct{}{}
	return nil
}

// AddedElements returns the elements added by this delta, sorted by key.
func (d *Delta[K, V]) AddedElements() []common.MapEntry[K, V] {
	return toSortedEntries(d.added)
}

// ModifiedElements returns the elements of the base set that have been
// accessed for modification, sorted by key.
func (d *Delta[K, V]) ModifiedElements() []common.MapEntry[K, V] {
	return toSortedEntries(d.copied)
}

// RemovedElements returns the keys of base set elements removed by this
// delta, sorted by key.
func (d *Delta[K, V]) RemovedElements() []K {
	res := make([]K, 0, len(d.removed))
	for key := range d.removed {
		res = append(res, key)
	}
	slices.SortFunc(res, func(a, b K) int {
		return bytes.Compare(a.ToBytes(), b.ToBytes())
	})
	return res
}

// Commit applies all pending changes to the base set, producing the new
// base set. Afterwards the delta is empty and rebased on the new set.
func (d *Delta[K, V]) Commit() *BaseSet[K, V] {
	d.base = d.base.apply(d.added, d.copied, d.removed)
	d.Reset()
	return d.base
}

// Reset discards all pending changes.
func (d *Delta[K, V]) Reset() {
	clear(d.added)
	clear(d.copied)
	clear(d.removed)
}

// Rebase discards all pending changes and moves this delta on top of the
// given base set.
func (d *Delta[K, V]) Rebase(base *BaseSet[K, V]) {
	d.Reset()
	d.base = base
}

func toSortedEntries[K Key, V any](source map[K]*V) []common.MapEntry[K, V] {
	res := make([]common.MapEntry[K, V], 0, len(source))
	for key, value := range source {
		res = append(res, common.MapEntry[K, V]{Key: key, Val: *value})
	}
	slices.SortFunc(res, func(a, b common.MapEntry[K, V]) int {
		return bytes.Compare(a.Key.ToBytes(), b.Key.ToBytes())
	})
	return res
}
