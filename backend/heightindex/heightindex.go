// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package heightindex

import (
	"bytes"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Group is the set of keys registered at a single height. Groups are
// treated as immutable values once committed; modifications operate on a
// private copy.
type Group[K deltaset.Key] struct {
	ids map[K]struct{}
}

// Size returns the number of keys in the group.
func (g Group[K]) Size() int {
	return len(g.ids)
}

// Contains checks whether the given key is part of the group.
func (g Group[K]) Contains(key K) bool {
	_, found := g.ids[key]
	return found
}

// Keys returns the keys of the group in ascending key order.
func (g Group[K]) Keys() []K {
	res := maps.Keys(g.ids)
	slices.SortFunc(res, func(a, b K) int {
		return bytes.Compare(a.ToBytes(), b.ToBytes())
	})
	return res
}

func cloneGroup[K deltaset.Key](g Group[K]) Group[K] {
	return Group[K]{ids: maps.Clone(g.ids)}
}

// NewSet creates an empty committed height index.
func NewSet[K deltaset.Key]() *deltaset.BaseSet[common.Height, Group[K]] {
	return deltaset.NewBaseSet[common.Height, Group[K]]()
}

// Delta is a mutable overlay of a height index mapping heights to the keys
// expiring at those heights. It follows the commit protocol of the deltaset
// package, so the index is versioned together with the data it indexes.
type Delta[K deltaset.Key] struct {
	delta *deltaset.Delta[common.Height, Group[K]]
}

// NewDelta creates an empty overlay on top of the given index.
func NewDelta[K deltaset.Key](base *deltaset.BaseSet[common.Height, Group[K]]) *Delta[K] {
	return &Delta[K]{delta: deltaset.NewDelta(base, cloneGroup[K])}
}

// Add registers the key at the given height.
func (d *Delta[K]) Add(height common.Height, key K) {
	group, found := d.delta.FindMutable(height)
	if !found {
		d.delta.Set(height, Group[K]{ids: map[K]struct{}{key: {}}})
		return
	}
	group.ids[key] = struct{}{}
}

// Remove unregisters the key at the given height. Groups becoming empty are
// removed from the index.
func (d *Delta[K]) Remove(height common.Height, key K) {
	group, found := d.delta.Find(height)
	if !found || !group.Contains(key) {
		return
	}
	if group.Size() == 1 {
		d.delta.Remove(height)
		return
	}
	mutable, _ := d.delta.FindMutable(height)
	delete(mutable.ids, key)
}

// RemoveGroup drops all keys registered at the given height.
func (d *Delta[K]) RemoveGroup(height common.Height) {
	if d.delta.Contains(height) {
		d.delta.Remove(height)
	}
}

// Keys returns the keys registered at the given height in ascending order.
func (d *Delta[K]) Keys(height common.Height) []K {
	group, found := d.delta.Find(height)
	if !found {
		return nil
	}
	return group.Keys()
}

// Heights returns all heights in the range [from, to] with at least one
// registered key, in ascending order. The cost is proportional to the
// number of groups in the range plus the number of pending new groups.
func (d *Delta[K]) Heights(from, to common.Height) []common.Height {
	if from > to {
		return nil
	}
	res := []common.Height{}
	for iter := d.delta.Base().IteratorFrom(from); iter.HasNext(); {
		height := iter.Next().Key
		if height > to {
			break
		}
		if d.delta.Contains(height) {
			res = append(res, height)
		}
	}
	for _, added := range d.delta.AddedElements() {
		if added.Key >= from && added.Key <= to {
			res = append(res, added.Key)
		}
	}
	slices.Sort(res)
	return res
}

// NumGroups returns the number of heights with registered keys.
func (d *Delta[K]) NumGroups() int {
	return d.delta.Size()
}

// Commit applies the pending changes and returns the new index state.
func (d *Delta[K]) Commit() *deltaset.BaseSet[common.Height, Group[K]] {
	return d.delta.Commit()
}

// Reset discards pending changes.
func (d *Delta[K]) Reset() {
	d.delta.Reset()
}

// Rebase discards pending changes and moves the overlay onto the given
// index state.
func (d *Delta[K]) Rebase(base *deltaset.BaseSet[common.Height, Group[K]]) {
	d.delta.Rebase(base)
}
