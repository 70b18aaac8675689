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
	"bytes"
	"fmt"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/backend/heightindex"
	"github.com/chainstate/statecache/common"
	"go.uber.org/zap"
	"golang.org/x/exp/slices"
)

// Delta is a read-write handle on a cache. It collects changes in an
// overlay on top of the committed state it was created from. A Delta is not
// safe for concurrent use; it is owned by the goroutine that created it.
type Delta[K deltaset.Key, V any] struct {
	owner   *Cache[K, V]
	base    *state[K, V]
	entries *deltaset.Delta[K, V]
	heights *heightindex.Delta[K]

	pruningBoundary common.Height
	hasBoundary     bool

	// the key range of ordered caches
	lo, hi   K
	hasRange bool

	generation uint64
	released   bool
	onRelease  func()
}

func newDelta[K deltaset.Key, V any](owner *Cache[K, V], base *state[K, V], generation uint64) *Delta[K, V] {
	res := &Delta[K, V]{
		owner:      owner,
		entries:    deltaset.NewDelta(base.entries, owner.traits.Clone),
		generation: generation,
	}
	if base.heights != nil {
		res.heights = heightindex.NewDelta(base.heights)
	}
	res.rebase(base)
	return res
}

func (d *Delta[K, V]) rebase(base *state[K, V]) {
	d.base = base
	d.pruningBoundary = base.pruningBoundary
	d.hasBoundary = base.hasBoundary
	var zero K
	d.lo, d.hi, d.hasRange = zero, zero, false
	if d.owner.traits.Ordering != nil {
		if lo, _, found := base.entries.Min(); found {
			hi, _, _ := base.entries.Max()
			d.lo, d.hi, d.hasRange = lo, hi, true
		}
	}
}

func (d *Delta[K, V]) checkActive() error {
	if d.released {
		return fmt.Errorf("cache %q: %w", d.owner.traits.Name, common.ErrReleased)
	}
	return nil
}

// Name returns the name of the cache this delta belongs to.
func (d *Delta[K, V]) Name() string {
	return d.owner.traits.Name
}

// Generation returns the generation of the committed state this delta is
// based on.
func (d *Delta[K, V]) Generation() uint64 {
	return d.generation
}

// Size returns the number of elements visible through this delta. A
// released delta is empty.
func (d *Delta[K, V]) Size() int {
	if d.released {
		return 0
	}
	return d.entries.Size()
}

// Contains returns true if the key is visible through this delta.
func (d *Delta[K, V]) Contains(key K) bool {
	return !d.released && d.entries.Contains(key)
}

// Find looks up the value of the given key.
func (d *Delta[K, V]) Find(key K) FindResult[V] {
	if err := d.checkActive(); err != nil {
		return failed[V](key, err)
	}
	if value, exists := d.entries.Find(key); exists {
		return found(key, value)
	}
	return notFound[V](key)
}

// FindMutable looks up the value of the given key for modification. The
// returned pointer refers to a private copy owned by this delta; the key is
// reported as modified on commit. Expiry heights of height-indexed values
// must be changed through Update, not through this pointer.
func (d *Delta[K, V]) FindMutable(key K) FindResult[*V] {
	if err := d.checkActive(); err != nil {
		return failed[*V](key, err)
	}
	if value, exists := d.entries.FindMutable(key); exists {
		return found(key, value)
	}
	return notFound[*V](key)
}

// Insert adds a new value. If its key is already present, history-capable
// caches renew the existing value while all other caches fail with
// ErrInvalidArgument. Ordered caches only accept keys extending the current
// key range at one of its ends.
func (d *Delta[K, V]) Insert(value V) error {
	if err := d.checkActive(); err != nil {
		return err
	}
	traits := &d.owner.traits
	key := traits.KeyOf(value)
	if existing, exists := d.entries.Find(key); exists {
		if traits.Renew == nil {
			return fmt.Errorf("%w: key %v is already present in %s", common.ErrInvalidArgument, key, traits.Name)
		}
		renewed, err := traits.Renew(existing, value)
		if err != nil {
			return fmt.Errorf("failed to renew %v in %s: %w", key, traits.Name, err)
		}
		d.reindex(key, existing, renewed)
		d.entries.Set(key, renewed)
		return nil
	}
	if traits.Ordering != nil {
		if err := d.extendRange(key); err != nil {
			return err
		}
	}
	d.entries.Set(key, value)
	d.index(key, value)
	return nil
}

// Update replaces the value of a present key. Height index registrations
// follow the expiry heights of the new value.
func (d *Delta[K, V]) Update(value V) error {
	if err := d.checkActive(); err != nil {
		return err
	}
	key := d.owner.traits.KeyOf(value)
	existing, exists := d.entries.Find(key)
	if !exists {
		return fmt.Errorf("%w: key %v is not present in %s", common.ErrInvalidArgument, key, d.owner.traits.Name)
	}
	d.reindex(key, existing, value)
	d.entries.Set(key, value)
	return nil
}

// Remove deletes the value of the given key. Ordered caches only accept
// the removal of the smallest or largest key.
func (d *Delta[K, V]) Remove(key K) error {
	if err := d.checkActive(); err != nil {
		return err
	}
	existing, exists := d.entries.Find(key)
	if !exists {
		return fmt.Errorf("%w: key %v is not present in %s", common.ErrInvalidArgument, key, d.owner.traits.Name)
	}
	if d.owner.traits.Ordering != nil {
		if err := d.shrinkRange(key); err != nil {
			return err
		}
	}
	d.remove(key, existing)
	return nil
}

// RemoveValue deletes the given value, which has to be equal to the value
// stored for its key.
func (d *Delta[K, V]) RemoveValue(value V) error {
	if err := d.checkActive(); err != nil {
		return err
	}
	traits := &d.owner.traits
	key := traits.KeyOf(value)
	existing, exists := d.entries.Find(key)
	if !exists {
		return fmt.Errorf("%w: key %v is not present in %s", common.ErrInvalidArgument, key, traits.Name)
	}
	if traits.Equal != nil && !traits.Equal(existing, value) {
		return fmt.Errorf("%w: value stored for %v in %s differs", common.ErrInvalidArgument, key, traits.Name)
	}
	return d.Remove(key)
}

func (d *Delta[K, V]) remove(key K, existing V) {
	// presence has been checked by the caller
	_ = d.entries.Remove(key)
	if d.heights == nil {
		return
	}
	for _, height := range d.owner.traits.ExpiryHeights(existing) {
		d.heights.Remove(height, key)
	}
}

// Touch marks all values registered at exactly the given height as
// modified and returns the keys of those passing the cache's Active
// predicate, in ascending key order.
func (d *Delta[K, V]) Touch(height common.Height) ([]K, error) {
	if err := d.checkActive(); err != nil {
		return nil, err
	}
	if d.heights == nil {
		return nil, fmt.Errorf("%w: cache %s is not height indexed", common.ErrInvalidArgument, d.owner.traits.Name)
	}
	keys := d.heights.Keys(height)
	res := make([]K, 0, len(keys))
	for _, key := range keys {
		value, exists := d.entries.FindMutable(key)
		if !exists {
			continue
		}
		if d.owner.traits.Active == nil || d.owner.traits.Active(*value) {
			res = append(res, key)
		}
	}
	d.owner.metrics.touched.Add(len(keys))
	return res, nil
}

// Prune removes expired values up to the given height and returns the keys
// removed from the cache. Pruning is idempotent and monotonic: heights at
// or below the pruning boundary are ignored. The first prune of a
// height-indexed cache only covers the given height; later ones cover the
// range between the boundary and the given height. Ordered caches drop all
// keys below the key of the given height.
func (d *Delta[K, V]) Prune(height common.Height) ([]K, error) {
	if err := d.checkActive(); err != nil {
		return nil, err
	}
	var res []K
	switch {
	case d.owner.traits.Ordering != nil:
		res = d.pruneOrdered(height)
	case d.heights != nil:
		if d.hasBoundary && height <= d.pruningBoundary {
			return nil, nil
		}
		res = d.pruneIndexed(height)
	default:
		return nil, fmt.Errorf("%w: cache %s can not be pruned", common.ErrInvalidArgument, d.owner.traits.Name)
	}
	if !d.hasBoundary || height > d.pruningBoundary {
		d.pruningBoundary = height
		d.hasBoundary = true
	}
	d.owner.metrics.pruned.Add(len(res))
	d.owner.log.Debug("pruned", zap.Stringer("height", height), zap.Int("removed", len(res)))
	return res, nil
}

func (d *Delta[K, V]) pruneIndexed(height common.Height) []K {
	heights := []common.Height{height}
	if d.hasBoundary {
		heights = d.heights.Heights(d.pruningBoundary.Next(), height)
	}
	traits := &d.owner.traits
	var res []K
	for _, current := range heights {
		for _, key := range d.heights.Keys(current) {
			value, exists := d.entries.Find(key)
			if !exists {
				d.heights.Remove(current, key)
				continue
			}
			if traits.PruneVersion != nil {
				if remaining, keep := traits.PruneVersion(value, current); keep {
					d.reindex(key, value, remaining)
					d.entries.Set(key, remaining)
					continue
				}
			}
			d.remove(key, value)
			res = append(res, key)
		}
		d.heights.RemoveGroup(current)
	}
	return res
}

func (d *Delta[K, V]) pruneOrdered(height common.Height) []K {
	limit := d.owner.traits.Ordering.FromHeight(height)
	var res []K
	for d.hasRange && less(d.lo, limit) {
		key := d.lo
		value, _ := d.entries.Find(key)
		_ = d.shrinkRange(key)
		d.remove(key, value)
		res = append(res, key)
	}
	return res
}

// PruningBoundary returns the height up to which pruning is complete, if
// any prune has been performed.
func (d *Delta[K, V]) PruningBoundary() (common.Height, bool) {
	return d.pruningBoundary, d.hasBoundary
}

// RestorePruningBoundary sets the pruning boundary without pruning. It is
// used when loading a cache whose content has been pruned before. The
// boundary can not be moved backwards.
func (d *Delta[K, V]) RestorePruningBoundary(height common.Height) error {
	if err := d.checkActive(); err != nil {
		return err
	}
	if d.hasBoundary && height < d.pruningBoundary {
		return fmt.Errorf("%w: pruning boundary of %s is already at %v", common.ErrInvalidArgument, d.owner.traits.Name, d.pruningBoundary)
	}
	d.pruningBoundary = height
	d.hasBoundary = true
	return nil
}

// AddedElements lists the values added by this delta, sorted by key.
func (d *Delta[K, V]) AddedElements() []common.MapEntry[K, V] {
	if d.released {
		return nil
	}
	return d.entries.AddedElements()
}

// ModifiedElements lists the values modified by this delta, sorted by key.
func (d *Delta[K, V]) ModifiedElements() []common.MapEntry[K, V] {
	if d.released {
		return nil
	}
	return d.entries.ModifiedElements()
}

// RemovedElements lists the keys removed by this delta, sorted.
func (d *Delta[K, V]) RemovedElements() []K {
	if d.released {
		return nil
	}
	return d.entries.RemovedElements()
}

// Release discards all uncommitted changes and gives up write access to
// the cache. Releasing a delta twice has no effect.
func (d *Delta[K, V]) Release() {
	if d.released {
		return
	}
	d.released = true
	d.entries.Reset()
	if d.heights != nil {
		d.heights.Reset()
	}
	d.rebase(d.base)
	if d.onRelease != nil {
		d.onRelease()
	}
}

func (d *Delta[K, V]) changeSet() ChangeSet[K, V] {
	return ChangeSet[K, V]{
		Cache:    d.owner.traits.Name,
		Added:    d.entries.AddedElements(),
		Modified: d.entries.ModifiedElements(),
		Removed:  d.entries.RemovedElements(),
	}
}

// commit folds the changes into a new state and rebases this delta on it.
func (d *Delta[K, V]) commit() *state[K, V] {
	next := &state[K, V]{
		entries:         d.entries.Commit(),
		pruningBoundary: d.pruningBoundary,
		hasBoundary:     d.hasBoundary,
	}
	if d.heights != nil {
		next.heights = d.heights.Commit()
	}
	d.base = next
	return next
}

func (d *Delta[K, V]) index(key K, value V) {
	if d.heights == nil {
		return
	}
	for _, height := range d.owner.traits.ExpiryHeights(value) {
		d.heights.Add(height, key)
	}
}

// reindex moves the height registrations of key from those of the old
// value to those of the updated one.
func (d *Delta[K, V]) reindex(key K, old, updated V) {
	if d.heights == nil {
		return
	}
	before := d.owner.traits.ExpiryHeights(old)
	after := d.owner.traits.ExpiryHeights(updated)
	for _, height := range before {
		if !slices.Contains(after, height) {
			d.heights.Remove(height, key)
		}
	}
	for _, height := range after {
		if !slices.Contains(before, height) {
			d.heights.Add(height, key)
		}
	}
}

func (d *Delta[K, V]) extendRange(key K) error {
	ordering := d.owner.traits.Ordering
	switch {
	case !d.hasRange || d.entries.Size() == 0:
		d.lo, d.hi, d.hasRange = key, key, true
	case key == ordering.Next(d.hi) && less(d.hi, key):
		d.hi = key
	case key == ordering.Prev(d.lo) && less(key, d.lo):
		d.lo = key
	default:
		return fmt.Errorf("%w: key %v does not extend range [%v, %v] of %s", common.ErrInvalidArgument, key, d.lo, d.hi, d.owner.traits.Name)
	}
	return nil
}

func (d *Delta[K, V]) shrinkRange(key K) error {
	ordering := d.owner.traits.Ordering
	switch {
	case d.lo == d.hi && key == d.lo:
		var zero K
		d.lo, d.hi, d.hasRange = zero, zero, false
	case key == d.lo:
		d.lo = ordering.Next(d.lo)
	case key == d.hi:
		d.hi = ordering.Prev(d.hi)
	default:
		return fmt.Errorf("%w: key %v is not at the end of range [%v, %v] of %s", common.ErrInvalidArgument, key, d.lo, d.hi, d.owner.traits.Name)
	}
	return nil
}

func less[K deltaset.Key](a, b K) bool {
	return bytes.Compare(a.ToBytes(), b.ToBytes()) < 0
}
