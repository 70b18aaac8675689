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
	"errors"
	"math"
	"testing"

	"github.com/chainstate/statecache/common"
)

type heightEntry struct {
	Height common.Height
	Value  uint64
}

func orderedTraits() Traits[common.Height, heightEntry] {
	return Traits[common.Height, heightEntry]{
		Name:     "ordered",
		KeyOf:    func(e heightEntry) common.Height { return e.Height },
		Equal:    func(a, b heightEntry) bool { return a == b },
		Ordering: HeightOrdering(),
	}
}

func newOrderedCache(t *testing.T, from, to common.Height) *Cache[common.Height, heightEntry] {
	t.Helper()
	cache := newTestCache(t, orderedTraits())
	values := []heightEntry{}
	for h := from; h <= to; h++ {
		values = append(values, heightEntry{Height: h, Value: uint64(h) * 10})
	}
	seed(t, cache, values...)
	return cache
}

func TestOrderedDelta_InsertsMustBeContiguous(t *testing.T) {
	cache := newOrderedCache(t, 1, 10)
	delta, err := cache.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	tests := []struct {
		height common.Height
		ok     bool
	}{
		{11, true},
		{12, true},
		{1, false},
		{17, false},
		{0, true},
		{5, false},
		{math.MaxUint64, false},
	}
	for _, test := range tests {
		err := delta.Insert(heightEntry{Height: test.height})
		if test.ok && err != nil {
			t.Errorf("failed to insert %v: %v", test.height, err)
		}
		if !test.ok && !errors.Is(err, common.ErrInvalidArgument) {
			t.Errorf("expected insert of %v to fail, got %v", test.height, err)
		}
	}
	if got, want := delta.Size(), 13; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
}

func TestOrderedDelta_RangeDoesNotWrapAround(t *testing.T) {
	cache := newTestCache(t, orderedTraits())
	seed(t, cache, heightEntry{Height: math.MaxUint64})
	delta, err := cache.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	if err := delta.Insert(heightEntry{Height: 0}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected insert wrapping around the range to fail, got %v", err)
	}
	if err := delta.Insert(heightEntry{Height: math.MaxUint64 - 1}); err != nil {
		t.Fatalf("failed to extend range downwards: %v", err)
	}
	pruned, err := delta.Prune(math.MaxUint64)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	common.AssertArraysEqual(t, []common.Height{math.MaxUint64 - 1}, pruned)
	if got, want := delta.Size(), 1; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
}

func TestOrderedDelta_RemovesMustBeAtFrontier(t *testing.T) {
	cache := newOrderedCache(t, 1, 5)
	delta, err := cache.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	if err := delta.Remove(3); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected removal from the middle to fail, got %v", err)
	}
	if err := delta.RemoveValue(heightEntry{Height: 5, Value: 1}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected removal of different value to fail, got %v", err)
	}
	for _, h := range []common.Height{5, 1, 4, 2} {
		if err := delta.RemoveValue(heightEntry{Height: h, Value: uint64(h) * 10}); err != nil {
			t.Fatalf("failed to remove %v: %v", h, err)
		}
	}
	if err := delta.Remove(3); err != nil {
		t.Fatalf("failed to remove last element: %v", err)
	}
	if delta.Size() != 0 {
		t.Fatalf("delta not empty")
	}
	if err := delta.Insert(heightEntry{Height: 50}); err != nil {
		t.Errorf("failed to reinitialize empty set: %v", err)
	}
	if err := delta.Insert(heightEntry{Height: 52}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected disjoint insert to fail, got %v", err)
	}
}

func TestOrderedDelta_PruneRemovesLowerKeys(t *testing.T) {
	cache := newOrderedCache(t, 1, 10)
	delta, err := cache.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	pruned, err := delta.Prune(4)
	if err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	common.AssertArraysEqual(t, []common.Height{1, 2, 3}, pruned)
	if pruned, _ := delta.Prune(4); len(pruned) != 0 {
		t.Errorf("repeated prune removed %v", pruned)
	}
	if err := cache.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	view := cache.CreateView()
	defer view.Release()
	lo, hi, err := view.Range()
	if err != nil || lo != 4 || hi != 10 {
		t.Errorf("unexpected range [%v,%v], %v", lo, hi, err)
	}
	if got := len(delta.RemovedElements()); got != 0 {
		t.Errorf("removed keys still reported after commit: %d", got)
	}
	if err := delta.Insert(heightEntry{Height: 3}); err != nil {
		t.Errorf("failed to extend committed range at lower end: %v", err)
	}
}
