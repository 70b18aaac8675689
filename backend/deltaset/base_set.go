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
	"unsafe"

	"github.com/chainstate/statecache/common"
	iradix "github.com/hashicorp/go-immutable-radix/v2"
)

// Key is the type constraint of keys stored in a set. The byte encoding
// of a key determines the iteration order of the set; numeric keys use a
// big-endian encoding so that byte order and numeric order coincide.
type Key interface {
	comparable
	ToBytes() []byte
}

type entry[K Key, V any] struct {
	key   K
	value V
}

// BaseSet is the committed, immutable state of a cache. A BaseSet is never
// modified after its creation. Committing a Delta produces a new BaseSet
// sharing all unmodified parts with its predecessor, so references to older
// instances stay valid and keep describing the state they were taken from.
type BaseSet[K Key, V any] struct {
	tree *iradix.Tree[entry[K, V]]
}

// NewBaseSet creates an empty set.
func NewBaseSet[K Key, V any]() *BaseSet[K, V] {
	return &BaseSet[K, V]{tree: iradix.New[entry[K, V]]()}
}

// Size returns the number of elements in the set.
func (s *BaseSet[K, V]) Size() int {
	return s.tree.Len()
}

// Find looks up the value stored for the given key.
func (s *BaseSet[K, V]) Find(key K) (V, bool) {
	res, found := s.tree.Get(key.ToBytes())
	return res.value, found
}

// Contains checks whether the given key is present.
func (s *BaseSet[K, V]) Contains(key K) bool {
	_, found := s.tree.Get(key.ToBytes())
	return found
}

// Min returns the entry with the smallest key encoding.
func (s *BaseSet[K, V]) Min() (K, V, bool) {
	_, res, found := s.tree.Root().Minimum()
	return res.key, res.value, found
}

// Max returns the entry with the largest key encoding.
func (s *BaseSet[K, V]) Max() (K, V, bool) {
	_, res, found := s.tree.Root().Maximum()
	return res.key, res.value, found
}

// ForEach visits all entries in ascending key order until the visitor
// returns false.
func (s *BaseSet[K, V]) ForEach(visit func(K, V) bool) {
	s.tree.Root().Walk(func(_ []byte, e entry[K, V]) bool {
		return !visit(e.key, e.value)
	})
}

// Iterator creates a lazy iterator over all entries in ascending key order.
// The iterator may be restarted by creating a new one; each iterator
// observes exactly the content of this set.
func (s *BaseSet[K, V]) Iterator() *Iterator[K, V] {
	res := &Iterator[K, V]{iter: s.tree.Root().Iterator()}
	res.advance()
	return res
}

// IteratorFrom creates an iterator starting at the first entry whose key is
// not less than the given key.
func (s *BaseSet[K, V]) IteratorFrom(key K) *Iterator[K, V] {
	iter := s.tree.Root().Iterator()
	iter.SeekLowerBound(key.ToBytes())
	res := &Iterator[K, V]{iter: iter}
	res.advance()
	return res
}

func (s *BaseSet[K, V]) GetMemoryFootprint() *common.MemoryFootprint {
	entrySize := unsafe.Sizeof(entry[K, V]{})
	return common.NewMemoryFootprint(uintptr(s.Size()) * entrySize)
}

// apply creates the successor of this set by applying the given changes.
// The cost is proportional to the number of changes, not to the size of
// the set.
func (s *BaseSet[K, V]) apply(upserts map[K]*V, upsertsToo map[K]*V, removed map[K]struct{}) *BaseSet[K, V] {
	if len(upserts) == 0 && len(upsertsToo) == 0 && len(removed) == 0 {
		return s
	}
	txn := s.tree.Txn()
	for key, value := range upserts {
		txn.Insert(key.ToBytes(), entry[K, V]{key: key, value: *value})
	}
	for key, value := range upsertsToo {
		txn.Insert(key.ToBytes(), entry[K, V]{key: key, value: *value})
	}
	for key := range removed {
		txn.Delete(key.ToBytes())
	}
	return &BaseSet[K, V]{tree: txn.Commit()}
}

// Iterator is a lazy iterator over the entries of a BaseSet.
type Iterator[K Key, V any] struct {
	iter    *iradix.Iterator[entry[K, V]]
	next    entry[K, V]
	hasNext bool
}

var _ common.Iterator[common.MapEntry[common.Height, int]] = (*Iterator[common.Height, int])(nil)

func (i *Iterator[K, V]) advance() {
	_, i.next, i.hasNext = i.iter.Next()
}

// HasNext returns true if there is at least one more entry.
func (i *Iterator[K, V]) HasNext() bool {
	return i.hasNext
}

// Next returns the next entry. It must only be called if HasNext is true.
func (i *Iterator[K, V]) Next() common.MapEntry[K, V] {
	res := common.MapEntry[K, V]{Key: i.next.key, Val: i.next.value}
	i.advance()
	return res
}
