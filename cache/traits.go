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
	"github.com/chainstate/statecache/common"
)

// Traits describes the capabilities of a cache type. The policies described
// here are fixed per cache type; they can not be changed per operation.
type Traits[K deltaset.Key, V any] struct {
	// Name identifies the cache in logs and metrics.
	Name string

	// KeyOf extracts the key of a value. Required.
	KeyOf func(V) K

	// Clone produces a deep copy of a value before it is modified through a
	// delta. Values without reference-typed fields do not need it.
	Clone func(V) V

	// Equal compares values for RemoveValue. If nil, RemoveValue only
	// checks for the presence of the key.
	Equal func(a, b V) bool

	// ExpiryHeights lists the heights a value is registered at in the
	// height index. Setting it enables Touch and height based Prune.
	ExpiryHeights func(V) []common.Height

	// Active is the qualification predicate of Touch. If nil, all touched
	// values qualify.
	Active func(V) bool

	// Renew makes a cache history-capable: inserting a present key merges
	// the incoming value into the existing one instead of failing.
	Renew func(existing, incoming V) (V, error)

	// PruneVersion drops the versions of a history value expiring at the
	// given height. It returns the remaining value and whether anything
	// remains. Without it, pruning removes whole entries.
	PruneVersion func(value V, height common.Height) (V, bool)

	// Ordering makes a cache strictly ordered.
	Ordering *Ordering[K]
}

// Ordering describes the sequence of keys of a strictly ordered cache.
// Elements of such caches form a contiguous range of keys that may only be
// extended or shrunk at its ends.
type Ordering[K deltaset.Key] struct {
	Next       func(K) K
	Prev       func(K) K
	FromHeight func(common.Height) K
}

// HeightOrdering is the ordering of caches keyed by block height.
func HeightOrdering() *Ordering[common.Height] {
	return &Ordering[common.Height]{
		Next:       common.Height.Next,
		Prev:       common.Height.Prev,
		FromHeight: func(h common.Height) common.Height { return h },
	}
}

func (t *Traits[K, V]) check() error {
	if t.KeyOf == nil {
		return fmt.Errorf("cache %q: missing key extractor", t.Name)
	}
	if t.PruneVersion != nil && t.ExpiryHeights == nil {
		return fmt.Errorf("cache %q: version pruning requires expiry heights", t.Name)
	}
	if t.Ordering != nil {
		if t.Ordering.Next == nil || t.Ordering.Prev == nil || t.Ordering.FromHeight == nil {
			return fmt.Errorf("cache %q: incomplete ordering", t.Name)
		}
		if t.ExpiryHeights != nil || t.Renew != nil {
			return fmt.Errorf("cache %q: ordered caches can not be height indexed or renewable", t.Name)
		}
	}
	return nil
}

func (t *Traits[K, V]) isHeightIndexed() bool {
	return t.ExpiryHeights != nil
}
