// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

// Save replaces the content of a table with the elements of the given
// view. The pruning boundary of the view is recorded in the MetaTable.
// It returns the number of saved elements.
func Save[K deltaset.Key, V any](store Store, table TableSpace, codec Codec[V], view *cache.View[K, V]) (int, error) {
	if err := store.DeleteTable(table); err != nil {
		return 0, fmt.Errorf("failed to clear table %v: %w", table, err)
	}
	count := 0
	var err error
	view.ForEach(func(key K, value V) bool {
		var data []byte
		if data, err = codec.Encode(value); err != nil {
			err = fmt.Errorf("failed to encode %v: %w", key, err)
			return false
		}
		if err = store.Put(table, key.ToBytes(), data); err != nil {
			return false
		}
		count++
		return true
	})
	if err != nil {
		return count, err
	}
	if boundary, set := view.PruningBoundary(); set {
		if err := store.Put(MetaTable, []byte{byte(table)}, boundary.ToBytes()); err != nil {
			return count, err
		}
	}
	return count, store.Flush()
}

// Load fills an empty cache with the elements stored in a table and
// commits them. A recorded pruning boundary is restored. It returns the
// number of loaded elements.
func Load[K deltaset.Key, V any](store Store, table TableSpace, codec Codec[V], target *cache.Cache[K, V]) (res int, err error) {
	delta, err := target.CreateDelta()
	if err != nil {
		return 0, err
	}
	defer delta.Release()
	if delta.Size() != 0 {
		return 0, fmt.Errorf("%w: cache %s is not empty", common.ErrInvalidArgument, target.Name())
	}

	err = store.ForEach(table, func(key, data []byte) error {
		value, err := codec.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to decode value of key %x: %w", key, err)
		}
		if err := delta.Insert(value); err != nil {
			return err
		}
		res++
		return nil
	})
	if err != nil {
		return 0, err
	}

	boundary, found, err := store.Get(MetaTable, []byte{byte(table)})
	if err != nil {
		return 0, err
	}
	if found {
		if len(boundary) != 8 {
			return 0, fmt.Errorf("invalid pruning boundary of table %v: %x", table, boundary)
		}
		if err := delta.RestorePruningBoundary(common.Height(binary.BigEndian.Uint64(boundary))); err != nil {
			return 0, err
		}
	}
	return res, target.Commit()
}
