// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statecache

import (
	"fmt"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/storage"
	"go.uber.org/zap"
)

// Save stores the committed content of all caches in the given store,
// one table per cache. It returns the number of saved elements.
func (s *StateCache) Save(store storage.Store) (int, error) {
	view := s.CreateView()
	defer view.Release()
	codec := s.config.Codec
	total := 0
	for _, save := range []func() (int, error){
		func() (int, error) { return saveTable(store, storage.AccountTable, codec, view.Accounts) },
		func() (int, error) { return saveTable(store, storage.MosaicTable, codec, view.Mosaics) },
		func() (int, error) { return saveTable(store, storage.NamespaceTable, codec, view.Namespaces) },
		func() (int, error) { return saveTable(store, storage.MultisigTable, codec, view.Multisigs) },
		func() (int, error) { return saveTable(store, storage.HashTable, codec, view.Hashes) },
		func() (int, error) { return saveTable(store, storage.LockTable, codec, view.Locks) },
		func() (int, error) { return saveTable(store, storage.DifficultyTable, codec, view.Difficulties) },
		func() (int, error) { return saveTable(store, storage.StatisticTable, codec, view.Statistics) },
	} {
		count, err := save()
		total += count
		if err != nil {
			return total, err
		}
	}
	s.log.Info("state saved", zap.Int("elements", total), zap.String("codec", codec))
	return total, nil
}

// Load fills the caches of an empty state cache from the given store.
// Each cache is committed once. It returns the number of loaded elements.
func (s *StateCache) Load(store storage.Store) (int, error) {
	codec := s.config.Codec
	total := 0
	for _, load := range []func() (int, error){
		func() (int, error) { return loadTable(store, storage.AccountTable, codec, s.Accounts) },
		func() (int, error) { return loadTable(store, storage.MosaicTable, codec, s.Mosaics) },
		func() (int, error) { return loadTable(store, storage.NamespaceTable, codec, s.Namespaces) },
		func() (int, error) { return loadTable(store, storage.MultisigTable, codec, s.Multisigs) },
		func() (int, error) { return loadTable(store, storage.HashTable, codec, s.Hashes) },
		func() (int, error) { return loadTable(store, storage.LockTable, codec, s.Locks) },
		func() (int, error) { return loadTable(store, storage.DifficultyTable, codec, s.Difficulties) },
		func() (int, error) { return loadTable(store, storage.StatisticTable, codec, s.Statistics) },
	} {
		count, err := load()
		if err != nil {
			return total, err
		}
		total += count
	}
	s.log.Info("state loaded", zap.Int("elements", total), zap.String("codec", codec))
	return total, nil
}

func saveTable[K deltaset.Key, V any](store storage.Store, table storage.TableSpace, codecName string, view *cache.View[K, V]) (int, error) {
	codec, err := storage.NewCodec[V](codecName)
	if err != nil {
		return 0, err
	}
	count, err := storage.Save(store, table, codec, view)
	if err != nil {
		return count, fmt.Errorf("failed to save %s: %w", view.Name(), err)
	}
	return count, nil
}

func loadTable[K deltaset.Key, V any](store storage.Store, table storage.TableSpace, codecName string, target *cache.Cache[K, V]) (int, error) {
	codec, err := storage.NewCodec[V](codecName)
	if err != nil {
		return 0, err
	}
	count, err := storage.Load(store, table, codec, target)
	if err != nil {
		return count, fmt.Errorf("failed to load %s: %w", target.Name(), err)
	}
	return count, nil
}
