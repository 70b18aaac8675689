// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package ldb provides a storage.Store backed by LevelDB. Tables are
// mapped to key prefixes of a single database.
package ldb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/storage"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/exp/slices"
)

// Store is a storage.Store in a LevelDB directory. The directory is locked
// for the lifetime of the store.
type Store struct {
	db      *leveldb.DB
	lock    common.LockFile
	options *opt.Options
}

// Open opens or creates the store in the given directory.
func Open(directory string) (*Store, error) {
	if err := os.MkdirAll(directory, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", directory, err)
	}
	lock, err := common.LockDirectory(directory)
	if err != nil {
		return nil, err
	}
	options := &opt.Options{}
	db, err := leveldb.OpenFile(filepath.Join(directory, "db"), options)
	if err != nil {
		return nil, errors.Join(err, lock.Release())
	}
	return &Store{db: db, lock: lock, options: options}, nil
}

func (s *Store) Put(table storage.TableSpace, key, value []byte) error {
	return s.db.Put(table.ToDBKey(key), value, nil)
}

func (s *Store) Get(table storage.TableSpace, key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(table.ToDBKey(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) ForEach(table storage.TableSpace, visit func(key, value []byte) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte{byte(table)}), nil)
	defer iter.Release()
	for iter.Next() {
		// slices returned by the iterator are reused
		key := slices.Clone(iter.Key()[1:])
		if err := visit(key, slices.Clone(iter.Value())); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) DeleteTable(table storage.TableSpace) error {
	batch := new(leveldb.Batch)
	iter := s.db.NewIterator(util.BytesPrefix([]byte{byte(table)}), nil)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

// Flush has nothing to do; LevelDB persists writes through its journal.
func (s *Store) Flush() error {
	return nil
}

func (s *Store) Close() error {
	return errors.Join(
		s.db.Close(),
		s.lock.Release(),
	)
}

func (s *Store) GetMemoryFootprint() *common.MemoryFootprint {
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	res.AddChild("writeBuffer", common.NewMemoryFootprint(uintptr(s.options.GetWriteBuffer())))
	var stats leveldb.DBStats
	if err := s.db.Stats(&stats); err == nil {
		res.AddChild("blockCache", common.NewMemoryFootprint(uintptr(stats.BlockCacheSize)))
	}
	return res
}
