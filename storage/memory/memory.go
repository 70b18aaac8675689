// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package memory provides an in-memory storage.Store, used for tests and
// short-lived tools.
package memory

import (
	"sync"
	"unsafe"

	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/storage"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Store keeps all tables in maps.
type Store struct {
	mutex  sync.Mutex
	tables map[storage.TableSpace]map[string][]byte
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{tables: map[storage.TableSpace]map[string][]byte{}}
}

func (s *Store) Put(table storage.TableSpace, key, value []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	content, found := s.tables[table]
	if !found {
		content = map[string][]byte{}
		s.tables[table] = content
	}
	content[string(key)] = slices.Clone(value)
	return nil
}

func (s *Store) Get(table storage.TableSpace, key []byte) ([]byte, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	value, found := s.tables[table][string(key)]
	return slices.Clone(value), found, nil
}

// ForEach visits a snapshot of the table taken when the iteration starts.
func (s *Store) ForEach(table storage.TableSpace, visit func(key, value []byte) error) error {
	s.mutex.Lock()
	content := maps.Clone(s.tables[table])
	s.mutex.Unlock()

	keys := maps.Keys(content)
	slices.Sort(keys)
	for _, key := range keys {
		if err := visit([]byte(key), content[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) DeleteTable(table storage.TableSpace) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.tables, table)
	return nil
}

func (s *Store) Flush() error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) GetMemoryFootprint() *common.MemoryFootprint {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	res := common.NewMemoryFootprint(unsafe.Sizeof(*s))
	for table, content := range s.tables {
		size := uintptr(0)
		for key, value := range content {
			size += uintptr(len(key) + len(value))
		}
		res.AddChild(table.String(), common.NewMemoryFootprint(size))
	}
	return res
}
