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

//go:generate mockgen -source store.go -destination store_mocks.go -package storage

import (
	"github.com/chainstate/statecache/common"
)

// TableSpace divides a store into spaces by prefixing keys.
type TableSpace byte

const (
	// MetaTable holds per-table bookkeeping such as pruning boundaries.
	MetaTable       TableSpace = '_'
	AccountTable    TableSpace = 'A'
	MosaicTable     TableSpace = 'M'
	NamespaceTable  TableSpace = 'N'
	MultisigTable   TableSpace = 'S'
	HashTable       TableSpace = 'H'
	LockTable       TableSpace = 'L'
	DifficultyTable TableSpace = 'D'
	StatisticTable  TableSpace = 'T'
)

// ToDBKey prefixes the given key with the table space.
func (t TableSpace) ToDBKey(key []byte) []byte {
	res := make([]byte, 0, len(key)+1)
	res = append(res, byte(t))
	return append(res, key...)
}

func (t TableSpace) String() string {
	return string([]byte{byte(t)})
}

// Store is a key/value storage for cache snapshots, divided into table
// spaces. Iteration visits the entries of a table in ascending key order.
type Store interface {
	// Put stores the value for the given key, overwriting any previous value.
	Put(table TableSpace, key, value []byte) error
	// Get returns the value stored for the key and whether there is one.
	Get(table TableSpace, key []byte) ([]byte, bool, error)
	// ForEach visits the entries of a table in ascending key order. Keys
	// are passed without the table prefix. Iteration stops at the first
	// error returned by visit.
	ForEach(table TableSpace, visit func(key, value []byte) error) error
	// DeleteTable removes all entries of a table.
	DeleteTable(table TableSpace) error
	// Flush persists all pending changes.
	Flush() error
	// Close flushes and releases the store.
	Close() error

	common.MemoryFootprintProvider
}
