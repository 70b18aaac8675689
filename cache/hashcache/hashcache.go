// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package hashcache provides the cache of recently confirmed transaction
// hashes, used to reject duplicate transactions. Hashes are retained until
// their expiry height and then pruned.
package hashcache

import (
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

// Entry is a confirmed hash.
type Entry struct {
	Hash      common.Hash
	Timestamp common.Timestamp
	Expiry    common.Height
}

// NewEntry creates an entry confirmed at the given height and retained
// for the given number of blocks.
func NewEntry(hash common.Hash, timestamp common.Timestamp, height common.Height, retention uint64) Entry {
	return Entry{
		Hash:      hash,
		Timestamp: timestamp,
		Expiry:    height + common.Height(retention),
	}
}

// Traits describes the hash cache.
func Traits() cache.Traits[common.Hash, Entry] {
	return cache.Traits[common.Hash, Entry]{
		Name:          "hash",
		KeyOf:         func(e Entry) common.Hash { return e.Hash },
		Equal:         func(a, b Entry) bool { return a == b },
		ExpiryHeights: func(e Entry) []common.Height { return []common.Height{e.Expiry} },
	}
}

// New creates an empty hash cache.
func New(options cache.Options[common.Hash, Entry]) (*cache.Cache[common.Hash, Entry], error) {
	return cache.New(Traits(), options)
}
