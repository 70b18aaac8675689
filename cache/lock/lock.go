// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package lock provides the cache of hash and secret locks. Locks expire
// at a given height; touching that height reports the locks that were
// never used, so that their deposits can be refunded.
package lock

import (
	"fmt"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/amount"
)

// Status is the state of a lock.
type Status uint8

const (
	Unused Status = iota
	Used
)

var statusNames = map[Status]string{
	Unused: "Unused",
	Used:   "Used",
}

func (s Status) String() string {
	if name, found := statusNames[s]; found {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Info describes a lock.
type Info struct {
	Hash   common.Hash
	Owner  common.Address
	Mosaic common.MosaicId
	Amount amount.Amount
	Expiry common.Height
	Status Status
}

// Traits describes the lock cache.
func Traits() cache.Traits[common.Hash, Info] {
	return cache.Traits[common.Hash, Info]{
		Name:          "lock",
		KeyOf:         func(i Info) common.Hash { return i.Hash },
		Equal:         func(a, b Info) bool { return a == b },
		ExpiryHeights: func(i Info) []common.Height { return []common.Height{i.Expiry} },
		Active:        func(i Info) bool { return i.Status == Unused },
	}
}

// New creates an empty lock cache.
func New(options cache.Options[common.Hash, Info]) (*cache.Cache[common.Hash, Info], error) {
	return cache.New(Traits(), options)
}

// MarkUsed marks a lock as used. Used locks are not refunded on expiry.
func MarkUsed(delta *cache.Delta[common.Hash, Info], hash common.Hash, height common.Height) error {
	info, err := delta.FindMutable(hash).Get()
	if err != nil {
		return err
	}
	if info.Status == Used {
		return fmt.Errorf("%w: lock %v is already used", common.ErrInvalidArgument, hash)
	}
	if height >= info.Expiry {
		return fmt.Errorf("%w: lock %v expired at %v", common.ErrInvalidArgument, hash, info.Expiry)
	}
	info.Status = Used
	return nil
}
