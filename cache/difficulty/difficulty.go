// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package difficulty provides the per-block difficulty history used for
// calculating the difficulty of upcoming blocks. The history is a
// contiguous range of heights.
package difficulty

import (
	"fmt"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

// Info is the difficulty information of a single block.
type Info struct {
	Height     common.Height
	Timestamp  common.Timestamp
	Difficulty common.Difficulty
}

// Traits describes the difficulty cache.
func Traits() cache.Traits[common.Height, Info] {
	return cache.Traits[common.Height, Info]{
		Name:     "difficulty",
		KeyOf:    func(i Info) common.Height { return i.Height },
		Equal:    func(a, b Info) bool { return a == b },
		Ordering: cache.HeightOrdering(),
	}
}

// New creates an empty difficulty cache.
func New(options cache.Options[common.Height, Info]) (*cache.Cache[common.Height, Info], error) {
	return cache.New(Traits(), options)
}

// Prune drops all infos not among the last historySize heights up to and
// including the given height.
func Prune(delta *cache.Delta[common.Height, Info], height common.Height, historySize uint64) ([]common.Height, error) {
	if uint64(height) < historySize {
		return nil, nil
	}
	return delta.Prune(height - common.Height(historySize) + 1)
}

// Reader is the read access to a difficulty history.
type Reader interface {
	Find(common.Height) cache.FindResult[Info]
}

// Window collects the infos of the count heights up to and including the
// given height, oldest first. It fails if any of them is missing or if the
// window would start below height 0.
func Window(reader Reader, height common.Height, count uint64) ([]Info, error) {
	if count > 0 && uint64(height) < count-1 {
		return nil, fmt.Errorf("%w: window of %d blocks does not fit below height %v", common.ErrInvalidArgument, count, height)
	}
	res := make([]Info, 0, count)
	first := height + 1 - common.Height(count)
	for i := uint64(0); i < count; i++ {
		info, err := reader.Find(first + common.Height(i)).Get()
		if err != nil {
			return nil, err
		}
		res = append(res, info)
	}
	return res, nil
}
