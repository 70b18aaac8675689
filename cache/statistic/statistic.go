// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package statistic provides the per-block statistics history. Like the
// difficulty history, it is a contiguous range of heights.
package statistic

import (
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

// BlockStatistic summarizes a single block.
type BlockStatistic struct {
	Height           common.Height
	Timestamp        common.Timestamp
	FeeMultiplier    uint32
	TransactionCount uint32
}

// Traits describes the statistic cache.
func Traits() cache.Traits[common.Height, BlockStatistic] {
	return cache.Traits[common.Height, BlockStatistic]{
		Name:     "statistic",
		KeyOf:    func(s BlockStatistic) common.Height { return s.Height },
		Equal:    func(a, b BlockStatistic) bool { return a == b },
		Ordering: cache.HeightOrdering(),
	}
}

// New creates an empty statistic cache.
func New(options cache.Options[common.Height, BlockStatistic]) (*cache.Cache[common.Height, BlockStatistic], error) {
	return cache.New(Traits(), options)
}

// Prune drops all statistics not among the last historySize heights up to
// and including the given height.
func Prune(delta *cache.Delta[common.Height, BlockStatistic], height common.Height, historySize uint64) ([]common.Height, error) {
	if uint64(height) < historySize {
		return nil, nil
	}
	return delta.Prune(height - common.Height(historySize) + 1)
}

// Rollback removes the statistics of the given number of most recent
// blocks.
func Rollback(delta *cache.Delta[common.Height, BlockStatistic], view *cache.View[common.Height, BlockStatistic], count int) error {
	_, hi, err := view.Range()
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := delta.Remove(hi - common.Height(i)); err != nil {
			return err
		}
	}
	return nil
}
