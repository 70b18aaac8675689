// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package statistic

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

func TestStatistic_RollbackRemovesMostRecentBlocks(t *testing.T) {
	statistics, err := New(cache.Options[common.Height, BlockStatistic]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := statistics.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()
	for height := common.Height(1); height <= 5; height++ {
		if err := delta.Insert(BlockStatistic{Height: height, FeeMultiplier: uint32(height)}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := statistics.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	view := statistics.CreateView()
	if err := Rollback(delta, view, 2); err != nil {
		t.Fatalf("failed to roll back: %v", err)
	}
	if err := Rollback(delta, view, 1); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected rollback of removed height to fail, got %v", err)
	}
	view.Release()
	common.AssertArraysEqual(t, []common.Height{4, 5}, delta.RemovedElements())
	if err := delta.Insert(BlockStatistic{Height: 4, FeeMultiplier: 40}); err != nil {
		t.Errorf("failed to replace rolled back block: %v", err)
	}
}

func TestStatistic_PruneKeepsHistorySize(t *testing.T) {
	statistics, err := New(cache.Options[common.Height, BlockStatistic]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := statistics.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	const historySize = 3
	for height := common.Height(1); height <= 6; height++ {
		if err := delta.Insert(BlockStatistic{Height: height}); err != nil {
			t.Fatalf("failed to insert %v: %v", height, err)
		}
		pruned, err := Prune(delta, height, historySize)
		if err != nil {
			t.Fatalf("failed to prune at %v: %v", height, err)
		}
		if height < historySize && len(pruned) != 0 {
			t.Errorf("prune at %v removed %v before history was full", height, pruned)
		}
	}
	if got, want := delta.Size(), historySize; got != want {
		t.Errorf("unexpected history size, wanted %d, got %d", want, got)
	}
	for height := common.Height(4); height <= 6; height++ {
		if !delta.Contains(height) {
			t.Errorf("expected height %v to be retained", height)
		}
	}
}
