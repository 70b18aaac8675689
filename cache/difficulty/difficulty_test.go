// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package difficulty

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

func TestDifficulty_HistoryIsBoundedAndContiguous(t *testing.T) {
	difficulties, err := New(cache.Options[common.Height, Info]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := difficulties.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	const historySize = 4
	for height := common.Height(1); height <= 10; height++ {
		info := Info{Height: height, Timestamp: common.Timestamp(height * 15), Difficulty: common.Difficulty(1000 + height)}
		if err := delta.Insert(info); err != nil {
			t.Fatalf("failed to insert %v: %v", height, err)
		}
		if _, err := Prune(delta, height, historySize); err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
		if err := difficulties.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}
	}
	if err := delta.Insert(Info{Height: 12}); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected gap in history to be refused, got %v", err)
	}

	view := difficulties.CreateView()
	defer view.Release()
	lo, hi, err := view.Range()
	if err != nil {
		t.Fatalf("failed to get range: %v", err)
	}
	if lo != 7 || hi != 10 {
		t.Errorf("unexpected range [%v,%v]", lo, hi)
	}

	window, err := Window(view, 10, 3)
	if err != nil {
		t.Fatalf("failed to collect window: %v", err)
	}
	if len(window) != 3 || window[0].Height != 8 || window[2].Difficulty != 1010 {
		t.Errorf("unexpected window %v", window)
	}
	if _, err := Window(view, 10, 5); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected window reaching into pruned history to fail, got %v", err)
	}
}

func TestDifficulty_WindowMustNotStartBelowGenesis(t *testing.T) {
	difficulties, err := New(cache.Options[common.Height, Info]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := difficulties.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()
	for height := common.Height(0); height <= 2; height++ {
		if err := delta.Insert(Info{Height: height, Difficulty: common.Difficulty(100 + height)}); err != nil {
			t.Fatalf("failed to insert %v: %v", height, err)
		}
	}

	tests := []struct {
		height common.Height
		count  uint64
		want   []common.Height
		ok     bool
	}{
		{2, 3, []common.Height{0, 1, 2}, true},
		{1, 2, []common.Height{0, 1}, true},
		{2, 0, []common.Height{}, true},
		{2, 4, nil, false},
		{0, 2, nil, false},
		{1, 10, nil, false},
	}
	for _, test := range tests {
		window, err := Window(delta, test.height, test.count)
		if !test.ok {
			if !errors.Is(err, common.ErrInvalidArgument) {
				t.Errorf("window of %d at %v: expected invalid argument, got %v, %v", test.count, test.height, window, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("window of %d at %v failed: %v", test.count, test.height, err)
		}
		got := make([]common.Height, 0, len(window))
		for _, info := range window {
			got = append(got, info.Height)
		}
		common.AssertArraysEqual(t, test.want, got)
	}
}
