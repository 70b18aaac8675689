// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package hashcache

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

func TestHashCache_DuplicatesAreRejectedUntilPruned(t *testing.T) {
	hashes, err := New(cache.Options[common.Hash, Entry]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := hashes.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	for height := common.Height(1); height <= 5; height++ {
		hash := common.HashFromNumber(int(height))
		if err := delta.Insert(NewEntry(hash, common.Timestamp(height*1000), height, 3)); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		if err := delta.Insert(NewEntry(hash, 0, height, 3)); !errors.Is(err, common.ErrInvalidArgument) {
			t.Errorf("expected duplicate hash to be rejected, got %v", err)
		}
		if err := hashes.Commit(); err != nil {
			t.Fatalf("failed to commit: %v", err)
		}
		if _, err := delta.Prune(height); err != nil {
			t.Fatalf("failed to prune: %v", err)
		}
	}

	// hashes confirmed at heights 1 and 2 expired at 4 and 5
	if got, want := delta.Size(), 3; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
	if delta.Contains(common.HashFromNumber(2)) {
		t.Errorf("expired hash still present")
	}
	if err := delta.Insert(NewEntry(common.HashFromNumber(1), 0, 6, 3)); err != nil {
		t.Errorf("failed to reinsert expired hash: %v", err)
	}
}
