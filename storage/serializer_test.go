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

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/cache/difficulty"
	"github.com/chainstate/statecache/common"
	"go.uber.org/mock/gomock"
)

func newDifficultyCache(t *testing.T) *cache.Cache[common.Height, difficulty.Info] {
	t.Helper()
	res, err := difficulty.New(cache.Options[common.Height, difficulty.Info]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return res
}

func TestSave_WritesAllElementsAndBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	codec := Msgpack[difficulty.Info]{}

	source := newDifficultyCache(t)
	delta, err := source.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	for h := common.Height(1); h <= 3; h++ {
		if err := delta.Insert(difficulty.Info{Height: h}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if _, err := delta.Prune(2); err != nil {
		t.Fatalf("failed to prune: %v", err)
	}
	if err := source.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	delta.Release()

	gomock.InOrder(
		store.EXPECT().DeleteTable(DifficultyTable),
		store.EXPECT().Put(DifficultyTable, common.Height(2).ToBytes(), gomock.Any()),
		store.EXPECT().Put(DifficultyTable, common.Height(3).ToBytes(), gomock.Any()),
		store.EXPECT().Put(MetaTable, []byte{byte(DifficultyTable)}, common.Height(2).ToBytes()),
		store.EXPECT().Flush(),
	)

	view := source.CreateView()
	defer view.Release()
	count, err := Save(store, DifficultyTable, Codec[difficulty.Info](codec), view)
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if count != 2 {
		t.Errorf("unexpected number of saved elements: %d", count)
	}
}

func TestSave_StopsAtFirstStoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	injected := errors.New("injected")

	source := newDifficultyCache(t)
	delta, err := source.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	for h := common.Height(1); h <= 3; h++ {
		if err := delta.Insert(difficulty.Info{Height: h}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := source.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	delta.Release()

	store.EXPECT().DeleteTable(DifficultyTable)
	store.EXPECT().Put(DifficultyTable, gomock.Any(), gomock.Any()).Return(injected)

	view := source.CreateView()
	defer view.Release()
	if _, err := Save(store, DifficultyTable, Codec[difficulty.Info](Msgpack[difficulty.Info]{}), view); !errors.Is(err, injected) {
		t.Errorf("expected store error, got %v", err)
	}
}

func TestLoad_InsertsStoredElementsAndRestoresBoundary(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	codec := Msgpack[difficulty.Info]{}

	store.EXPECT().ForEach(DifficultyTable, gomock.Any()).DoAndReturn(
		func(_ TableSpace, visit func(key, value []byte) error) error {
			for h := common.Height(5); h <= 7; h++ {
				data, err := codec.Encode(difficulty.Info{Height: h, Difficulty: common.Difficulty(h)})
				if err != nil {
					return err
				}
				if err := visit(h.ToBytes(), data); err != nil {
					return err
				}
			}
			return nil
		})
	store.EXPECT().Get(MetaTable, []byte{byte(DifficultyTable)}).Return(common.Height(5).ToBytes(), true, nil)

	target := newDifficultyCache(t)
	count, err := Load(store, DifficultyTable, Codec[difficulty.Info](codec), target)
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if count != 3 {
		t.Errorf("unexpected number of loaded elements: %d", count)
	}
	view := target.CreateView()
	defer view.Release()
	if got, want := view.Size(), 3; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
	if boundary, set := view.PruningBoundary(); !set || boundary != 5 {
		t.Errorf("boundary not restored: %v", boundary)
	}
}

func TestLoad_FailsOnCorruptData(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := NewMockStore(ctrl)
	store.EXPECT().ForEach(DifficultyTable, gomock.Any()).DoAndReturn(
		func(_ TableSpace, visit func(key, value []byte) error) error {
			return visit([]byte{1}, []byte{0xc1})
		})

	target := newDifficultyCache(t)
	if _, err := Load(store, DifficultyTable, Codec[difficulty.Info](Msgpack[difficulty.Info]{}), target); err == nil {
		t.Errorf("expected corrupt data to be rejected")
	}
	view := target.CreateView()
	defer view.Release()
	if view.Size() != 0 {
		t.Errorf("failed load modified the cache")
	}
}
