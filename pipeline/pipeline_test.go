// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/cache/lock"
	"github.com/chainstate/statecache/common"
	"go.uber.org/mock/gomock"
)

func TestSchedule_PruneHeight(t *testing.T) {
	schedule := Schedule{PruneInterval: 10, GracePeriod: 15}
	tests := []struct {
		height common.Height
		target common.Height
		prune  bool
	}{
		{5, 0, false},
		{10, 0, false},
		{15, 0, false},
		{20, 5, true},
		{21, 0, false},
		{100, 85, true},
	}
	for _, test := range tests {
		target, prune := schedule.PruneHeight(test.height)
		if prune != test.prune || target != test.target {
			t.Errorf("unexpected prune height for %v, wanted (%v,%t), got (%v,%t)", test.height, test.target, test.prune, target, prune)
		}
	}
	if _, prune := (Schedule{}).PruneHeight(10); prune {
		t.Errorf("disabled schedule prunes")
	}
}

func TestPipeline_StagesAreProcessedInNameOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	first := NewMockStage(ctrl)
	second := NewMockStage(ctrl)
	subscriber := NewMockSubscriber(ctrl)
	first.EXPECT().Name().Return("a").AnyTimes()
	second.EXPECT().Name().Return("b").AnyTimes()

	pipeline := New(Schedule{PruneInterval: 2, GracePeriod: 1}, nil, subscriber)
	if err := pipeline.Register(second); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := pipeline.Register(first); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if err := pipeline.Register(first); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected duplicate stage to be rejected, got %v", err)
	}
	common.AssertArraysEqual(t, []string{"a", "b"}, pipeline.Stages())

	gomock.InOrder(
		first.EXPECT().Touch(common.Height(4)).Return([][]byte{{1}}, nil),
		subscriber.EXPECT().Notify(Notification{Cache: "a", Kind: Touched, Height: 4, Keys: [][]byte{{1}}}),
		second.EXPECT().Touch(common.Height(4)).Return(nil, nil),
		first.EXPECT().Prune(common.Height(3)).Return(nil, nil),
		second.EXPECT().Prune(common.Height(3)).Return([][]byte{{2}, {3}}, nil),
		subscriber.EXPECT().Notify(Notification{Cache: "b", Kind: Pruned, Height: 3, Keys: [][]byte{{2}, {3}}}),
	)
	if err := pipeline.Process(context.Background(), 4); err != nil {
		t.Fatalf("failed to process: %v", err)
	}

	first.EXPECT().Touch(common.Height(5)).Return(nil, nil)
	second.EXPECT().Touch(common.Height(5)).Return(nil, nil)
	if err := pipeline.Process(context.Background(), 5); err != nil {
		t.Fatalf("failed to process: %v", err)
	}

	pipeline.Unregister("a")
	common.AssertArraysEqual(t, []string{"b"}, pipeline.Stages())
}

func TestPipeline_ErrorsAreForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	stage := NewMockStage(ctrl)
	subscriber := NewMockSubscriber(ctrl)
	stage.EXPECT().Name().Return("stage").AnyTimes()
	injected := errors.New("injected")

	pipeline := New(Schedule{}, nil, subscriber)
	if err := pipeline.Register(stage); err != nil {
		t.Fatalf("failed to register: %v", err)
	}

	stage.EXPECT().Touch(common.Height(1)).Return(nil, injected)
	if err := pipeline.Process(context.Background(), 1); !errors.Is(err, injected) {
		t.Errorf("expected stage error, got %v", err)
	}

	stage.EXPECT().Touch(common.Height(2)).Return([][]byte{{1}}, nil)
	subscriber.EXPECT().Notify(gomock.Any()).Return(injected)
	if err := pipeline.Process(context.Background(), 2); !errors.Is(err, injected) {
		t.Errorf("expected subscriber error, got %v", err)
	}
}

func TestPipeline_CanceledContextStopsProcessing(t *testing.T) {
	ctrl := gomock.NewController(t)
	stage := NewMockStage(ctrl)
	stage.EXPECT().Name().Return("stage").AnyTimes()

	pipeline := New(Schedule{}, nil)
	if err := pipeline.Register(stage); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := pipeline.Process(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected cancellation, got %v", err)
	}
}

func TestPipeline_RefundsUnusedLocks(t *testing.T) {
	ctrl := gomock.NewController(t)
	subscriber := NewMockSubscriber(ctrl)

	locks, err := lock.New(cache.Options[common.Hash, lock.Info]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := locks.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()
	for i := 1; i <= 2; i++ {
		if err := delta.Insert(lock.Info{Hash: common.HashFromNumber(i), Expiry: 10}); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := lock.MarkUsed(delta, common.HashFromNumber(1), 5); err != nil {
		t.Fatalf("failed to use lock: %v", err)
	}

	pipeline := New(Schedule{PruneInterval: 10}, nil, subscriber)
	if err := pipeline.Register(DeltaStage("lock", delta)); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	unused := common.HashFromNumber(2)
	gomock.InOrder(
		subscriber.EXPECT().Notify(Notification{Cache: "lock", Kind: Touched, Height: 10, Keys: [][]byte{unused[:]}}),
		subscriber.EXPECT().Notify(gomock.Any()).Do(func(n Notification) {
			if n.Kind != Pruned || len(n.Keys) != 2 {
				t.Errorf("unexpected prune notification %v", n)
			}
		}),
	)
	if err := pipeline.Process(context.Background(), 10); err != nil {
		t.Fatalf("failed to process: %v", err)
	}
	if delta.Size() != 0 {
		t.Errorf("expired locks not pruned")
	}
}
