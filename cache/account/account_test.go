// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package account

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/amount"
)

func newTestCache(t *testing.T) *cache.Cache[common.Address, State] {
	t.Helper()
	res, err := New(cache.Options[common.Address, State]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return res
}

func TestAccount_CreditAndDebitUpdateBalances(t *testing.T) {
	accounts := newTestCache(t)
	delta, err := accounts.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	address := common.AddressFromNumber(1)
	if err := Credit(delta, address, 1, amount.New(10)); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected credit of unknown account to fail, got %v", err)
	}
	if err := delta.Insert(NewState(address, 5)); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	if err := Credit(delta, address, 1, amount.New(10)); err != nil {
		t.Fatalf("failed to credit: %v", err)
	}
	if err := Debit(delta, address, 1, amount.New(11)); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected overdraft to fail, got %v", err)
	}
	if err := Debit(delta, address, 1, amount.New(4)); err != nil {
		t.Fatalf("failed to debit: %v", err)
	}
	if err := accounts.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	view := accounts.CreateView()
	defer view.Release()
	state, err := view.Find(address).Get()
	if err != nil {
		t.Fatalf("failed to find account: %v", err)
	}
	if got, want := state.Balance(1), amount.New(6); got != want {
		t.Errorf("unexpected balance, wanted %v, got %v", want, got)
	}

	if err := Debit(delta, address, 1, amount.New(6)); err != nil {
		t.Fatalf("failed to debit: %v", err)
	}
	modified, _ := delta.Find(address).TryGet()
	if _, found := modified.Balances[1]; found {
		t.Errorf("zero balance was not dropped")
	}
	if got, want := state.Balance(1), amount.New(6); got != want {
		t.Errorf("committed state modified through delta, wanted %v, got %v", want, got)
	}
}

func TestAccount_ImportanceHistoryIsBounded(t *testing.T) {
	accounts := newTestCache(t)
	delta, err := accounts.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()
	address := common.AddressFromNumber(2)
	if err := delta.Insert(NewState(address, 1)); err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	for i := 1; i <= 5; i++ {
		if err := SetImportance(delta, address, common.Importance(i*100), common.Height(i*10)); err != nil {
			t.Fatalf("failed to set importance: %v", err)
		}
	}
	if err := SetImportance(delta, address, 1, 50); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected outdated importance to be refused, got %v", err)
	}

	state, _ := delta.Find(address).TryGet()
	if got, want := len(state.Importances), ImportanceHistorySize; got != want {
		t.Errorf("unexpected history size, wanted %d, got %d", want, got)
	}
	if got, want := state.Importance(), common.Importance(500); got != want {
		t.Errorf("unexpected importance, wanted %d, got %d", want, got)
	}
	if got, want := state.ImportanceAt(30), common.Importance(300); got != want {
		t.Errorf("unexpected importance at 30, wanted %d, got %d", want, got)
	}
	if got := state.ImportanceAt(20); got != 0 {
		t.Errorf("dropped snapshot still visible: %d", got)
	}
}
