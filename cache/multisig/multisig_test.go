// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package multisig

import (
	"errors"
	"testing"

	"github.com/VictoriaMetrics/metrics"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
)

func TestMultisig_RelationshipsAreMaintainedOnBothSides(t *testing.T) {
	multisigs, err := New(cache.Options[common.Address, Entry]{Metrics: metrics.NewSet()})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	delta, err := multisigs.CreateDelta()
	if err != nil {
		t.Fatalf("failed to create delta: %v", err)
	}
	defer delta.Release()

	account := common.AddressFromNumber(1)
	first, second := common.AddressFromNumber(3), common.AddressFromNumber(2)
	for _, cosignatory := range []common.Address{first, second} {
		if err := AddCosignatory(delta, account, cosignatory); err != nil {
			t.Fatalf("failed to add cosignatory: %v", err)
		}
	}
	if err := AddCosignatory(delta, account, first); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected duplicate cosignatory to fail, got %v", err)
	}
	if err := AddCosignatory(delta, account, account); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected self cosigning to fail, got %v", err)
	}
	if err := SetApproval(delta, account, 2, 1); err != nil {
		t.Fatalf("failed to set approval: %v", err)
	}
	if err := SetApproval(delta, account, 3, 1); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected unreachable approval to fail, got %v", err)
	}
	if err := multisigs.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	view := multisigs.CreateView()
	entry, err := view.Find(account).Get()
	if err != nil {
		t.Fatalf("failed to find multisig account: %v", err)
	}
	common.AssertArraysEqual(t, []common.Address{second, first}, entry.Cosignatories)
	if !entry.HasCosignatory(first) || entry.MinApproval != 2 {
		t.Errorf("unexpected entry %v", entry)
	}
	cosigner, err := view.Find(first).Get()
	if err != nil {
		t.Fatalf("failed to find cosignatory: %v", err)
	}
	common.AssertArraysEqual(t, []common.Address{account}, cosigner.MultisigAccounts)
	if got, want := view.Size(), 3; got != want {
		t.Errorf("unexpected size, wanted %d, got %d", want, got)
	}
	view.Release()

	for _, cosignatory := range []common.Address{first, second} {
		if err := RemoveCosignatory(delta, account, cosignatory); err != nil {
			t.Fatalf("failed to remove cosignatory: %v", err)
		}
	}
	if got := delta.Size(); got != 0 {
		t.Errorf("entries without relationships remain: %d", got)
	}
	if err := RemoveCosignatory(delta, account, first); !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected removal from unknown account to fail, got %v", err)
	}
}
