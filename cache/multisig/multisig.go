// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package multisig provides the cache of multisig relationships. Every
// account taking part in a relationship has an entry listing both its
// cosignatories and the multisig accounts it cosigns.
package multisig

import (
	"bytes"
	"fmt"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"golang.org/x/exp/slices"
)

// Entry describes the multisig relationships of an account.
type Entry struct {
	Account          common.Address
	MinApproval      uint32
	MinRemoval       uint32
	Cosignatories    []common.Address
	MultisigAccounts []common.Address
}

// IsEmpty returns true if the account takes part in no relationship.
func (e Entry) IsEmpty() bool {
	return len(e.Cosignatories) == 0 && len(e.MultisigAccounts) == 0
}

// HasCosignatory returns true if the given address cosigns this account.
func (e Entry) HasCosignatory(address common.Address) bool {
	_, found := slices.BinarySearchFunc(e.Cosignatories, address, compareAddresses)
	return found
}

// Clone creates a deep copy of the entry.
func (e Entry) Clone() Entry {
	res := e
	res.Cosignatories = slices.Clone(e.Cosignatories)
	res.MultisigAccounts = slices.Clone(e.MultisigAccounts)
	return res
}

// Equal compares the content of two entries.
func (e Entry) Equal(other Entry) bool {
	return e.Account == other.Account &&
		e.MinApproval == other.MinApproval &&
		e.MinRemoval == other.MinRemoval &&
		slices.Equal(e.Cosignatories, other.Cosignatories) &&
		slices.Equal(e.MultisigAccounts, other.MultisigAccounts)
}

func compareAddresses(a, b common.Address) int {
	return bytes.Compare(a[:], b[:])
}

func insertSorted(list []common.Address, address common.Address) ([]common.Address, bool) {
	pos, found := slices.BinarySearchFunc(list, address, compareAddresses)
	if found {
		return list, false
	}
	return slices.Insert(list, pos, address), true
}

func removeSorted(list []common.Address, address common.Address) ([]common.Address, bool) {
	pos, found := slices.BinarySearchFunc(list, address, compareAddresses)
	if !found {
		return list, false
	}
	return slices.Delete(list, pos, pos+1), true
}

// Traits describes the multisig cache.
func Traits() cache.Traits[common.Address, Entry] {
	return cache.Traits[common.Address, Entry]{
		Name:  "multisig",
		KeyOf: func(e Entry) common.Address { return e.Account },
		Clone: Entry.Clone,
		Equal: Entry.Equal,
	}
}

// New creates an empty multisig cache.
func New(options cache.Options[common.Address, Entry]) (*cache.Cache[common.Address, Entry], error) {
	return cache.New(Traits(), options)
}

func findOrCreate(delta *cache.Delta[common.Address, Entry], address common.Address) (*Entry, error) {
	if entry, found := delta.FindMutable(address).TryGet(); found {
		return entry, nil
	}
	if err := delta.Insert(Entry{Account: address}); err != nil {
		return nil, err
	}
	return delta.FindMutable(address).Get()
}

// AddCosignatory makes cosignatory a cosigner of the given multisig
// account, creating entries for both accounts as needed.
func AddCosignatory(delta *cache.Delta[common.Address, Entry], multisig, cosignatory common.Address) error {
	if multisig == cosignatory {
		return fmt.Errorf("%w: account %v can not cosign itself", common.ErrInvalidArgument, multisig)
	}
	account, err := findOrCreate(delta, multisig)
	if err != nil {
		return err
	}
	var added bool
	if account.Cosignatories, added = insertSorted(account.Cosignatories, cosignatory); !added {
		return fmt.Errorf("%w: %v already cosigns %v", common.ErrInvalidArgument, cosignatory, multisig)
	}
	cosigner, err := findOrCreate(delta, cosignatory)
	if err != nil {
		return err
	}
	cosigner.MultisigAccounts, _ = insertSorted(cosigner.MultisigAccounts, multisig)
	return nil
}

// RemoveCosignatory ends the relationship between a multisig account and
// one of its cosignatories. Entries left without relationships are
// removed.
func RemoveCosignatory(delta *cache.Delta[common.Address, Entry], multisig, cosignatory common.Address) error {
	account, err := delta.FindMutable(multisig).Get()
	if err != nil {
		return err
	}
	var removed bool
	if account.Cosignatories, removed = removeSorted(account.Cosignatories, cosignatory); !removed {
		return fmt.Errorf("%w: %v does not cosign %v", common.ErrInvalidArgument, cosignatory, multisig)
	}
	accountEmpty := account.IsEmpty()
	cosigner, err := delta.FindMutable(cosignatory).Get()
	if err != nil {
		return err
	}
	cosigner.MultisigAccounts, _ = removeSorted(cosigner.MultisigAccounts, multisig)
	if cosigner.IsEmpty() {
		if err := delta.Remove(cosignatory); err != nil {
			return err
		}
	}
	if accountEmpty {
		return delta.Remove(multisig)
	}
	return nil
}

// SetApproval changes the approval settings of a multisig account.
func SetApproval(delta *cache.Delta[common.Address, Entry], multisig common.Address, minApproval, minRemoval uint32) error {
	account, err := delta.FindMutable(multisig).Get()
	if err != nil {
		return err
	}
	if int(minApproval) > len(account.Cosignatories) || int(minRemoval) > len(account.Cosignatories) {
		return fmt.Errorf("%w: %v has only %d cosignatories", common.ErrInvalidArgument, multisig, len(account.Cosignatories))
	}
	account.MinApproval = minApproval
	account.MinRemoval = minRemoval
	return nil
}
