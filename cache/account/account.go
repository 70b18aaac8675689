// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package account provides the cache of account states, holding the mosaic
// balances and the importance history of every known address.
package account

import (
	"fmt"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/amount"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ImportanceHistorySize is the number of importance snapshots retained per
// account.
const ImportanceHistorySize = 3

// ImportanceSnapshot is the importance of an account calculated at a
// given height.
type ImportanceSnapshot struct {
	Importance common.Importance
	Height     common.Height
}

// State is the state of a single account.
type State struct {
	Address       common.Address
	AddressHeight common.Height
	Balances      map[common.MosaicId]amount.Amount
	// most recent snapshot first
	Importances []ImportanceSnapshot
}

// NewState creates the state of an account first seen at the given height.
func NewState(address common.Address, height common.Height) State {
	return State{
		Address:       address,
		AddressHeight: height,
		Balances:      map[common.MosaicId]amount.Amount{},
	}
}

// Balance returns the balance of the given mosaic.
func (s State) Balance(mosaic common.MosaicId) amount.Amount {
	return s.Balances[mosaic]
}

// Importance returns the most recent importance of the account.
func (s State) Importance() common.Importance {
	if len(s.Importances) == 0 {
		return 0
	}
	return s.Importances[0].Importance
}

// ImportanceAt returns the importance the account had at the given height.
func (s State) ImportanceAt(height common.Height) common.Importance {
	for _, snapshot := range s.Importances {
		if snapshot.Height == height {
			return snapshot.Importance
		}
	}
	return 0
}

// Clone creates a deep copy of the state.
func (s State) Clone() State {
	res := s
	res.Balances = maps.Clone(s.Balances)
	if res.Balances == nil {
		res.Balances = map[common.MosaicId]amount.Amount{}
	}
	res.Importances = slices.Clone(s.Importances)
	return res
}

// Equal compares the content of two states.
func (s State) Equal(other State) bool {
	return s.Address == other.Address &&
		s.AddressHeight == other.AddressHeight &&
		maps.Equal(s.Balances, other.Balances) &&
		slices.Equal(s.Importances, other.Importances)
}

// Traits describes the account state cache.
func Traits() cache.Traits[common.Address, State] {
	return cache.Traits[common.Address, State]{
		Name:  "account",
		KeyOf: func(s State) common.Address { return s.Address },
		Clone: State.Clone,
		Equal: State.Equal,
	}
}

// New creates an empty account state cache.
func New(options cache.Options[common.Address, State]) (*cache.Cache[common.Address, State], error) {
	return cache.New(Traits(), options)
}

// Credit adds the given amount of a mosaic to the balance of an account.
func Credit(delta *cache.Delta[common.Address, State], address common.Address, mosaic common.MosaicId, value amount.Amount) error {
	state, err := delta.FindMutable(address).Get()
	if err != nil {
		return err
	}
	balance, err := amount.Add(state.Balances[mosaic], value)
	if err != nil {
		return fmt.Errorf("failed to credit %v: %w", address, err)
	}
	state.Balances[mosaic] = balance
	return nil
}

// Debit removes the given amount of a mosaic from the balance of an
// account. Balances reaching zero are dropped.
func Debit(delta *cache.Delta[common.Address, State], address common.Address, mosaic common.MosaicId, value amount.Amount) error {
	state, err := delta.FindMutable(address).Get()
	if err != nil {
		return err
	}
	balance, err := amount.Sub(state.Balances[mosaic], value)
	if err != nil {
		return fmt.Errorf("%w: insufficient balance of %v in %v: %v", common.ErrInvalidArgument, mosaic, address, err)
	}
	if balance.IsZero() {
		delete(state.Balances, mosaic)
	} else {
		state.Balances[mosaic] = balance
	}
	return nil
}

// SetImportance records the importance of an account calculated at the
// given height. Only the most recent ImportanceHistorySize snapshots are
// kept.
func SetImportance(delta *cache.Delta[common.Address, State], address common.Address, importance common.Importance, height common.Height) error {
	state, err := delta.FindMutable(address).Get()
	if err != nil {
		return err
	}
	if len(state.Importances) > 0 && state.Importances[0].Height >= height {
		return fmt.Errorf("%w: importance of %v at %v is not newer than %v", common.ErrInvalidArgument, address, height, state.Importances[0].Height)
	}
	state.Importances = slices.Insert(state.Importances, 0, ImportanceSnapshot{Importance: importance, Height: height})
	if len(state.Importances) > ImportanceHistorySize {
		state.Importances = state.Importances[:ImportanceHistorySize]
	}
	return nil
}
