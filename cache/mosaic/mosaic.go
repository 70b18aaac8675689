// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package mosaic provides the cache of mosaic definitions and supplies.
// Mosaics with a limited duration are registered at their expiry height.
package mosaic

import (
	"fmt"
	"strings"

	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/chainstate/statecache/common/amount"
)

// Flags are the properties of a mosaic definition.
type Flags uint8

const (
	FlagNone          Flags = 0
	FlagSupplyMutable Flags = 1
	FlagTransferable  Flags = 2
	FlagRestrictable  Flags = 4
)

var flagNames = map[Flags]string{
	FlagSupplyMutable: "SupplyMutable",
	FlagTransferable:  "Transferable",
	FlagRestrictable:  "Restrictable",
}

func (f Flags) Has(flag Flags) bool {
	return f&flag == flag
}

func (f Flags) String() string {
	if f == FlagNone {
		return "None"
	}
	names := []string{}
	for _, flag := range []Flags{FlagSupplyMutable, FlagTransferable, FlagRestrictable} {
		if f.Has(flag) {
			names = append(names, flagNames[flag])
		}
	}
	return strings.Join(names, "|")
}

// Eternal is the duration of mosaics that never expire.
const Eternal = 0

// Definition describes the properties of a mosaic.
type Definition struct {
	Owner        common.Address
	StartHeight  common.Height
	Duration     uint64
	Divisibility uint8
	Flags        Flags
}

// IsEternal returns true if the mosaic never expires.
func (d Definition) IsEternal() bool {
	return d.Duration == Eternal
}

// ExpiryHeight returns the height at which the mosaic expires.
func (d Definition) ExpiryHeight() common.Height {
	return d.StartHeight + common.Height(d.Duration)
}

// IsActive returns true if the mosaic is usable at the given height.
func (d Definition) IsActive(height common.Height) bool {
	return height >= d.StartHeight && (d.IsEternal() || height < d.ExpiryHeight())
}

// Entry is a mosaic definition together with its current supply.
type Entry struct {
	Id         common.MosaicId
	Definition Definition
	Supply     amount.Amount
}

func expiryHeights(e Entry) []common.Height {
	if e.Definition.IsEternal() {
		return nil
	}
	return []common.Height{e.Definition.ExpiryHeight()}
}

// Traits describes the mosaic cache. Touching a height reports all mosaics
// expiring at it.
func Traits() cache.Traits[common.MosaicId, Entry] {
	return cache.Traits[common.MosaicId, Entry]{
		Name:          "mosaic",
		KeyOf:         func(e Entry) common.MosaicId { return e.Id },
		Equal:         func(a, b Entry) bool { return a == b },
		ExpiryHeights: expiryHeights,
	}
}

// New creates an empty mosaic cache.
func New(options cache.Options[common.MosaicId, Entry]) (*cache.Cache[common.MosaicId, Entry], error) {
	return cache.New(Traits(), options)
}

// IncreaseSupply adds to the supply of a mosaic.
func IncreaseSupply(delta *cache.Delta[common.MosaicId, Entry], id common.MosaicId, value amount.Amount) error {
	entry, err := delta.FindMutable(id).Get()
	if err != nil {
		return err
	}
	supply, err := amount.Add(entry.Supply, value)
	if err != nil {
		return fmt.Errorf("failed to increase supply of %v: %w", id, err)
	}
	entry.Supply = supply
	return nil
}

// DecreaseSupply removes from the supply of a mosaic.
func DecreaseSupply(delta *cache.Delta[common.MosaicId, Entry], id common.MosaicId, value amount.Amount) error {
	entry, err := delta.FindMutable(id).Get()
	if err != nil {
		return err
	}
	supply, err := amount.Sub(entry.Supply, value)
	if err != nil {
		return fmt.Errorf("%w: supply of %v too low: %v", common.ErrInvalidArgument, id, err)
	}
	entry.Supply = supply
	return nil
}

// Extend prolongs the duration of a mosaic. The mosaic is re-registered
// at its new expiry height.
func Extend(delta *cache.Delta[common.MosaicId, Entry], id common.MosaicId, duration uint64) error {
	entry, err := delta.Find(id).Get()
	if err != nil {
		return err
	}
	if entry.Definition.IsEternal() {
		return fmt.Errorf("%w: mosaic %v is eternal", common.ErrInvalidArgument, id)
	}
	entry.Definition.Duration += duration
	return delta.Update(entry)
}
