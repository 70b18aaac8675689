// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package amount

import (
	"fmt"

	"github.com/holiman/uint256"
)

// BytesLength is the length of the byte representation of an amount.
const BytesLength = 32

// Amount is a 256-bit unsigned integer used for mosaic balances and lock
// deposits.
type Amount struct {
	internal uint256.Int
}

// New creates an amount holding the given value.
func New(value uint64) Amount {
	result := Amount{}
	result.internal.SetUint64(value)
	return result
}

// NewFromBytes creates an amount from up to 32 big-endian bytes.
func NewFromBytes(bytes ...byte) Amount {
	if len(bytes) > BytesLength {
		panic("too many arguments")
	}
	result := Amount{}
	result.internal.SetBytes(bytes)
	return result
}

// IsZero returns true if the amount is zero.
func (a Amount) IsZero() bool {
	return a.internal.IsZero()
}

// Uint64 returns the amount as an uint64. The result is only valid if
// IsUint64() returns true.
func (a Amount) Uint64() uint64 {
	return a.internal.Uint64()
}

// IsUint64 returns true if the amount is representable as an uint64.
func (a Amount) IsUint64() bool {
	return a.internal.IsUint64()
}

// Bytes32 returns the big-endian 32 byte representation of the amount.
func (a Amount) Bytes32() [32]byte {
	return a.internal.Bytes32()
}

func (a Amount) String() string {
	return a.internal.Dec()
}

// MarshalBinary encodes the amount as 32 big-endian bytes.
func (a Amount) MarshalBinary() ([]byte, error) {
	res := a.internal.Bytes32()
	return res[:], nil
}

// UnmarshalBinary decodes an amount produced by MarshalBinary.
func (a *Amount) UnmarshalBinary(data []byte) error {
	if len(data) > BytesLength {
		return fmt.Errorf("invalid amount encoding, got %d bytes", len(data))
	}
	a.internal.SetBytes(data)
	return nil
}

// Add returns the sum of two amounts and fails on overflow.
func Add(a, b Amount) (Amount, error) {
	result := Amount{}
	if _, overflow := result.internal.AddOverflow(&a.internal, &b.internal); overflow {
		return Amount{}, fmt.Errorf("amount overflow adding %v and %v", a, b)
	}
	return result, nil
}

// Sub returns the difference of two amounts and fails on underflow.
func Sub(a, b Amount) (Amount, error) {
	result := Amount{}
	if _, underflow := result.internal.SubOverflow(&a.internal, &b.internal); underflow {
		return Amount{}, fmt.Errorf("amount underflow subtracting %v from %v", b, a)
	}
	return result, nil
}
