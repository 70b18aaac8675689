// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Height is the height of a block in the chain. Heights are used both as
// keys of per-block histories and as expiry marks of entries.
type Height uint64

// ToBytes returns the big-endian encoding of the height, such that the byte
// order of encoded heights matches their numeric order.
func (h Height) ToBytes() []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(h))
}

// Next returns the height following this one.
func (h Height) Next() Height {
	return h + 1
}

// Prev returns the height preceding this one.
func (h Height) Prev() Height {
	return h - 1
}

func (h Height) String() string {
	return fmt.Sprintf("#%d", uint64(h))
}

// Address is the 24-byte decoded address of an account.
type Address [24]byte

func (a Address) ToBytes() []byte {
	return a[:]
}

func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// Hash is a 32-byte hash, e.g. of a transaction or a lock secret.
type Hash [32]byte

func (h Hash) ToBytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MosaicId identifies a mosaic definition.
type MosaicId uint64

func (id MosaicId) ToBytes() []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(id))
}

func (id MosaicId) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// NamespaceId identifies a root or child namespace.
type NamespaceId uint64

func (id NamespaceId) ToBytes() []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), uint64(id))
}

func (id NamespaceId) String() string {
	return fmt.Sprintf("%016X", uint64(id))
}

// Importance is the harvesting importance score of an account.
type Importance uint64

// Difficulty is the difficulty of a block.
type Difficulty uint64

// Timestamp is a network time in milliseconds.
type Timestamp uint64

// AddressFromNumber derives a test address from the given number.
func AddressFromNumber(num int) (address Address) {
	binary.BigEndian.PutUint32(address[:], uint32(num))
	return
}

// HashFromNumber derives a test hash from the given number.
func HashFromNumber(num int) (hash Hash) {
	binary.BigEndian.PutUint32(hash[:], uint32(num))
	return
}
