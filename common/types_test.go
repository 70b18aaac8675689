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
	"bytes"
	"testing"
)

func TestHeight_ByteOrderMatchesNumericOrder(t *testing.T) {
	heights := []Height{0, 1, 255, 256, 1 << 20, 1<<63 + 5}
	for i := 1; i < len(heights); i++ {
		a, b := heights[i-1].ToBytes(), heights[i].ToBytes()
		if bytes.Compare(a, b) >= 0 {
			t.Errorf("encoding of %v is not smaller than encoding of %v", heights[i-1], heights[i])
		}
	}
}

func TestHeight_NextAndPrevAreInverse(t *testing.T) {
	for _, h := range []Height{1, 10, 1000} {
		if got := h.Next().Prev(); got != h {
			t.Errorf("unexpected height, wanted %v, got %v", h, got)
		}
	}
}

func TestAddressFromNumber_ProducesDistinctAddresses(t *testing.T) {
	seen := map[Address]bool{}
	for i := 0; i < 100; i++ {
		addr := AddressFromNumber(i)
		if seen[addr] {
			t.Fatalf("address %v produced twice", addr)
		}
		seen[addr] = true
	}
}

func TestIds_PrintAsHex(t *testing.T) {
	if got, want := MosaicId(0xABC).String(), "0000000000000ABC"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
	if got, want := NamespaceId(1).String(), "0000000000000001"; got != want {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}
