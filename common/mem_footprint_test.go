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
	"strings"
	"testing"
)

func TestMemoryFootprint_TotalIncludesChildren(t *testing.T) {
	root := NewMemoryFootprint(10)
	child := NewMemoryFootprint(20)
	child.AddChild("leaf", NewMemoryFootprint(5))
	root.AddChild("child", child)

	if got, want := root.Value(), uintptr(10); got != want {
		t.Errorf("unexpected value, wanted %d, got %d", want, got)
	}
	if got, want := root.Total(), uintptr(35); got != want {
		t.Errorf("unexpected total, wanted %d, got %d", want, got)
	}
}

func TestMemoryFootprint_StringListsAllPaths(t *testing.T) {
	root := NewMemoryFootprint(2048)
	root.AddChild("accounts", NewMemoryFootprint(100))
	str := root.String()
	for _, want := range []string{"2.1 KB .", "100 B ./accounts"} {
		if !strings.Contains(str, want) {
			t.Errorf("missing %q in %q", want, str)
		}
	}
}
