// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cache

import (
	"fmt"

	"github.com/chainstate/statecache/common"
)

// FindResult is the outcome of a lookup. Callers either insist on a value
// using Get, which fails for absent keys, or probe for it using TryGet.
type FindResult[T any] struct {
	key   any
	value T
	found bool
	err   error
}

func found[T any](key any, value T) FindResult[T] {
	return FindResult[T]{key: key, value: value, found: true}
}

func notFound[T any](key any) FindResult[T] {
	return FindResult[T]{key: key}
}

func failed[T any](key any, err error) FindResult[T] {
	return FindResult[T]{key: key, err: err}
}

// Get returns the value found, or an error wrapping ErrInvalidArgument if
// the key is not present.
func (r FindResult[T]) Get() (T, error) {
	if r.err != nil {
		var zero T
		return zero, r.err
	}
	if !r.found {
		var zero T
		return zero, fmt.Errorf("%w: unknown key %v", common.ErrInvalidArgument, r.key)
	}
	return r.value, nil
}

// TryGet returns the value found and true, or the zero value and false if
// the key is not present.
func (r FindResult[T]) TryGet() (T, bool) {
	return r.value, r.found
}

// Found returns true if the key is present.
func (r FindResult[T]) Found() bool {
	return r.found
}
