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

import "errors"

// ConstError is a error type that can be used to define immutable
// error constants.
type ConstError string

func (e ConstError) Error() string {
	return string(e)
}

const (
	// ErrInvalidArgument is reported for data errors detectable by the
	// caller, e.g. inserting a present key or removing an absent one.
	ErrInvalidArgument = ConstError("invalid argument")

	// ErrAlreadyInUse is reported when a second delta is requested while
	// another one is still outstanding.
	ErrAlreadyInUse = ConstError("cache delta already in use")

	// ErrNoDelta is reported when committing a cache that has no
	// attached delta.
	ErrNoDelta = ConstError("no cache delta to commit")

	// ErrReleased is reported for operations on handles that have
	// already been released.
	ErrReleased = ConstError("handle already released")
)

// IsRuntimeError returns true if the given error signals a violation of the
// cache state machine. Such errors point to a defect in the calling code and
// should abort the enclosing operation.
func IsRuntimeError(err error) bool {
	return errors.Is(err, ErrAlreadyInUse) ||
		errors.Is(err, ErrNoDelta) ||
		errors.Is(err, ErrReleased)
}
