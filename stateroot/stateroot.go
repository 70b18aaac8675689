// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package stateroot folds the change sets produced by cache commits into a
// running state root. The root depends only on the sequence of committed
// changes, so nodes applying the same blocks arrive at the same root.
package stateroot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/chainstate/statecache/backend/deltaset"
	"github.com/chainstate/statecache/cache"
	"github.com/chainstate/statecache/common"
	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/sha3"
)

const (
	tagAdded    = byte('+')
	tagModified = byte('~')
	tagRemoved  = byte('-')
)

// Calculator maintains the running state root. It is safe for concurrent
// use.
type Calculator struct {
	mutex   sync.Mutex
	root    common.Hash
	updates uint64
	err     error
	encoder cbor.EncMode
}

// NewCalculator creates a calculator starting at the zero root.
func NewCalculator() (*Calculator, error) {
	encoder, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return &Calculator{encoder: encoder}, nil
}

// Root returns the current state root. It fails if any change set could
// not be folded into the root.
func (c *Calculator) Root() (common.Hash, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.root, c.err
}

// Updates returns the number of change sets folded into the root.
func (c *Calculator) Updates() uint64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.updates
}

// Update folds a change set into the state root. The new root is the hash
// of the previous root, the cache name and the hash of the changes. Empty
// change sets leave the root unchanged.
func Update[K deltaset.Key, V any](c *Calculator, changes cache.ChangeSet[K, V]) error {
	if changes.IsEmpty() {
		return nil
	}
	digest, err := hashChanges(c.encoder, changes)
	if err != nil {
		err = fmt.Errorf("failed to hash changes of %s: %w", changes.Cache, err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if err != nil {
		c.err = errors.Join(c.err, err)
		return err
	}
	c.root = common.Keccak256(c.root[:], []byte(changes.Cache), digest[:])
	c.updates++
	return nil
}

// Observer returns a commit hook feeding all change sets of a cache into
// the calculator. Failures are reported by Root.
func Observer[K deltaset.Key, V any](c *Calculator) func(cache.ChangeSet[K, V]) {
	return func(changes cache.ChangeSet[K, V]) {
		_ = Update(c, changes)
	}
}

func hashChanges[K deltaset.Key, V any](encoder cbor.EncMode, changes cache.ChangeSet[K, V]) (common.Hash, error) {
	hasher := sha3.NewLegacyKeccak256()
	var length [4]byte
	writeEntry := func(tag byte, key []byte, value []byte) {
		hasher.Write([]byte{tag})
		binary.BigEndian.PutUint32(length[:], uint32(len(key)))
		hasher.Write(length[:])
		hasher.Write(key)
		binary.BigEndian.PutUint32(length[:], uint32(len(value)))
		hasher.Write(length[:])
		hasher.Write(value)
	}
	for _, group := range []struct {
		tag     byte
		entries []common.MapEntry[K, V]
	}{
		{tagAdded, changes.Added},
		{tagModified, changes.Modified},
	} {
		for _, entry := range group.entries {
			data, err := encoder.Marshal(entry.Val)
			if err != nil {
				return common.Hash{}, err
			}
			writeEntry(group.tag, entry.Key.ToBytes(), data)
		}
	}
	for _, key := range changes.Removed {
		writeEntry(tagRemoved, key.ToBytes(), nil)
	}
	var res common.Hash
	hasher.Sum(res[:0])
	return res, nil
}
