// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package lock

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// The lock package provides the access control primitives of the state
// caches. Two kinds of permissions are distinguished:
//  - reader access: grants a consistent view on the committed state
//  - writer access: grants exclusive access for replacing the committed state
//
// Any number of readers may hold access at the same time. A writer excludes
// all readers. A writer waiting for access blocks new readers until it has
// been served, such that a steady stream of readers can not starve commits.
//
// Independently, a WriterSlot marks the single in-flight producer of
// changes. Holding the slot does not block readers; it only prevents a
// second producer from starting.

// ReaderWriterLock controls reader and writer access to a shared resource.
// The zero value is an unlocked lock.
type ReaderWriterLock struct {
	mutex   sync.RWMutex
	readers atomic.Int32
	writer  atomic.Bool
}

// AcquireReader blocks until reader access can be granted. The resulting
// guard must be released once access is no longer needed.
func (l *ReaderWriterLock) AcquireReader() ReaderGuard {
	l.mutex.RLock()
	l.readers.Add(1)
	return ReaderGuard{guard{l}}
}

// TryAcquireReader tries to get reader access without blocking. If
// successful, indicated by the second return value, the guard needs to be
// released.
func (l *ReaderWriterLock) TryAcquireReader() (ReaderGuard, bool) {
	if !l.mutex.TryRLock() {
		return ReaderGuard{}, false
	}
	l.readers.Add(1)
	return ReaderGuard{guard{l}}, true
}

// AcquireWriter blocks until all readers have released their access and
// exclusive access can be granted. While waiting, new readers are blocked.
func (l *ReaderWriterLock) AcquireWriter() WriterGuard {
	l.mutex.Lock()
	l.writer.Store(true)
	return WriterGuard{guard{l}}
}

// TryAcquireWriter tries to get exclusive access without blocking.
func (l *ReaderWriterLock) TryAcquireWriter() (WriterGuard, bool) {
	if !l.mutex.TryLock() {
		return WriterGuard{}, false
	}
	l.writer.Store(true)
	return WriterGuard{guard{l}}, true
}

// NumReaders returns the number of currently granted reader guards.
func (l *ReaderWriterLock) NumReaders() int {
	return int(l.readers.Load())
}

// IsWriterActive returns true while a writer guard is granted.
func (l *ReaderWriterLock) IsWriterActive() bool {
	return l.writer.Load()
}

type guard struct {
	lock *ReaderWriterLock
}

// Valid returns true if this guard represents an active access permission.
// Default initialized and released guards are invalid.
func (g *guard) Valid() bool {
	return g.lock != nil
}

// ReaderGuard represents shared reader access. While it is valid, no writer
// access is granted.
type ReaderGuard struct {
	guard
}

// Release abandons the access permission. It must be called eventually on
// all valid guards to avoid dead-locks. Releasing an invalid guard is a
// no-op.
func (g *ReaderGuard) Release() {
	if g.lock == nil {
		return
	}
	g.lock.readers.Add(-1)
	g.lock.mutex.RUnlock()
	g.lock = nil
}

func (g *ReaderGuard) String() string {
	return fmt.Sprintf("ReaderGuard(%p)", g.lock)
}

// WriterGuard represents exclusive writer access.
type WriterGuard struct {
	guard
}

// Release abandons the exclusive access permission. Releasing an invalid
// guard is a no-op.
func (g *WriterGuard) Release() {
	if g.lock == nil {
		return
	}
	g.lock.writer.Store(false)
	g.lock.mutex.Unlock()
	g.lock = nil
}

func (g *WriterGuard) String() string {
	return fmt.Sprintf("WriterGuard(%p)", g.lock)
}

// WriterSlot is a non-blocking token granting the right to produce changes.
// At most one owner holds the slot at any time.
type WriterSlot struct {
	inUse atomic.Bool
}

// TryClaim claims the slot if it is free and reports whether it succeeded.
func (s *WriterSlot) TryClaim() bool {
	return s.inUse.CompareAndSwap(false, true)
}

// Free returns a claimed slot. Freeing an unclaimed slot is a no-op.
func (s *WriterSlot) Free() {
	s.inUse.Store(false)
}

// InUse returns true while the slot is claimed.
func (s *WriterSlot) InUse() bool {
	return s.inUse.Load()
}
