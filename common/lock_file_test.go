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
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLockFile_DefaultLockFileIsInvalid(t *testing.T) {
	lock := lockFile{}
	if lock.Valid() {
		t.Errorf("default lockfile should be invalid")
	}
	if err := lock.Release(); err == nil {
		t.Errorf("releasing an invalid lock should fail")
	}
}

func TestLockFile_CanBeAcquiredAndReleased(t *testing.T) {
	exists := func(path string) bool {
		_, err := os.Stat(path)
		return !errors.Is(err, os.ErrNotExist)
	}

	path := filepath.Join(t.TempDir(), "a")
	lock, err := CreateLockFile(path)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}
	if !lock.Valid() || !exists(path) {
		t.Errorf("acquired lock file is not valid")
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	if lock.Valid() || exists(path) {
		t.Errorf("released lock file is still valid")
	}
	if err := lock.Release(); err == nil {
		t.Errorf("second release should fail")
	}
}

func TestLockFile_DirectoryLocksAreExclusive(t *testing.T) {
	dir := t.TempDir()
	first, err := LockDirectory(dir)
	if err != nil {
		t.Fatalf("failed to lock directory: %v", err)
	}
	if _, err := LockDirectory(dir); err == nil {
		t.Errorf("should not be able to lock an occupied directory")
	}
	if err := first.Release(); err != nil {
		t.Fatalf("failed to release lock: %v", err)
	}
	second, err := LockDirectory(dir)
	if err != nil {
		t.Fatalf("failed to lock released directory: %v", err)
	}
	if err := second.Release(); err != nil {
		t.Errorf("failed to release lock: %v", err)
	}
}
