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
	"fmt"
	"os"
	"path/filepath"
)

// DirectoryLockName is the name of the file marking a directory as in use.
const DirectoryLockName = "~lock"

// LockFile marks the exclusive use of a resource by a process through the
// existence of a file. Locks not released by a terminated process remain
// in place and have to be removed manually.
type LockFile interface {
	// Release deletes the lock file. A lock may only be released once.
	Release() error
	// Valid returns true while the lock has not been released.
	Valid() bool
}

type lockFile struct {
	path string
	file *os.File
}

// CreateLockFile atomically creates the file with the given path. It fails
// if the file already exists.
func CreateLockFile(path string) (LockFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire file lock: %w", err)
	}
	if _, err := fmt.Fprintf(file, "%d\n", os.Getpid()); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to write file lock: %w", err),
			file.Close(),
			os.Remove(path),
		)
	}
	return &lockFile{path: path, file: file}, nil
}

// LockDirectory claims the given directory for the current process.
func LockDirectory(directory string) (LockFile, error) {
	return CreateLockFile(filepath.Join(directory, DirectoryLockName))
}

func (f *lockFile) Valid() bool {
	return f.file != nil
}

func (f *lockFile) Release() error {
	if f.file == nil {
		return fmt.Errorf("unable to release invalid lock")
	}
	if err := f.file.Close(); err != nil {
		return fmt.Errorf("failed to release file lock: %w", err)
	}
	if err := os.Remove(f.path); err != nil {
		return fmt.Errorf("failed to release file lock: %w", err)
	}
	f.file = nil
	return nil
}
