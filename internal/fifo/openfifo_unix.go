//go:build !windows

/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fifo

import (
	"os"

	"golang.org/x/sys/unix"
)

// CreateNamed creates a POSIX named pipe at path (§5: "Named pipes are
// created on start and unlinked on clean shutdown"). It is not an error
// for the path to already exist as a FIFO; any other existing file is an
// error so a stray regular file doesn't get silently clobbered.
func CreateNamed(path string, perm os.FileMode) error {
	if fi, err := os.Stat(path); err == nil {
		if fi.Mode()&os.ModeNamedPipe == 0 {
			return &os.PathError{Op: "mkfifo", Path: path, Err: os.ErrExist}
		}
		return nil
	}
	return unix.Mkfifo(path, uint32(perm))
}

// RemoveNamed unlinks a named pipe created by CreateNamed.
func RemoveNamed(path string) error {
	return os.Remove(path)
}
