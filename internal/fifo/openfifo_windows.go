//go:build windows

/*************************************************************************
 * Copyright 2024 The Webtrail Authors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fifo

import (
	"errors"
	"os"
)

// ErrNamedPipesUnsupported is returned by CreateNamed and RemoveNamed on
// platforms with no POSIX FIFO equivalent wired up; cmd/webtrail's wire
// returns it as an error when --fifo-in or --fifo-out is set.
var ErrNamedPipesUnsupported = errors.New("fifo: named pipes unsupported on this platform")

func CreateNamed(path string, perm os.FileMode) error {
	return ErrNamedPipesUnsupported
}

func RemoveNamed(path string) error {
	return ErrNamedPipesUnsupported
}
