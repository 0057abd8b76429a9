// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package testfile

import (
	"os"

	"golang.org/x/sys/unix"
)

func allocate(file *os.File, sizeBytes uint64) (err error) {
	for {
		err = unix.Fallocate(int(file.Fd()), 0, 0, int64(sizeBytes))
		if unix.EINTR != err {
			return
		}
	}
}
