// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package transfer

import (
	"os"
	"syscall"
	"time"
)

func accessTime(fileInfo os.FileInfo) time.Time {
	stat, ok := fileInfo.Sys().(*syscall.Stat_t)
	if !ok {
		return fileInfo.ModTime()
	}
	return time.Unix(int64(stat.Atim.Sec), int64(stat.Atim.Nsec))
}
