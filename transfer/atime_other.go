// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

//go:build !linux
// +build !linux

package transfer

import (
	"os"
	"time"
)

func accessTime(fileInfo os.FileInfo) time.Time {
	return fileInfo.ModTime()
}
