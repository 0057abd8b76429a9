// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package testfile provisions and removes the file every workload reads from.
package testfile

import (
	"io"
	"math"
	"os"

	"golang.org/x/sys/unix"

	"github.com/NVIDIA/traveler/blunder"
)

// DefaultName is the test file's name under the primary path
const DefaultName = "test_file"

// Ensure creates a file of exactly sizeBytes at path unless something already exists there
//
// An existing file is left untouched whatever its size, and created is false.
// A new file is extended sparsely by writing a single zero byte at
// sizeBytes-1, or, when preallocate is set and the platform supports it,
// has its blocks allocated up front.
//
// On failure, created reports whether a (possibly partial) file was left at path.
// The returned error is a blunder.ProvisioningError carrying the failing errno.
//
func Ensure(path string, sizeBytes uint64, preallocate bool) (created bool, err error) {
	var (
		closeErr error
		file     *os.File
	)

	_, err = os.Stat(path)
	if nil == err {
		created = false
		return
	}
	if !os.IsNotExist(err) {
		err = blunder.Wrapf(err, blunder.ProvisioningError, "stat of test file %s failed", path)
		return
	}

	if math.MaxInt64 < sizeBytes {
		err = blunder.AddKind(unix.EFBIG, blunder.ProvisioningError)
		return
	}

	file, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if nil != err {
		err = blunder.Wrapf(err, blunder.ProvisioningError, "create of test file %s failed", path)
		return
	}

	created = true

	if 0 < sizeBytes {
		if preallocate {
			err = allocate(file, sizeBytes)
			if blunder.IsErrno(err, unix.EOPNOTSUPP) || blunder.IsErrno(err, unix.ENOSYS) {
				err = extendSparse(file, sizeBytes)
			}
		} else {
			err = extendSparse(file, sizeBytes)
		}
	}

	closeErr = file.Close()

	if nil != err {
		err = blunder.Wrapf(err, blunder.ProvisioningError, "sizing of test file %s to %d bytes failed", path, sizeBytes)
		return
	}
	if nil != closeErr {
		err = blunder.Wrapf(closeErr, blunder.ProvisioningError, "close of test file %s failed", path)
		return
	}

	return
}

func extendSparse(file *os.File, sizeBytes uint64) (err error) {
	_, err = file.Seek(int64(sizeBytes-1), io.SeekStart)
	if nil != err {
		return
	}

	_, err = file.Write([]byte{0})

	return
}

// Remove deletes the file at path; a file that is already gone is not an error
func Remove(path string) (err error) {
	err = os.Remove(path)
	if (nil == err) || os.IsNotExist(err) {
		err = nil
		return
	}

	err = blunder.Wrapf(err, blunder.CleanupError, "removal of %s failed", path)

	return
}

// FreeBytes returns the space available to an unprivileged user on the file system holding dir
func FreeBytes(dir string) (freeBytes uint64, err error) {
	var (
		statfs unix.Statfs_t
	)

	err = unix.Statfs(dir, &statfs)
	if nil != err {
		err = blunder.Wrapf(err, blunder.ValidationError, "statfs of %s failed", dir)
		return
	}

	freeBytes = uint64(statfs.Bavail) * uint64(statfs.Bsize)

	return
}
