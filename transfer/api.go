// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package transfer copies one file to another and times the copy.
//
// Transfer never returns an error. Every failure is folded into the returned
// report.TransferResult so that a workload can record it and move on to its
// next cycle.
//
package transfer

import (
	"fmt"
	"io"
	"os"

	"github.com/NVIDIA/traveler/blunder"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/utils"
)

// Transfer copies source to destination, then copies source's permission bits
// and access/modification times onto destination
//
// An existing destination is overwritten. The returned duration covers the
// content copy and the metadata step only; opening and checking the two paths
// is not timed, so a copy rejected before it starts reports zero seconds.
// Whatever a failed copy left at destination is not removed.
//
func Transfer(source string, destination string) (transferResult report.TransferResult) {
	var (
		bytes   int64
		err     error
		seconds float64
	)

	transferResult = report.TransferResult{
		Source:      source,
		Destination: destination,
	}

	bytes, seconds, err = copyFile(source, destination)

	transferResult.DurationSeconds = seconds
	transferResult.Bytes = uint64(bytes)

	if nil != err {
		err = blunder.AddKind(err, blunder.TransferError)
		transferResult.Succeeded = false
		transferResult.ErrorDetail = blunder.ErrorString(err)
		return
	}

	transferResult.Succeeded = true

	return
}

// copyFile times from opening destination through the metadata copy
func copyFile(source string, destination string) (bytes int64, seconds float64, err error) {
	var (
		closeErr        error
		destinationFile *os.File
		destinationInfo os.FileInfo
		sourceFile      *os.File
		sourceInfo      os.FileInfo
	)

	sourceFile, err = os.Open(source)
	if nil != err {
		return
	}
	defer sourceFile.Close()

	sourceInfo, err = sourceFile.Stat()
	if nil != err {
		return
	}
	if !sourceInfo.Mode().IsRegular() {
		err = fmt.Errorf("source %s is not a regular file", source)
		return
	}

	destinationInfo, err = os.Stat(destination)
	if nil == err {
		if os.SameFile(sourceInfo, destinationInfo) {
			err = fmt.Errorf("%s and %s are the same file", source, destination)
			return
		}
	} else if !os.IsNotExist(err) {
		return
	}

	stopwatch := utils.NewStopwatch()
	defer func() {
		seconds = stopwatch.Stop().Seconds()
	}()

	destinationFile, err = os.OpenFile(destination, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, sourceInfo.Mode().Perm())
	if nil != err {
		return
	}

	bytes, err = io.Copy(destinationFile, sourceFile)

	closeErr = destinationFile.Close()
	if nil == err {
		err = closeErr
	}
	if nil != err {
		err = fmt.Errorf("copy of %s to %s failed after %d bytes: %w", source, destination, bytes, err)
		return
	}

	err = copyMetadata(sourceInfo, destination)
	if nil != err {
		err = fmt.Errorf("copy of metadata from %s to %s failed: %w", source, destination, err)
		return
	}

	return
}

func copyMetadata(sourceInfo os.FileInfo, destination string) (err error) {
	err = os.Chmod(destination, sourceInfo.Mode().Perm())
	if nil != err {
		return
	}

	err = os.Chtimes(destination, accessTime(sourceInfo), sourceInfo.ModTime())

	return
}
