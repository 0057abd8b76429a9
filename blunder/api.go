// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package blunder classifies benchmark errors. Each error is tagged with
// a Kind saying which stage of a benchmark run produced it and, when the cause
// was a failed system call, the errno that call returned.
//
// This package is implemented on top of the ansel1/merry package:
//   https://github.com/ansel1/merry
//
package blunder

import (
	"errors"
	"fmt"

	"github.com/ansel1/merry"
	"golang.org/x/sys/unix"
)

// Kind classifies an error by the stage of a run that produced it
type Kind string

const (
	ValidationError   Kind = "ValidationError"   // Paths or options rejected before anything is created
	ProvisioningError Kind = "ProvisioningError" // Test file could not be created
	TransferError     Kind = "TransferError"     // A copy, read or write failed during a workload
	CleanupError      Kind = "CleanupError"      // A copy or the test file could not be removed
)

// NoKind is returned by KindOf for errors not produced by this package
const NoKind Kind = ""

const (
	kindKey  = "kind"
	errnoKey = "errno"
)

// Default errno values for success and failure
const successErrno = 0
const failureErrno = -1

// NewError creates a new merry/blunder.Kind-annotated error using the given
// format string and arguments.
func NewError(kind Kind, format string, a ...interface{}) error {
	return merry.WrapSkipping(fmt.Errorf(format, a...), 1).WithValue(kindKey, kind)
}

// AddKind tags e with kind, preserving the errno of any underlying system call failure
//
// A nil e yields nil.
//
func AddKind(e error, kind Kind) error {
	var (
		errno unix.Errno
	)

	if nil == e {
		return nil
	}

	wrapped := merry.WrapSkipping(e, 1).WithValue(kindKey, kind)

	if !hasErrnoValue(e) && errors.As(e, &errno) {
		wrapped = wrapped.WithValue(errnoKey, int(errno))
	}

	return wrapped
}

// Wrapf tags e with kind and prefixes its message with the formatted context
func Wrapf(e error, kind Kind, format string, a ...interface{}) error {
	var (
		errno unix.Errno
	)

	if nil == e {
		return nil
	}

	wrapped := merry.WrapSkipping(e, 1).Prependf(format, a...).WithValue(kindKey, kind)

	if !hasErrnoValue(e) && errors.As(e, &errno) {
		wrapped = wrapped.WithValue(errnoKey, int(errno))
	}

	return wrapped
}

func hasErrnoValue(e error) bool {
	// If the "errno" key/value was not present, merry.Value returns nil.
	return nil != merry.Value(e, errnoKey)
}

// KindOf extracts the Kind from the error, or NoKind if none was attached
func KindOf(e error) Kind {
	if nil == e {
		return NoKind
	}

	kind, ok := merry.Value(e, kindKey).(Kind)
	if !ok {
		return NoKind
	}

	return kind
}

// Is checks whether an error carries a particular Kind
func Is(e error, kind Kind) bool {
	return (nil != e) && (KindOf(e) == kind)
}

// Errno extracts errno from the error, if it was previously wrapped.
// Otherwise a default value is returned.
//
func Errno(e error) int {
	var (
		errno unix.Errno
	)

	if nil == e {
		// nil error = success
		return successErrno
	}

	tmp := merry.Value(e, errnoKey)
	if nil != tmp {
		return tmp.(int)
	}

	if errors.As(e, &errno) {
		return int(errno)
	}

	return failureErrno
}

// IsErrno checks whether the error was caused by a system call returning errno
func IsErrno(e error, errno unix.Errno) bool {
	return Errno(e) == int(errno)
}

// ErrorString returns the error message followed by its Kind and errno, when set
func ErrorString(e error) string {
	if nil == e {
		return ""
	}

	errPlusVal := e.Error()

	if kind := KindOf(e); NoKind != kind {
		errPlusVal = fmt.Sprintf("%s [%s]", errPlusVal, kind)
	}

	if errno := Errno(e); failureErrno != errno {
		errPlusVal = fmt.Sprintf("%s (errno %d: %s)", errPlusVal, errno, unix.Errno(errno).Error())
	}

	return errPlusVal
}

// Details returns the message, values and stack captured when e was wrapped
func Details(e error) string {
	return merry.Details(e)
}

// SourceLine returns the string representation of the file and line that generated the error.
// Returns empty string if e has no stacktrace.
func SourceLine(e error) string {
	return merry.SourceLine(e)
}
