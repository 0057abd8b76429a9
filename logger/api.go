// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package logger is the benchmark's single logging front end, built on
// github.com/sirupsen/logrus.
//
// Every line is rendered as "YYYY-MM-DD HH:MM:SS - LEVEL - message" so that
// benchmark logs can be compared across runs with plain text tools.
//
package logger

import (
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Field carrying the error passed to the *WithError variants
const errorKey string = "error"

// Trace logs are emitted at logrus.InfoLevel only when enabled via [Logging]TraceEnabled
var traceLevelEnabled = false

func TraceEnabled() bool {
	return traceLevelEnabled
}

func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

func Tracef(format string, args ...interface{}) {
	if !traceLevelEnabled {
		return
	}
	log.Infof(format, args...)
}

func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

func ErrorfWithError(err error, format string, args ...interface{}) {
	log.WithField(errorKey, err).Errorf(format, args...)
}

func WarnfWithError(err error, format string, args ...interface{}) {
	log.WithField(errorKey, err).Warnf(format, args...)
}

func InfofWithError(err error, format string, args ...interface{}) {
	log.WithField(errorKey, err).Infof(format, args...)
}

// AddLogTarget sends a copy of every formatted log line to writer
//
// Only valid between Up() and Down().
//
func AddLogTarget(writer io.Writer) {
	addLogTarget(writer)
}

// LogBuffer retains the most recent log lines for tests to inspect
type LogBuffer struct {
	sync.Mutex
	LogEntries   []string // most recent log entry is [0]
	TotalEntries int      // count of all entries seen
}

type LogTarget struct {
	LogBuf *LogBuffer
}

// Init sizes the buffer to keep the nEntry most recent lines
func (target *LogTarget) Init(nEntry int) {
	target.LogBuf = &LogBuffer{TotalEntries: 0}
	target.LogBuf.LogEntries = make([]string, nEntry)
}

func (target LogTarget) Write(p []byte) (n int, err error) {
	entry := strings.TrimRight(string(p), " \t\n")

	target.LogBuf.Lock()
	defer target.LogBuf.Unlock()

	if 0 < len(target.LogBuf.LogEntries) {
		copy(target.LogBuf.LogEntries[1:], target.LogBuf.LogEntries[:len(target.LogBuf.LogEntries)-1])
		target.LogBuf.LogEntries[0] = entry
	}
	target.LogBuf.TotalEntries++

	n = len(p)
	err = nil
	return
}

// Contains reports whether any retained entry contains substr
func (target LogTarget) Contains(substr string) bool {
	target.LogBuf.Lock()
	defer target.LogBuf.Unlock()

	for _, entry := range target.LogBuf.LogEntries {
		if strings.Contains(entry, substr) {
			return true
		}
	}

	return false
}
