// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package workload implements the three benchmark workloads.
//
// Each Run* function executes every requested cycle and returns a
// report.WorkloadReport with exactly one CycleReport per cycle. Failures of
// individual transfers or workers are recorded in the report and logged; they
// never stop the remaining cycles.
//
package workload

import (
	"fmt"
	"time"

	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/stats"
	"github.com/NVIDIA/traveler/testfile"
	"github.com/NVIDIA/traveler/utils"
)

// Workload names, as accepted by --test and reported in a RunReport
const (
	Internal   = "internal"
	External   = "external"
	Sequential = "sequential"
)

// Names lists every workload in execution order
var Names = []string{Internal, External, Sequential}

// Names of the transient copies left by the transfer workloads
const (
	InternalCopyName       = "internal_test_copy"
	ExternalCopyName       = "external_test_copy"
	ExternalReturnCopyName = "external_test_return_copy"
)

// ChunkSize is the buffer size used by each sequential I/O worker
const ChunkSize = 1024 * 1024

// SequentialOptions selects how the sequential workload divides the test file
type SequentialOptions struct {
	// RangePartitioned gives worker i the byte range starting at i*share, with
	// the last worker also covering the remainder. When false every worker
	// starts at offset 0 and the remainder is never touched.
	RangePartitioned bool

	// SyncWrites makes each writer fsync before its timing stops
	SyncWrites bool
}

func emit(sink progress.Sink, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	logger.Infof("%s", message)

	if nil != sink {
		sink.Emit(progress.Event{Phase: progress.Executing, Message: message, Time: time.Now()})
	}
}

func cycleStarted(sink progress.Sink, cycleIndex int, cycles uint32) {
	emit(sink, "Cycle %d of %d", cycleIndex, cycles)
}

func cycleCompleted(sink progress.Sink, workload string, cycleIndex int, seconds float64) {
	stats.RecordCycle(workload, seconds)
	emit(sink, "Cycle %d completed in %s seconds.", cycleIndex, utils.SecondsString(seconds))
}

// removeCopy deletes a transient copy, logging rather than returning any failure
func removeCopy(path string) {
	err := testfile.Remove(path)
	if nil != err {
		logger.WarnfWithError(err, "Cleanup of %s failed", path)
	}
}
