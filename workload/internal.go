// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"path/filepath"

	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/stats"
	"github.com/NVIDIA/traveler/transfer"
	"github.com/NVIDIA/traveler/utils"
)

// RunInternal copies testFilePath to primaryPath/internal_test_copy once per cycle
//
// A successful copy is deleted before the cycle ends and the cycle duration
// includes that delete. A failed copy is left where it is.
//
func RunInternal(testFilePath string, primaryPath string, cycles uint32, sink progress.Sink) (workloadReport *report.WorkloadReport) {
	destination := filepath.Join(primaryPath, InternalCopyName)

	workloadReport = report.NewWorkloadReport(Internal, cycles)

	emit(sink, "Starting internal file transfer test...")

	for cycleIndex := 1; cycleIndex <= int(cycles); cycleIndex++ {
		cycleStarted(sink, cycleIndex, cycles)

		stopwatch := utils.NewStopwatch()

		transferResult := transfer.Transfer(testFilePath, destination)
		stats.RecordTransfer(Internal, &transferResult)

		if transferResult.Succeeded {
			logger.Infof("Internal file transfer completed in %s seconds (%s).",
				utils.SecondsString(transferResult.DurationSeconds), utils.HumanRate(transferResult.Bytes, transferResult.DurationSeconds))
			removeCopy(destination)
		} else {
			logger.Warnf("Internal file transfer failed: %s", transferResult.ErrorDetail)
		}

		cycle := report.CycleReport{
			CycleIndex:           cycleIndex,
			Transfers:            []report.TransferResult{transferResult},
			CycleDurationSeconds: stopwatch.Stop().Seconds(),
		}

		workloadReport.AddCycle(cycle)

		cycleCompleted(sink, Internal, cycleIndex, cycle.CycleDurationSeconds)
	}

	emit(sink, "Total time for %d internal file transfer cycles: %s seconds.",
		cycles, utils.SecondsString(workloadReport.TotalDurationSeconds))

	return
}
