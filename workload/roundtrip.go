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

// RunRoundTrip copies testFilePath to the secondary path and back once per cycle
//
// Leg one copies to secondaryPath/external_test_copy. If it fails the cycle
// ends there. Otherwise leg two copies that copy to
// primaryPath/external_test_return_copy. The leg one copy is deleted whenever
// leg one succeeded; the leg two copy only when leg two succeeded.
//
func RunRoundTrip(testFilePath string, primaryPath string, secondaryPath string, cycles uint32, sink progress.Sink) (workloadReport *report.WorkloadReport) {
	outboundPath := filepath.Join(secondaryPath, ExternalCopyName)
	returnPath := filepath.Join(primaryPath, ExternalReturnCopyName)

	workloadReport = report.NewWorkloadReport(External, cycles)

	emit(sink, "Starting external file transfer test...")

	for cycleIndex := 1; cycleIndex <= int(cycles); cycleIndex++ {
		cycleStarted(sink, cycleIndex, cycles)

		stopwatch := utils.NewStopwatch()

		cycle := report.CycleReport{
			CycleIndex: cycleIndex,
			Transfers:  make([]report.TransferResult, 0, 2),
		}

		outbound := transfer.Transfer(testFilePath, outboundPath)
		stats.RecordTransfer(External, &outbound)
		cycle.Transfers = append(cycle.Transfers, outbound)

		if outbound.Succeeded {
			logger.Infof("Transfer to secondary SSD completed in %s seconds (%s).",
				utils.SecondsString(outbound.DurationSeconds), utils.HumanRate(outbound.Bytes, outbound.DurationSeconds))

			inbound := transfer.Transfer(outboundPath, returnPath)
			stats.RecordTransfer(External, &inbound)
			cycle.Transfers = append(cycle.Transfers, inbound)

			if inbound.Succeeded {
				logger.Infof("Transfer back to primary SSD completed in %s seconds (%s).",
					utils.SecondsString(inbound.DurationSeconds), utils.HumanRate(inbound.Bytes, inbound.DurationSeconds))
				removeCopy(returnPath)
			} else {
				logger.Warnf("Transfer back to primary SSD failed: %s", inbound.ErrorDetail)
			}

			removeCopy(outboundPath)
		} else {
			logger.Warnf("Transfer to secondary SSD failed: %s", outbound.ErrorDetail)
		}

		cycle.CycleDurationSeconds = stopwatch.Stop().Seconds()

		workloadReport.AddCycle(cycle)

		cycleCompleted(sink, External, cycleIndex, cycle.CycleDurationSeconds)
	}

	emit(sink, "Total time for %d external file transfer cycles: %s seconds.",
		cycles, utils.SecondsString(workloadReport.TotalDurationSeconds))

	return
}
