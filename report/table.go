// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/NVIDIA/traveler/utils"
)

// WriteSummary prints one table per workload: a row per cycle with its
// duration, status and throughput, followed by the workload total.
func WriteSummary(runReport *RunReport, w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "\n=== Storage Traveler run %s (%s) ===\n", runReport.RunID, runReport.State)
	fmt.Fprintf(tw, "Test file: %s, queue depth %d\n", utils.HumanBytes(runReport.FileSizeBytes), runReport.QueueDepth)

	for i := range runReport.Workloads {
		writeWorkloadTable(tw, &runReport.Workloads[i])
	}

	tw.Flush()
}

func writeSeparator(tw *tabwriter.Writer, columns int) {
	sep := make([]string, columns)
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintln(tw, strings.Join(sep, "\t"))
}

func writeWorkloadTable(tw *tabwriter.Writer, workloadReport *WorkloadReport) {
	var (
		header []string
	)

	fmt.Fprintf(tw, "\n--- Workload: %s ---\n\n", workloadReport.Name)

	sequential := (0 < len(workloadReport.Cycles)) && (0 < len(workloadReport.Cycles[0].Workers))

	if sequential {
		header = []string{"Cycle", "Seconds", "Read s", "Read rate", "Write s", "Write rate", "Status"}
	} else {
		header = []string{"Cycle", "Seconds", "Transfers", "Rate", "Status"}
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	writeSeparator(tw, len(header))

	for i := range workloadReport.Cycles {
		cycle := &workloadReport.Cycles[i]

		status := "OK"
		if !cycle.Succeeded() {
			status = "ERR"
		}

		var row []string

		if sequential {
			row = []string{
				fmt.Sprintf("%d", cycle.CycleIndex),
				utils.SecondsString(cycle.CycleDurationSeconds),
				utils.SecondsString(cycle.ReadPhaseSeconds),
				utils.HumanRate(cycle.PhaseBytes(PhaseRead), cycle.ReadPhaseSeconds),
				utils.SecondsString(cycle.WritePhaseSeconds),
				utils.HumanRate(cycle.PhaseBytes(PhaseWrite), cycle.WritePhaseSeconds),
				status,
			}
		} else {
			row = []string{
				fmt.Sprintf("%d", cycle.CycleIndex),
				utils.SecondsString(cycle.CycleDurationSeconds),
				fmt.Sprintf("%d", len(cycle.Transfers)),
				utils.HumanRate(cycle.TransferBytes(), transferSeconds(cycle)),
				status,
			}
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}

	fmt.Fprintf(tw, "\nTotal: %s seconds over %d cycles, %d failed\n",
		utils.SecondsString(workloadReport.TotalDurationSeconds), len(workloadReport.Cycles), workloadReport.FailedCycles())
}

func transferSeconds(cycle *CycleReport) (seconds float64) {
	for _, transfer := range cycle.Transfers {
		if transfer.Succeeded {
			seconds += transfer.DurationSeconds
		}
	}
	return
}
