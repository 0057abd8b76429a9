// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NVIDIA/traveler/history"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/traveler/travelerpkg"
	"github.com/NVIDIA/traveler/utils"
)

// runError marks failures of a subcommand's work, as opposed to its usage
type runError struct {
	err error
}

func (e runError) Error() string {
	return e.err.Error()
}

const historyTimeFormat = "2006-01-02 15:04:05"

func newHistoryCmd() (historyCmd *cobra.Command) {
	var (
		bestFileSizeGB uint64
		dbPath         string
		recentLimit    int
	)

	// withStore opens the history database for the duration of one subcommand
	withStore := func(fn func(store *history.Store, w io.Writer) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			store, err := history.Open(dbPath)
			if nil != err {
				return runError{err: err}
			}
			defer store.Close()

			err = fn(store, cmd.OutOrStdout())
			if nil != err {
				return runError{err: err}
			}
			return nil
		}
	}

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Query the run history recorded with --history-db",
	}

	historyCmd.PersistentFlags().StringVar(&dbPath, "history-db", "", "SQLite run history to read")
	_ = historyCmd.MarkPersistentFlagRequired("history-db")

	recentCmd := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: withStore(func(store *history.Store, w io.Writer) (err error) {
			runs, err := store.Recent(recentLimit)
			if nil != err {
				return
			}
			writeRecentRuns(w, runs)
			return
		}),
	}
	recentCmd.Flags().IntVar(&recentLimit, "limit", 10, "number of runs to list")

	showCmd := &cobra.Command{
		Use:   "show <run_id>",
		Short: "Show one run with its per-cycle results",
		Args:  cobra.ExactArgs(1),
	}
	showCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store, w io.Writer) (err error) {
			run, err := store.Get(args[0])
			if nil != err {
				err = fmt.Errorf("run %s not found: %v", args[0], err)
				return
			}
			writeRun(w, &run)
			return
		})(cmd, args)
	}

	bestCmd := &cobra.Command{
		Use:   "best <internal|external|sequential>",
		Short: "Show the fastest fully successful run of a workload for one test file size",
		Args:  cobra.ExactArgs(1),
	}
	bestCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return withStore(func(store *history.Store, w io.Writer) (err error) {
			fileSizeBytes := bestFileSizeGB * utils.BytesPerGB
			best, err := store.Best(args[0], fileSizeBytes)
			if nil != err {
				err = fmt.Errorf("no successful %s run with a %s test file: %v", args[0], utils.HumanBytes(fileSizeBytes), err)
				return
			}
			fmt.Fprintf(w, "Best %s run: %s, %s seconds over %d cycle(s) (%s)\n",
				best.Name, best.RunId, utils.SecondsString(best.TotalDurationSeconds), best.Cycles,
				utils.HumanRate(best.Bytes, best.TotalDurationSeconds))
			return
		})(cmd, args)
	}
	bestCmd.Flags().Uint64Var(&bestFileSizeGB, "file-size", travelerpkg.DefaultFileSizeGB, "test file size in GB the runs used")

	historyCmd.AddCommand(recentCmd, showCmd, bestCmd)

	return
}

func newReportCmd() (reportCmd *cobra.Command) {
	reportCmd = &cobra.Command{
		Use:   "report <report.yaml>",
		Short: "Print the summary table of a run report written with --report-file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			runReport, err := report.ReadYAML(args[0])
			if nil != err {
				return runError{err: err}
			}
			report.WriteSummary(runReport, cmd.OutOrStdout())
			return nil
		},
	}

	return
}

func writeRecentRuns(w io.Writer, runs []history.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Run ID\tStarted\tState\tFile size\tCycles\tWorkloads")

	for i := range runs {
		run := &runs[i]

		workloads := ""
		for j, workload := range run.Workloads {
			if 0 < j {
				workloads += " "
			}
			workloads += fmt.Sprintf("%s=%ss", workload.Name, utils.SecondsString(workload.TotalDurationSeconds))
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			run.Id, run.StartedAt.Local().Format(historyTimeFormat), run.State,
			utils.HumanBytes(run.FileSizeBytes), run.Cycles, workloads)
	}

	tw.Flush()
}

func writeRun(w io.Writer, run *history.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "Run %s (%s)\n", run.Id, run.State)
	fmt.Fprintf(tw, "Started %s, ended %s\n",
		run.StartedAt.Local().Format(historyTimeFormat), run.EndedAt.Local().Format(historyTimeFormat))
	fmt.Fprintf(tw, "Primary %s, secondary %q, test file %s, queue depth %d\n",
		run.PrimaryPath, run.SecondaryPath, utils.HumanBytes(run.FileSizeBytes), run.QueueDepth)

	fmt.Fprintln(tw, "Workload\tCycle\tSeconds\tRead s\tWrite s\tBytes\tStatus")

	for _, cycle := range run.CycleRows {
		status := "ok"
		if !cycle.Succeeded {
			status = "FAILED"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			cycle.Workload, cycle.CycleIndex, utils.SecondsString(cycle.DurationSeconds),
			utils.SecondsString(cycle.ReadPhaseSeconds), utils.SecondsString(cycle.WritePhaseSeconds),
			utils.HumanBytes(cycle.Bytes), status)
	}

	for _, workload := range run.Workloads {
		fmt.Fprintf(tw, "Total %s: %s seconds over %d cycle(s), %d failed\n",
			workload.Name, utils.SecondsString(workload.TotalDurationSeconds), workload.Cycles, workload.FailedCycles)
	}

	tw.Flush()
}
