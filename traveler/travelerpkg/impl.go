// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package travelerpkg

import (
	"fmt"
	"os"
	"time"

	"github.com/NVIDIA/traveler/blunder"
	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/history"
	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/stats"
	"github.com/NVIDIA/traveler/testfile"
	"github.com/NVIDIA/traveler/utils"
	"github.com/NVIDIA/traveler/workload"
)

type workloadRunner func(run *runStruct, testFilePath string) *report.WorkloadReport

var workloadRunners = map[string]workloadRunner{
	workload.Internal: func(run *runStruct, testFilePath string) *report.WorkloadReport {
		return workload.RunInternal(testFilePath, run.config.PrimaryPath, run.config.Cycles, run.sink)
	},
	workload.External: func(run *runStruct, testFilePath string) *report.WorkloadReport {
		return workload.RunRoundTrip(testFilePath, run.config.PrimaryPath, run.config.SecondaryPath, run.config.Cycles, run.sink)
	},
	workload.Sequential: func(run *runStruct, testFilePath string) *report.WorkloadReport {
		return workload.RunSequential(testFilePath, run.config.FileSizeBytes, run.config.Cycles, run.config.QueueDepth,
			workload.SequentialOptions{
				RangePartitioned: run.config.RangePartitioned,
				SyncWrites:       run.config.SyncWrites,
			}, run.sink)
	},
}

type runStruct struct {
	config    *Config
	sink      progress.Sink
	state     progress.Phase
	runReport *report.RunReport
}

func (run *runStruct) transition(state progress.Phase, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	run.state = state
	run.runReport.State = string(state)

	if progress.Failed == state {
		logger.Errorf("[%s] %s", state, message)
	} else {
		logger.Infof("[%s] %s", state, message)
	}

	run.sink.Emit(progress.Event{Phase: state, Message: message, Time: time.Now()})
}

func (run *runStruct) fail(err error) {
	run.runReport.EndedAt = time.Now()
	run.transition(progress.Failed, "%s", blunder.ErrorString(err))
	logger.Tracef("Failure raised at %s:\n%s", blunder.SourceLine(err), blunder.Details(err))
}

func doRun(confMap conf.ConfMap, sink progress.Sink) (runReport *report.RunReport, err error) {
	var (
		created bool
	)

	if nil == sink {
		sink = progress.Discard
	}

	run := &runStruct{
		sink:      sink,
		state:     progress.Idle,
		runReport: report.NewRunReport(),
	}

	runReport = run.runReport
	runReport.State = string(progress.Idle)

	err = stats.Up(confMap)
	if nil != err {
		logger.WarnfWithError(err, "Metrics disabled")
	} else {
		defer func() {
			_ = stats.Down()
		}()
	}

	// Validating

	run.transition(progress.Validating, "Validating run %s", runReport.RunID)

	run.config, err = ParseConfig(confMap)
	if nil != err {
		run.fail(err)
		return
	}

	runReport.PrimaryPath = run.config.PrimaryPath
	runReport.SecondaryPath = run.config.SecondaryPath
	runReport.FileSizeBytes = run.config.FileSizeBytes
	runReport.CyclesPerRun = run.config.Cycles
	runReport.QueueDepth = run.config.QueueDepth

	logger.Infof("Configuration: %s", run.config)

	err = run.validatePaths()
	if nil != err {
		run.fail(err)
		return
	}

	// Provisioning

	testFilePath := run.config.TestFilePath()

	run.transition(progress.Provisioning, "Creating a test file of size %s at %s...",
		utils.HumanBytes(run.config.FileSizeBytes), testFilePath)

	run.checkFreeSpace(testFilePath)

	created, err = testfile.Ensure(testFilePath, run.config.FileSizeBytes, run.config.Preallocate)
	if nil != err {
		if created {
			logger.Warnf("Partially created test file left at %s for inspection", testFilePath)
		}
		run.fail(err)
		run.publish()
		return
	}

	if created {
		logger.Infof("Test file created successfully.")
	} else {
		logger.Warnf("Using existing file at %s as the test file; its size is not checked", testFilePath)
	}

	// Executing then Cleaning

	err = run.executeAndClean(testFilePath)

	runReport.EndedAt = time.Now()

	if nil != err {
		run.fail(err)
	} else {
		run.transition(progress.Done, "Run %s completed in %s seconds.",
			runReport.RunID, utils.SecondsString(runReport.DurationSeconds()))
	}

	run.publish()

	return
}

func validateDirectory(path string, role string) (err error) {
	fileInfo, err := os.Stat(path)
	if nil != err {
		if os.IsNotExist(err) {
			err = blunder.Wrapf(err, blunder.ValidationError, "%s SSD path does not exist: %s", role, path)
		} else {
			err = blunder.Wrapf(err, blunder.ValidationError, "%s SSD path cannot be examined: %s", role, path)
		}
		return
	}

	if !fileInfo.IsDir() {
		err = validationErrorf("%s SSD path is not a directory: %s", role, path)
		return
	}

	return
}

func (run *runStruct) validatePaths() (err error) {
	err = validateDirectory(run.config.PrimaryPath, "Primary")
	if nil != err {
		return
	}

	if "" == run.config.SecondaryPath {
		if run.config.Selected(workload.External) {
			err = validationErrorf("Secondary SSD path is required for external test.")
		}
		return
	}

	err = validateDirectory(run.config.SecondaryPath, "Secondary")
	if nil != err {
		return
	}

	return
}

// checkFreeSpace warns when the selected workloads will probably not fit
func (run *runStruct) checkFreeSpace(testFilePath string) {
	var (
		neededOnPrimary   uint64
		neededOnSecondary uint64
	)

	_, err := os.Stat(testFilePath)
	if os.IsNotExist(err) {
		neededOnPrimary += run.config.FileSizeBytes
	}

	// Transient copies on the primary path never coexist
	if run.config.Selected(workload.Internal) || run.config.Selected(workload.External) {
		neededOnPrimary += run.config.FileSizeBytes
	}
	if run.config.Selected(workload.External) {
		neededOnSecondary = run.config.FileSizeBytes
	}

	warnIfShort := func(dir string, needed uint64) {
		if 0 == needed {
			return
		}
		freeBytes, err := testfile.FreeBytes(dir)
		if nil != err {
			logger.WarnfWithError(err, "Could not determine free space on %s", dir)
			return
		}
		if freeBytes < needed {
			logger.Warnf("Only %s free on %s but the selected workloads need about %s",
				utils.HumanBytes(freeBytes), dir, utils.HumanBytes(needed))
		}
	}

	warnIfShort(run.config.PrimaryPath, neededOnPrimary)
	warnIfShort(run.config.SecondaryPath, neededOnSecondary)
}

// executeAndClean runs every selected workload, then removes the test file on every exit path
//
// A panic inside a workload is turned into the returned error after cleanup.
//
func (run *runStruct) executeAndClean(testFilePath string) (err error) {
	defer func() {
		if r := recover(); nil != r {
			err = blunder.NewError(blunder.TransferError, "unexpected failure while executing workloads: %v", r)
		}
	}()

	defer run.clean(testFilePath)

	run.transition(progress.Executing, "Running %d workload(s), %d cycle(s) each", len(run.config.Workloads), run.config.Cycles)

	for _, workloadName := range run.config.Workloads {
		workloadReport := workloadRunners[workloadName](run, testFilePath)

		run.runReport.AddWorkload(workloadReport)

		if failed := workloadReport.FailedCycles(); 0 < failed {
			logger.Warnf("Workload %s had %d failed cycle(s) of %d", workloadName, failed, len(workloadReport.Cycles))
		}
	}

	err = nil
	return
}

func (run *runStruct) clean(testFilePath string) {
	run.transition(progress.Cleaning, "Deleting test file %s", testFilePath)

	err := testfile.Remove(testFilePath)
	if nil != err {
		logger.ErrorfWithError(err, "Test file %s could not be deleted", testFilePath)
	}
}

// publish writes the configured report, metrics and history outputs
//
// Failures are logged and never change the run's outcome.
//
func (run *runStruct) publish() {
	var (
		err   error
		store *history.Store
	)

	stats.RecordRun(run.runReport, progress.Done == run.state)

	if "" != run.config.ReportFilePath {
		err = report.WriteYAML(run.runReport, run.config.ReportFilePath)
		if nil != err {
			logger.WarnfWithError(err, "Run report not written")
		} else {
			logger.Infof("Run report written to %s", run.config.ReportFilePath)
		}
	}

	if "" != run.config.MetricsFilePath {
		err = stats.WriteTextfile(run.config.MetricsFilePath)
		if nil != err {
			logger.WarnfWithError(err, "Metrics not written")
		} else {
			logger.Infof("Metrics written to %s", run.config.MetricsFilePath)
		}
	}

	if "" != run.config.HistoryDBPath {
		store, err = history.Open(run.config.HistoryDBPath)
		if nil != err {
			logger.WarnfWithError(err, "Run history not recorded")
			return
		}

		err = store.Record(run.runReport)
		if nil != err {
			logger.WarnfWithError(err, "Run history not recorded")
		} else {
			logger.Infof("Run %s recorded in %s", run.runReport.RunID, run.config.HistoryDBPath)
		}

		err = store.Close()
		if nil != err {
			logger.WarnfWithError(err, "Closing run history failed")
		}
	}
}
