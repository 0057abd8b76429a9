// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/testfile"
)

const testFileSize = 2*1024*1024 + 3

type testEnv struct {
	primaryPath   string
	secondaryPath string
	testFilePath  string
	log           logger.LogTarget
	recorder      progress.Recorder
}

func testSetup(t *testing.T) (env *testEnv) {
	confMap, err := conf.MakeConfMapFromStrings([]string{"Logging.LogToConsole=false"})
	if nil != err {
		t.Fatalf("conf.MakeConfMapFromStrings() failed: %v", err)
	}

	err = logger.Up(confMap)
	if nil != err {
		t.Fatalf("logger.Up() failed: %v", err)
	}

	env = &testEnv{
		primaryPath:   t.TempDir(),
		secondaryPath: t.TempDir(),
	}

	env.log.Init(64)
	logger.AddLogTarget(env.log)

	env.testFilePath = filepath.Join(env.primaryPath, testfile.DefaultName)

	_, err = testfile.Ensure(env.testFilePath, testFileSize, false)
	if nil != err {
		t.Fatalf("testfile.Ensure() failed: %v", err)
	}

	return
}

func testTeardown(t *testing.T) {
	err := logger.Down()
	if nil != err {
		t.Fatalf("logger.Down() failed: %v", err)
	}
}

func assertMissing(t *testing.T, path string) {
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "%s should not exist", path)
}

func TestRunInternal(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	workloadReport := RunInternal(env.testFilePath, env.primaryPath, 3, &env.recorder)

	assert.Equal(Internal, workloadReport.Name)
	require.Equal(t, 3, len(workloadReport.Cycles))

	var totalSeconds float64

	for i, cycle := range workloadReport.Cycles {
		assert.Equal(i+1, cycle.CycleIndex)
		require.Equal(t, 1, len(cycle.Transfers))
		assert.True(cycle.Transfers[0].Succeeded, cycle.Transfers[0].ErrorDetail)
		assert.Equal(uint64(testFileSize), cycle.Transfers[0].Bytes)
		assert.True(cycle.CycleDurationSeconds >= cycle.Transfers[0].DurationSeconds)
		totalSeconds += cycle.CycleDurationSeconds
	}

	assert.InDelta(totalSeconds, workloadReport.TotalDurationSeconds, 1e-9)

	assertMissing(t, filepath.Join(env.primaryPath, InternalCopyName))

	assert.True(env.log.Contains("Cycle 3 of 3"))
	assert.True(env.log.Contains("Total time for 3 internal file transfer cycles"))
	assert.Equal([]progress.Phase{progress.Executing}, env.recorder.Phases())
}

func TestRunInternalContinuesAfterFailure(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	missing := filepath.Join(env.primaryPath, "missing")

	workloadReport := RunInternal(missing, env.primaryPath, 2, nil)

	require.Equal(t, 2, len(workloadReport.Cycles))
	for _, cycle := range workloadReport.Cycles {
		assert.False(cycle.Transfers[0].Succeeded)
		assert.NotEqual("", cycle.Transfers[0].ErrorDetail)
	}
	assert.Equal(2, workloadReport.FailedCycles())
	assert.True(env.log.Contains(" - WARNING - Internal file transfer failed"))
}

func TestRunRoundTrip(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	workloadReport := RunRoundTrip(env.testFilePath, env.primaryPath, env.secondaryPath, 2, nil)

	assert.Equal(External, workloadReport.Name)
	require.Equal(t, 2, len(workloadReport.Cycles))

	for _, cycle := range workloadReport.Cycles {
		require.Equal(t, 2, len(cycle.Transfers))
		assert.Equal(filepath.Join(env.secondaryPath, ExternalCopyName), cycle.Transfers[0].Destination)
		assert.Equal(filepath.Join(env.secondaryPath, ExternalCopyName), cycle.Transfers[1].Source)
		assert.Equal(filepath.Join(env.primaryPath, ExternalReturnCopyName), cycle.Transfers[1].Destination)
		assert.True(cycle.Succeeded())
	}

	assertMissing(t, filepath.Join(env.secondaryPath, ExternalCopyName))
	assertMissing(t, filepath.Join(env.primaryPath, ExternalReturnCopyName))
}

func TestRunRoundTripOutboundFailure(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	missingSecondary := filepath.Join(env.secondaryPath, "missing_dir")

	workloadReport := RunRoundTrip(env.testFilePath, env.primaryPath, missingSecondary, 2, nil)

	require.Equal(t, 2, len(workloadReport.Cycles))
	for _, cycle := range workloadReport.Cycles {
		require.Equal(t, 1, len(cycle.Transfers), "return leg must not be attempted")
		assert.False(cycle.Transfers[0].Succeeded)
	}

	assertMissing(t, filepath.Join(missingSecondary, ExternalCopyName))
	assertMissing(t, filepath.Join(env.primaryPath, ExternalReturnCopyName))
}

func TestRunRoundTripReturnFailure(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	// A directory where the return copy should go makes the return leg fail
	blocker := filepath.Join(env.primaryPath, ExternalReturnCopyName)
	require.NoError(t, os.Mkdir(blocker, 0755))

	workloadReport := RunRoundTrip(env.testFilePath, env.primaryPath, env.secondaryPath, 1, nil)

	require.Equal(t, 1, len(workloadReport.Cycles))
	cycle := workloadReport.Cycles[0]
	require.Equal(t, 2, len(cycle.Transfers))
	assert.True(cycle.Transfers[0].Succeeded)
	assert.False(cycle.Transfers[1].Succeeded)

	// Outbound copy still cleaned up, return destination left alone
	assertMissing(t, filepath.Join(env.secondaryPath, ExternalCopyName))

	blockerInfo, err := os.Stat(blocker)
	require.NoError(t, err)
	assert.True(blockerInfo.IsDir())

	assert.True(env.log.Contains("Transfer back to primary SSD failed"))
}

func TestPartition(t *testing.T) {
	assert := assert.New(t)

	ranges, remainder := partition(10, 4, false)
	assert.Equal(uint64(2), remainder)
	assert.Equal([]workerRange{{0, 2}, {0, 2}, {0, 2}, {0, 2}}, ranges)

	ranges, remainder = partition(10, 4, true)
	assert.Equal(uint64(0), remainder)
	assert.Equal([]workerRange{{0, 2}, {2, 2}, {4, 2}, {6, 4}}, ranges)

	ranges, remainder = partition(3, 4, false)
	assert.Equal(uint64(3), remainder)
	assert.Equal([]workerRange{{0, 0}, {0, 0}, {0, 0}, {0, 0}}, ranges)

	ranges, remainder = partition(3, 4, true)
	assert.Equal(uint64(0), remainder)
	assert.Equal(workerRange{0, 3}, ranges[3])

	ranges, _ = partition(3, 0, true)
	assert.Equal(0, len(ranges))
}

func checkSequentialCycle(t *testing.T, cycle *report.CycleReport, queueDepth int) {
	require.Equal(t, 2*queueDepth, len(cycle.Workers))

	for i, workerResult := range cycle.Workers {
		if i < queueDepth {
			assert.Equal(t, report.PhaseRead, workerResult.Phase)
			assert.Equal(t, i, workerResult.Worker)
		} else {
			assert.Equal(t, report.PhaseWrite, workerResult.Phase)
			assert.Equal(t, i-queueDepth, workerResult.Worker)
		}
		assert.True(t, workerResult.Succeeded, workerResult.ErrorDetail)
	}

	assert.True(t, cycle.CycleDurationSeconds >= cycle.ReadPhaseSeconds+cycle.WritePhaseSeconds)

	// No writer starts before every reader of the same cycle has returned
	lastReadEnd, firstWriteStart := phaseBoundary(t, cycle)
	assert.False(t, lastReadEnd.After(firstWriteStart),
		"cycle %d: last read ended %v after first write started %v", cycle.CycleIndex, lastReadEnd, firstWriteStart)
}

func phaseBoundary(t *testing.T, cycle *report.CycleReport) (lastReadEnd time.Time, firstWriteStart time.Time) {
	for _, workerResult := range cycle.Workers {
		require.False(t, workerResult.StartedAt.IsZero())
		require.False(t, workerResult.EndedAt.Before(workerResult.StartedAt))

		if report.PhaseRead == workerResult.Phase {
			if workerResult.EndedAt.After(lastReadEnd) {
				lastReadEnd = workerResult.EndedAt
			}
		} else {
			if firstWriteStart.IsZero() || workerResult.StartedAt.Before(firstWriteStart) {
				firstWriteStart = workerResult.StartedAt
			}
		}
	}
	return
}

func TestRunSequentialPhasesDoNotInterleave(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	queueDepth := 8

	workloadReport := RunSequential(env.testFilePath, testFileSize, 3, uint32(queueDepth),
		SequentialOptions{RangePartitioned: true, SyncWrites: true}, nil)
	require.Equal(t, 3, len(workloadReport.Cycles))

	var previousWriteEnd time.Time

	for i := range workloadReport.Cycles {
		cycle := &workloadReport.Cycles[i]
		checkSequentialCycle(t, cycle, queueDepth)

		// Cycle i+1 reads start only after cycle i writes have all returned
		for _, workerResult := range cycle.Workers {
			if report.PhaseRead == workerResult.Phase {
				assert.False(t, previousWriteEnd.After(workerResult.StartedAt), "cycle %d", cycle.CycleIndex)
			}
		}
		for _, workerResult := range cycle.Workers {
			if report.PhaseWrite == workerResult.Phase && workerResult.EndedAt.After(previousWriteEnd) {
				previousWriteEnd = workerResult.EndedAt
			}
		}
	}
}

func TestRunSequentialLegacy(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	queueDepth := 4

	workloadReport := RunSequential(env.testFilePath, testFileSize, 2, uint32(queueDepth), SequentialOptions{}, nil)

	assert.Equal(Sequential, workloadReport.Name)
	require.Equal(t, 2, len(workloadReport.Cycles))

	for i := range workloadReport.Cycles {
		cycle := &workloadReport.Cycles[i]
		checkSequentialCycle(t, cycle, queueDepth)
		for _, workerResult := range cycle.Workers {
			assert.Equal(uint64(0), workerResult.Offset)
			assert.Equal(uint64(testFileSize/queueDepth), workerResult.Bytes)
		}
	}

	// Writes never truncate or extend the test file
	fileInfo, err := os.Stat(env.testFilePath)
	require.NoError(t, err)
	assert.Equal(int64(testFileSize), fileInfo.Size())

	assert.True(env.log.Contains("last 3 bytes are not read or written"))
}

func TestRunSequentialRangePartitioned(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	queueDepth := 3

	workloadReport := RunSequential(env.testFilePath, testFileSize, 1, uint32(queueDepth), SequentialOptions{RangePartitioned: true, SyncWrites: true}, nil)

	require.Equal(t, 1, len(workloadReport.Cycles))
	cycle := &workloadReport.Cycles[0]
	checkSequentialCycle(t, cycle, queueDepth)

	assert.Equal(uint64(testFileSize), cycle.PhaseBytes(report.PhaseRead))
	assert.Equal(uint64(testFileSize), cycle.PhaseBytes(report.PhaseWrite))

	share := uint64(testFileSize / queueDepth)
	for _, workerResult := range cycle.Workers {
		assert.Equal(uint64(workerResult.Worker)*share, workerResult.Offset)
	}

	fileInfo, err := os.Stat(env.testFilePath)
	require.NoError(t, err)
	assert.Equal(int64(testFileSize), fileInfo.Size())

	assert.False(env.log.Contains("are not read or written"))
}

func TestRunSequentialShortFile(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	// An existing file shorter than the configured size is read up to its end
	shortPath := filepath.Join(env.primaryPath, "short_file")
	require.NoError(t, ioutil.WriteFile(shortPath, make([]byte, 1024), 0644))

	workloadReport := RunSequential(shortPath, 4*ChunkSize, 1, 2, SequentialOptions{RangePartitioned: true}, nil)

	cycle := &workloadReport.Cycles[0]
	checkSequentialCycle(t, cycle, 2)
	assert.Equal(uint64(1024), cycle.PhaseBytes(report.PhaseRead))
	assert.Equal(uint64(4*ChunkSize), cycle.PhaseBytes(report.PhaseWrite))
}

func TestRunSequentialWorkerFailures(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	workloadReport := RunSequential(filepath.Join(env.primaryPath, "missing"), testFileSize, 2, 2, SequentialOptions{}, nil)

	require.Equal(t, 2, len(workloadReport.Cycles))
	for _, cycle := range workloadReport.Cycles {
		require.Equal(t, 4, len(cycle.Workers))
		for _, workerResult := range cycle.Workers {
			assert.False(workerResult.Succeeded)
			assert.Contains(workerResult.ErrorDetail, "TransferError")
		}
	}

	assert.Equal(2, workloadReport.FailedCycles())
	assert.True(env.log.Contains("workers failed"))
}
