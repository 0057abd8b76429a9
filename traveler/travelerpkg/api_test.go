// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package travelerpkg

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/traveler/blunder"
	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/history"
	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/testfile"
	"github.com/NVIDIA/traveler/workload"
)

type testEnv struct {
	primaryPath   string
	secondaryPath string
	outputPath    string
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
		outputPath:    t.TempDir(),
	}

	env.log.Init(256)
	logger.AddLogTarget(env.log)

	return
}

func testTeardown(t *testing.T) {
	err := logger.Down()
	if nil != err {
		t.Fatalf("logger.Down() failed: %v", err)
	}
}

func (env *testEnv) confMap(t *testing.T, extra ...string) (confMap conf.ConfMap) {
	confStrings := []string{
		"Traveler.PrimaryPath=" + env.primaryPath,
		"Traveler.SecondaryPath=" + env.secondaryPath,
		"Traveler.FileSize=4MiB",
		"Traveler.QueueDepth=4",
	}

	confMap, err := conf.MakeConfMapFromStrings(append(confStrings, extra...))
	if nil != err {
		t.Fatalf("conf.MakeConfMapFromStrings() failed: %v", err)
	}

	return
}

func dirEntries(t *testing.T, dir string) (names []string) {
	fileInfos, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	for _, fileInfo := range fileInfos {
		names = append(names, fileInfo.Name())
	}
	return
}

func TestRunAllWorkloads(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	reportPath := filepath.Join(env.outputPath, "report.yaml")
	metricsPath := filepath.Join(env.outputPath, "traveler.prom")
	historyPath := filepath.Join(env.outputPath, "history.db")

	runReport, err := Run(env.confMap(t,
		"Traveler.Cycles=2",
		"Traveler.RangePartitioned=true",
		"Report.FilePath="+reportPath,
		"Metrics.TextfilePath="+metricsPath,
		"History.DatabasePath="+historyPath,
	), &env.recorder)
	require.NoError(t, err)

	assert.Equal(string(progress.Done), runReport.State)
	assert.Equal([]progress.Phase{
		progress.Validating,
		progress.Provisioning,
		progress.Executing,
		progress.Cleaning,
		progress.Done,
	}, env.recorder.Phases())

	// Test file and every copy are gone
	assert.Empty(dirEntries(t, env.primaryPath))
	assert.Empty(dirEntries(t, env.secondaryPath))

	require.Equal(t, 3, len(runReport.Workloads))
	for i, name := range workload.Names {
		assert.Equal(name, runReport.Workloads[i].Name)
		assert.Equal(2, len(runReport.Workloads[i].Cycles))
		assert.Equal(0, runReport.Workloads[i].FailedCycles())
	}

	sequential, ok := runReport.Workload(workload.Sequential)
	require.True(t, ok)
	assert.Equal(uint64(4<<20), sequential.Cycles[0].PhaseBytes(report.PhaseRead))
	assert.Equal(uint64(4<<20), sequential.Cycles[0].PhaseBytes(report.PhaseWrite))

	assert.True(env.log.Contains("Cycle 2 of 2"))
	assert.True(env.log.Contains("Test file created successfully."))

	readBack, err := report.ReadYAML(reportPath)
	require.NoError(t, err)
	assert.Equal(runReport.RunID, readBack.RunID)
	assert.Equal("Done", readBack.State)
	assert.Equal(uint32(4), readBack.QueueDepth)

	metrics, err := ioutil.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.True(strings.Contains(string(metrics), "traveler_run_duration_seconds"))
	assert.True(strings.Contains(string(metrics), "traveler_last_run_success_timestamp_seconds"))

	store, err := history.Open(historyPath)
	require.NoError(t, err)
	defer store.Close()

	run, err := store.Get(runReport.RunID)
	require.NoError(t, err)
	assert.Equal("Done", run.State)
	assert.Equal(3, len(run.Workloads))
	assert.Equal(6, len(run.CycleRows))
}

func TestRunExistingTestFile(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	testFilePath := filepath.Join(env.primaryPath, "existing")
	require.NoError(t, ioutil.WriteFile(testFilePath, make([]byte, 8192), 0644))

	runReport, err := Run(env.confMap(t,
		"Traveler.Workloads=sequential",
		"Traveler.TestFileName=existing",
	), nil)
	require.NoError(t, err)

	assert.Equal("Done", runReport.State)
	assert.True(env.log.Contains("Using existing file"))

	require.Equal(t, 1, len(runReport.Workloads))
	assert.Equal(workload.Sequential, runReport.Workloads[0].Name)
	assert.Equal(0, runReport.Workloads[0].FailedCycles())

	_, err = os.Stat(testFilePath)
	assert.True(os.IsNotExist(err))
}

func TestRunValidationFailure(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	reportPath := filepath.Join(env.outputPath, "report.yaml")

	missingPath := filepath.Join(env.primaryPath, "missing")

	confMap := env.confMap(t, "Report.FilePath="+reportPath)
	require.NoError(t, confMap.UpdateFromString("Traveler.PrimaryPath="+missingPath))

	runReport, err := Run(confMap, &env.recorder)
	require.NotNil(t, err)

	assert.True(blunder.Is(err, blunder.ValidationError))
	assert.Equal("Failed", runReport.State)
	assert.Equal([]progress.Phase{progress.Validating, progress.Failed}, env.recorder.Phases())
	assert.True(env.log.Contains("Primary SSD path does not exist: " + missingPath))

	// Nothing is created by a rejected run
	assert.Empty(dirEntries(t, env.primaryPath))
	assert.Empty(dirEntries(t, env.outputPath))
}

func TestRunExternalWithoutSecondary(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	confMap := env.confMap(t, "Traveler.Workloads=external")
	require.NoError(t, confMap.UpdateFromString("Traveler.SecondaryPath="))

	_, err := Run(confMap, &env.recorder)
	require.NotNil(t, err)
	assert.True(blunder.Is(err, blunder.ValidationError))
	assert.True(env.log.Contains("Secondary SSD path is required for external test."))

	// The same configuration is fine when external is not selected
	confMap = env.confMap(t, "Traveler.Workloads=internal")
	require.NoError(t, confMap.UpdateFromString("Traveler.SecondaryPath="))

	runReport, err := Run(confMap, nil)
	require.NoError(t, err)
	assert.Equal(1, len(runReport.Workloads))
}

func TestRunSecondaryNotADirectory(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	notADirectory := filepath.Join(env.outputPath, "plain")
	require.NoError(t, ioutil.WriteFile(notADirectory, []byte("x"), 0644))

	confMap := env.confMap(t)
	require.NoError(t, confMap.UpdateFromString("Traveler.SecondaryPath="+notADirectory))

	_, err := Run(confMap, nil)
	require.NotNil(t, err)
	assert.True(t, blunder.Is(err, blunder.ValidationError))
	assert.True(t, env.log.Contains("Secondary SSD path is not a directory"))
}

func TestRunProvisioningFailure(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	reportPath := filepath.Join(env.outputPath, "report.yaml")

	// Larger than any file offset can address
	confMap := env.confMap(t, "Report.FilePath="+reportPath)
	require.NoError(t, confMap.UpdateFromString("Traveler.FileSize=10EiB"))

	runReport, err := Run(confMap, &env.recorder)
	require.NotNil(t, err)

	assert.True(blunder.Is(err, blunder.ProvisioningError))
	assert.Equal("Failed", runReport.State)
	assert.Equal([]progress.Phase{progress.Validating, progress.Provisioning, progress.Failed}, env.recorder.Phases())
	assert.Empty(runReport.Workloads)
	assert.Empty(dirEntries(t, env.primaryPath))

	// The report of a run that got as far as provisioning is still written
	readBack, err := report.ReadYAML(reportPath)
	require.NoError(t, err)
	assert.Equal("Failed", readBack.State)
}

func TestRunFailedCyclesStillDone(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	// A directory squatting on the outbound copy name makes every external cycle fail
	require.NoError(t, os.Mkdir(filepath.Join(env.secondaryPath, workload.ExternalCopyName), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(env.secondaryPath, workload.ExternalCopyName, "keep"), []byte("x"), 0644))

	runReport, err := Run(env.confMap(t, "Traveler.Workloads=external"), nil)
	require.NoError(t, err)

	assert.Equal("Done", runReport.State)
	require.Equal(t, 1, len(runReport.Workloads))
	assert.Equal(1, runReport.Workloads[0].FailedCycles())
	assert.True(env.log.Contains("had 1 failed cycle(s) of 1"))

	_, err = os.Stat(filepath.Join(env.primaryPath, testfile.DefaultName))
	assert.True(os.IsNotExist(err))
}

func TestRunWorkloadPanic(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	savedRunner := workloadRunners[workload.Sequential]
	workloadRunners[workload.Sequential] = func(run *runStruct, testFilePath string) *report.WorkloadReport {
		panic("worker bookkeeping corrupted")
	}
	defer func() {
		workloadRunners[workload.Sequential] = savedRunner
	}()

	runReport, err := Run(env.confMap(t, "Traveler.Workloads=internal,sequential"), &env.recorder)
	require.NotNil(t, err)

	assert.True(blunder.Is(err, blunder.TransferError))
	assert.Equal("Failed", runReport.State)
	assert.Equal([]progress.Phase{
		progress.Validating,
		progress.Provisioning,
		progress.Executing,
		progress.Cleaning,
		progress.Failed,
	}, env.recorder.Phases())
	assert.True(env.log.Contains("worker bookkeeping corrupted"))

	// Internal finished before the panic and is still reported
	require.Equal(t, 1, len(runReport.Workloads))
	assert.Equal(workload.Internal, runReport.Workloads[0].Name)

	assert.Empty(dirEntries(t, env.primaryPath))
}

func TestRunTracesFailureOrigin(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	confMap := env.confMap(t, "Logging.LogToConsole=false", "Logging.TraceEnabled=true")
	require.NoError(t, logger.Up(confMap))
	logger.AddLogTarget(env.log)

	require.NoError(t, confMap.UpdateFromString("Traveler.PrimaryPath="+filepath.Join(env.primaryPath, "missing")))

	_, err := Run(confMap, nil)
	require.NotNil(t, err)
	assert.True(t, env.log.Contains("Failure raised at"))
	assert.True(t, env.log.Contains(blunder.SourceLine(err)))
}

func TestRunPathsWithCommas(t *testing.T) {
	env := testSetup(t)
	defer testTeardown(t)

	assert := assert.New(t)

	primaryPath := filepath.Join(env.primaryPath, "ssd,1")
	secondaryPath := filepath.Join(env.secondaryPath, "ssd,2")
	reportPath := filepath.Join(env.outputPath, "run,1.yaml")
	require.NoError(t, os.Mkdir(primaryPath, 0755))
	require.NoError(t, os.Mkdir(secondaryPath, 0755))

	confMap := env.confMap(t, "Traveler.Workloads=all", "Report.FilePath="+reportPath)
	require.NoError(t, confMap.UpdateFromString("Traveler.PrimaryPath="+primaryPath))
	require.NoError(t, confMap.UpdateFromString("Traveler.SecondaryPath="+secondaryPath))

	runReport, err := Run(confMap, nil)
	require.NoError(t, err)

	assert.Equal("Done", runReport.State)
	assert.Equal(primaryPath, runReport.PrimaryPath)
	assert.Equal(secondaryPath, runReport.SecondaryPath)
	for i := range runReport.Workloads {
		assert.Equal(0, runReport.Workloads[i].FailedCycles())
	}

	_, err = os.Stat(reportPath)
	assert.NoError(err)
	assert.Empty(dirEntries(t, primaryPath))
	assert.Empty(dirEntries(t, secondaryPath))
}

func TestParseConfig(t *testing.T) {
	assert := assert.New(t)

	confMap, err := conf.MakeConfMapFromStrings([]string{"Traveler.PrimaryPath=/mnt/a"})
	require.NoError(t, err)

	config, err := ParseConfig(confMap)
	require.NoError(t, err)
	assert.Equal("/mnt/a", config.PrimaryPath)
	assert.Equal("", config.SecondaryPath)
	assert.Equal(uint64(50<<30), config.FileSizeBytes)
	assert.Equal(uint32(DefaultCycles), config.Cycles)
	assert.Equal(uint32(DefaultQueueDepth), config.QueueDepth)
	assert.Equal(workload.Names, config.Workloads)
	assert.Equal(filepath.Join("/mnt/a", testfile.DefaultName), config.TestFilePath())
	assert.False(config.RangePartitioned)
	assert.False(config.SyncWrites)
	assert.False(config.Preallocate)

	confMap, err = conf.MakeConfMapFromStrings([]string{
		"Traveler.PrimaryPath=/mnt/a",
		"Traveler.FileSize=1GiB",
		"Traveler.Workloads=sequential,internal",
		"Traveler.SyncWrites=yes",
	})
	require.NoError(t, err)

	config, err = ParseConfig(confMap)
	require.NoError(t, err)
	assert.Equal(uint64(1<<30), config.FileSizeBytes)
	assert.Equal([]string{workload.Internal, workload.Sequential}, config.Workloads)
	assert.True(config.Selected(workload.Sequential))
	assert.False(config.Selected(workload.External))
	assert.True(config.SyncWrites)

	confMap, err = conf.MakeConfMapFromStrings([]string{"Traveler.PrimaryPath=/mnt/a", "Traveler.Workloads=both"})
	require.NoError(t, err)
	config, err = ParseConfig(confMap)
	require.NoError(t, err)
	assert.Equal(workload.Names, config.Workloads)

	for _, bad := range [][]string{
		{},
		{"Traveler.PrimaryPath="},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.Cycles=0"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.QueueDepth=0"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.QueueDepth=many"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.FileSize=huge"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.Workloads=random"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.TestFileName=../escape"},
		{"Traveler.PrimaryPath=/mnt/a", "Traveler.SyncWrites=maybe"},
	} {
		confMap, err = conf.MakeConfMapFromStrings(bad)
		require.NoError(t, err)

		_, err = ParseConfig(confMap)
		if assert.NotNil(err, "%v should be rejected", bad) {
			assert.True(blunder.Is(err, blunder.ValidationError), "%v: %v", bad, err)
		}
	}
}
