// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package travelerpkg

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/NVIDIA/traveler/blunder"
	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/testfile"
	"github.com/NVIDIA/traveler/utils"
	"github.com/NVIDIA/traveler/workload"
)

// Defaults applied when the corresponding [Traveler] option is absent
const (
	DefaultFileSizeGB = 50
	DefaultCycles     = 1
	DefaultQueueDepth = 32
)

// Config is the immutable description of one run
type Config struct {
	PrimaryPath   string
	SecondaryPath string // == "" means not supplied
	FileSizeBytes uint64
	Cycles        uint32
	QueueDepth    uint32
	Workloads     []string // subset of workload.Names, in execution order
	TestFileName  string

	RangePartitioned bool
	SyncWrites       bool
	Preallocate      bool

	ReportFilePath  string // == "" means disabled
	MetricsFilePath string // == "" means disabled
	HistoryDBPath   string // == "" means disabled
}

// Selected reports whether the named workload will run
func (config *Config) Selected(name string) bool {
	for _, selected := range config.Workloads {
		if name == selected {
			return true
		}
	}
	return false
}

// TestFilePath is where the test file is provisioned
func (config *Config) TestFilePath() string {
	return filepath.Join(config.PrimaryPath, config.TestFileName)
}

func validationErrorf(format string, args ...interface{}) error {
	return blunder.NewError(blunder.ValidationError, format, args...)
}

// fetchOptionalString returns "" for a missing or empty option
func fetchOptionalString(confMap conf.ConfMap, sectionName string, optionName string) (optionValue string, err error) {
	optionValue, err = confMap.FetchOptionValueString(sectionName, optionName)
	if nil == err {
		return
	}

	err = confMap.VerifyOptionValueIsEmpty(sectionName, optionName)
	if nil == err {
		optionValue = ""
		return
	}

	err = confMap.VerifyOptionIsMissing(sectionName, optionName)
	if nil == err {
		optionValue = ""
		return
	}

	err = validationErrorf("[%s]%s must be a single value or empty", sectionName, optionName)

	return
}

// fetchOptionalPath returns "" for a missing or empty option; commas are part of the path
func fetchOptionalPath(confMap conf.ConfMap, sectionName string, optionName string) (optionValue string, err error) {
	err = confMap.VerifyOptionIsMissing(sectionName, optionName)
	if nil == err {
		optionValue = ""
		return
	}

	optionValue, err = confMap.FetchOptionValuePath(sectionName, optionName)
	if nil != err {
		err = blunder.AddKind(err, blunder.ValidationError)
	}

	return
}

func fetchOptionalBool(confMap conf.ConfMap, sectionName string, optionName string) (optionValue bool, err error) {
	err = confMap.VerifyOptionIsMissing(sectionName, optionName)
	if nil == err {
		optionValue = false
		return
	}

	optionValue, err = confMap.FetchOptionValueBool(sectionName, optionName)
	if nil != err {
		err = blunder.AddKind(err, blunder.ValidationError)
	}

	return
}

func fetchOptionalUint32(confMap conf.ConfMap, sectionName string, optionName string, defaultValue uint32) (optionValue uint32, err error) {
	err = confMap.VerifyOptionIsMissing(sectionName, optionName)
	if nil == err {
		optionValue = defaultValue
		return
	}

	optionValue, err = confMap.FetchOptionValueUint32(sectionName, optionName)
	if nil != err {
		err = blunder.AddKind(err, blunder.ValidationError)
	}

	return
}

// parseWorkloads expands the names accepted by --test into workload.Names order
func parseWorkloads(names []string) (workloads []string, err error) {
	selected := make(map[string]bool)

	if 0 == len(names) {
		err = validationErrorf("[Traveler]Workloads must name at least one workload")
		return
	}

	for _, name := range names {
		switch strings.ToLower(name) {
		case "all", "both":
			for _, workloadName := range workload.Names {
				selected[workloadName] = true
			}
		case workload.Internal, workload.External, workload.Sequential:
			selected[strings.ToLower(name)] = true
		default:
			err = validationErrorf("unknown workload %q (expected internal, external, sequential or all)", name)
			return
		}
	}

	workloads = make([]string, 0, len(selected))

	for _, workloadName := range workload.Names {
		if selected[workloadName] {
			workloads = append(workloads, workloadName)
		}
	}

	return
}

// ParseConfig builds a Config from the [Traveler], [Report], [Metrics] and [History] sections
//
// Paths are not examined here; the run's Validating state does that. Every
// returned error is a blunder.ValidationError.
//
func ParseConfig(confMap conf.ConfMap) (config *Config, err error) {
	var (
		fileSize      string
		workloadNames []string
	)

	config = &Config{}

	config.PrimaryPath, err = fetchOptionalPath(confMap, "Traveler", "PrimaryPath")
	if nil != err {
		return
	}
	if "" == config.PrimaryPath {
		err = validationErrorf("[Traveler]PrimaryPath (the primary SSD path) is required")
		return
	}

	config.SecondaryPath, err = fetchOptionalPath(confMap, "Traveler", "SecondaryPath")
	if nil != err {
		return
	}

	fileSize, err = fetchOptionalString(confMap, "Traveler", "FileSize")
	if nil != err {
		return
	}
	if "" == fileSize {
		config.FileSizeBytes = DefaultFileSizeGB * utils.BytesPerGB
	} else {
		config.FileSizeBytes, err = humanize.ParseBytes(fileSize)
		if nil != err {
			err = validationErrorf("[Traveler]FileSize %q is not a size: %v", fileSize, err)
			return
		}
	}

	config.Cycles, err = fetchOptionalUint32(confMap, "Traveler", "Cycles", DefaultCycles)
	if nil != err {
		return
	}
	if 0 == config.Cycles {
		err = validationErrorf("[Traveler]Cycles must be at least 1")
		return
	}

	config.QueueDepth, err = fetchOptionalUint32(confMap, "Traveler", "QueueDepth", DefaultQueueDepth)
	if nil != err {
		return
	}
	if 0 == config.QueueDepth {
		err = validationErrorf("[Traveler]QueueDepth must be at least 1")
		return
	}

	workloadNames, err = confMap.FetchOptionValueStringSlice("Traveler", "Workloads")
	if nil != err {
		workloadNames = []string{"all"}
	}
	config.Workloads, err = parseWorkloads(workloadNames)
	if nil != err {
		return
	}

	config.TestFileName, err = fetchOptionalPath(confMap, "Traveler", "TestFileName")
	if nil != err {
		return
	}
	if "" == config.TestFileName {
		config.TestFileName = testfile.DefaultName
	}
	if (filepath.Base(config.TestFileName) != config.TestFileName) || ("." == config.TestFileName) || (".." == config.TestFileName) {
		err = validationErrorf("[Traveler]TestFileName %q must be a plain file name", config.TestFileName)
		return
	}

	config.RangePartitioned, err = fetchOptionalBool(confMap, "Traveler", "RangePartitioned")
	if nil != err {
		return
	}
	config.SyncWrites, err = fetchOptionalBool(confMap, "Traveler", "SyncWrites")
	if nil != err {
		return
	}
	config.Preallocate, err = fetchOptionalBool(confMap, "Traveler", "Preallocate")
	if nil != err {
		return
	}

	config.ReportFilePath, err = fetchOptionalPath(confMap, "Report", "FilePath")
	if nil != err {
		return
	}
	config.MetricsFilePath, err = fetchOptionalPath(confMap, "Metrics", "TextfilePath")
	if nil != err {
		return
	}
	config.HistoryDBPath, err = fetchOptionalPath(confMap, "History", "DatabasePath")
	if nil != err {
		return
	}

	err = nil
	return
}

// String renders the Config for the run log
func (config *Config) String() string {
	return fmt.Sprintf("primary=%q secondary=%q fileSize=%s cycles=%d queueDepth=%d workloads=%s rangePartitioned=%v syncWrites=%v preallocate=%v",
		config.PrimaryPath, config.SecondaryPath, utils.HumanBytes(config.FileSizeBytes), config.Cycles, config.QueueDepth,
		strings.Join(config.Workloads, ","), config.RangePartitioned, config.SyncWrites, config.Preallocate)
}
