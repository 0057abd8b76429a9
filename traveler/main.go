// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// The traveler program is the command line form invoking the travelerpkg package's Run() function.
package main

import (
	"fmt"
	"os"
	"regexp"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/traveler/travelerpkg"
)

const (
	exitDone    = 0
	exitFailed  = 1
	exitUsage   = 2
	confEnvName = "TRAVELER_CONF"
)

type flagsStruct struct {
	secondaryPath    string
	fileSizeGB       uint64
	test             string
	cycles           uint32
	queueDepth       uint32
	logFile          string
	rangePartitioned bool
	syncWrites       bool
	preallocate      bool
	reportFile       string
	metricsFile      string
	historyDB        string
	confFile         string
	console          bool
}

// flagBinding maps a flag onto the conf option it sets
type flagBinding struct {
	flagName    string
	sectionName string
	optionName  string
	value       func(flags *flagsStruct) string
}

var flagBindings = []flagBinding{
	{"secondary_ssd_path", "Traveler", "SecondaryPath", func(flags *flagsStruct) string { return flags.secondaryPath }},
	{"file-size", "Traveler", "FileSize", func(flags *flagsStruct) string { return fmt.Sprintf("%dGiB", flags.fileSizeGB) }},
	{"test", "Traveler", "Workloads", func(flags *flagsStruct) string { return flags.test }},
	{"cycles", "Traveler", "Cycles", func(flags *flagsStruct) string { return fmt.Sprintf("%d", flags.cycles) }},
	{"queue-depth", "Traveler", "QueueDepth", func(flags *flagsStruct) string { return fmt.Sprintf("%d", flags.queueDepth) }},
	{"range-partitioned", "Traveler", "RangePartitioned", func(flags *flagsStruct) string { return fmt.Sprintf("%v", flags.rangePartitioned) }},
	{"sync-writes", "Traveler", "SyncWrites", func(flags *flagsStruct) string { return fmt.Sprintf("%v", flags.syncWrites) }},
	{"preallocate", "Traveler", "Preallocate", func(flags *flagsStruct) string { return fmt.Sprintf("%v", flags.preallocate) }},
	{"log-file", "Logging", "LogFilePath", func(flags *flagsStruct) string { return flags.logFile }},
	{"console", "Logging", "LogToConsole", func(flags *flagsStruct) string { return fmt.Sprintf("%v", flags.console) }},
	{"report-file", "Report", "FilePath", func(flags *flagsStruct) string { return flags.reportFile }},
	{"metrics-file", "Metrics", "TextfilePath", func(flags *flagsStruct) string { return flags.metricsFile }},
	{"history-db", "History", "DatabasePath", func(flags *flagsStruct) string { return flags.historyDB }},
}

// overrideRE recognizes a trailing Section.Option=value (or Section.Option:value) argument
var overrideRE = regexp.MustCompile(`\A[A-Za-z]\w*\.[A-Za-z]\w*[=:]`)

// usageError marks failures that should exit with exitUsage
type usageError struct {
	err error
}

func (e usageError) Error() string {
	return e.err.Error()
}

func usageErrorf(format string, args ...interface{}) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func newRootCmd(flags *flagsStruct, exitCode *int) (rootCmd *cobra.Command) {
	rootCmd = &cobra.Command{
		Use:   "traveler <primary_ssd_path> [Section.Option=value]*",
		Short: "Measure file transfer and concurrent sequential I/O throughput of SSD-backed file systems",
		Long: `traveler creates a large test file on the primary SSD path, times internal
copies, round trips to a secondary SSD path and concurrent sequential reads
and writes of it, reports the results, and then deletes the test file.`,
		Example: `  traveler /mnt/nvme0 --secondary_ssd_path /mnt/nvme1 --file-size 10 --history-db runs.db
  traveler history recent --history-db runs.db
  traveler report run.yaml`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			*exitCode, err = runE(cmd.Flags(), flags, args)
			return
		},
	}

	rootCmd.Flags().StringVar(&flags.secondaryPath, "secondary_ssd_path", "", "secondary SSD path, required by the external test")
	rootCmd.Flags().Uint64Var(&flags.fileSizeGB, "file-size", travelerpkg.DefaultFileSizeGB, "test file size in GB")
	rootCmd.Flags().StringVar(&flags.test, "test", "all", "workloads to run: internal, external, sequential, all or both (comma separated)")
	rootCmd.Flags().Uint32Var(&flags.cycles, "cycles", travelerpkg.DefaultCycles, "cycles per workload")
	rootCmd.Flags().Uint32Var(&flags.queueDepth, "queue-depth", travelerpkg.DefaultQueueDepth, "concurrent workers in the sequential test")
	rootCmd.Flags().StringVar(&flags.logFile, "log-file", "test_log.log", "log file appended to")
	rootCmd.Flags().BoolVar(&flags.rangePartitioned, "range-partitioned", false, "give each sequential worker its own range of the test file")
	rootCmd.Flags().BoolVar(&flags.syncWrites, "sync-writes", false, "fsync each sequential writer before its timing stops")
	rootCmd.Flags().BoolVar(&flags.preallocate, "preallocate", false, "allocate the test file's blocks up front")
	rootCmd.Flags().StringVar(&flags.reportFile, "report-file", "", "write a YAML run report here")
	rootCmd.Flags().StringVar(&flags.metricsFile, "metrics-file", "", "write a Prometheus textfile here")
	rootCmd.Flags().StringVar(&flags.historyDB, "history-db", "", "record the run in this SQLite database")
	rootCmd.Flags().StringVar(&flags.confFile, "conf", os.Getenv(confEnvName), "optional .conf file; flags and overrides take precedence (default $"+confEnvName+")")
	rootCmd.Flags().BoolVar(&flags.console, "console", true, "also log to stderr")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	rootCmd.AddCommand(newHistoryCmd(), newReportCmd())

	return
}

// buildConfMap layers the conf file, then flags, then trailing overrides
//
// A flag left at its default does not replace a value the conf file supplied.
//
func buildConfMap(flagSet *pflag.FlagSet, flags *flagsStruct, args []string) (confMap conf.ConfMap, err error) {
	var (
		overrides   []string
		primaryPath string
	)

	if "" == flags.confFile {
		confMap = conf.MakeConfMap()
	} else {
		confMap, err = conf.MakeConfMapFromFile(flags.confFile)
		if nil != err {
			err = usageErrorf("reading --conf %s failed: %v", flags.confFile, err)
			return
		}
	}

	for _, arg := range args {
		if overrideRE.MatchString(arg) {
			overrides = append(overrides, arg)
			continue
		}
		if "" != primaryPath {
			err = usageErrorf("unexpected argument %q (primary SSD path already given as %q)", arg, primaryPath)
			return
		}
		primaryPath = arg
	}

	if "" != primaryPath {
		err = confMap.UpdateFromString("Traveler.PrimaryPath=" + primaryPath)
		if nil != err {
			err = usageError{err: err}
			return
		}
	}

	for _, binding := range flagBindings {
		if !flagSet.Changed(binding.flagName) && (nil != confMap.VerifyOptionIsMissing(binding.sectionName, binding.optionName)) {
			continue
		}
		err = confMap.UpdateFromString(binding.sectionName + "." + binding.optionName + "=" + binding.value(flags))
		if nil != err {
			err = usageError{err: err}
			return
		}
	}

	err = confMap.UpdateFromStrings(overrides)
	if nil != err {
		err = usageError{err: err}
		return
	}

	if nil != confMap.VerifyOptionIsMissing("Traveler", "PrimaryPath") {
		return
	}

	err = usageErrorf("primary SSD path is required")

	return
}

func runE(flagSet *pflag.FlagSet, flags *flagsStruct, args []string) (exitCode int, err error) {
	var (
		runReport *report.RunReport
	)

	confMap, err := buildConfMap(flagSet, flags, args)
	if nil != err {
		return
	}

	err = logger.Up(confMap)
	if nil != err {
		fmt.Fprintf(os.Stderr, "traveler: %v\n", err)
		exitCode = exitFailed
		err = nil
		return
	}
	defer func() {
		_ = logger.Down()
	}()

	runReport, err = travelerpkg.Run(confMap, nil)

	report.WriteSummary(runReport, os.Stdout)

	if nil != err {
		exitCode = exitFailed
		err = nil
		return
	}

	exitCode = exitDone

	return
}

func main() {
	var (
		exitCode int
		flags    flagsStruct
	)

	// A missing .env is normal
	_ = godotenv.Load()

	rootCmd := newRootCmd(&flags, &exitCode)

	err := rootCmd.Execute()
	if nil != err {
		fmt.Fprintf(os.Stderr, "traveler: %v\n", err)
		if _, ok := err.(runError); ok {
			os.Exit(exitFailed)
		}
		if _, ok := err.(usageError); ok {
			fmt.Fprintf(os.Stderr, "%s", rootCmd.UsageString())
		}
		os.Exit(exitUsage)
	}

	os.Exit(exitCode)
}
