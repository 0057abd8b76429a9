// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package travelerpkg drives one benchmark run through its states:
//
//   Idle -> Validating -> Provisioning -> Executing -> Cleaning -> Done
//
// Any state may instead end in Failed. Validation failures create nothing.
// Once the test file exists it is removed during Cleaning whatever happens
// while the workloads execute.
//
// The run is configured by a conf.ConfMap carrying these sections:
//
//   [Traveler]
//   PrimaryPath:      /mnt/nvme0
//   SecondaryPath:    /mnt/nvme1
//   FileSize:         50GiB
//   Cycles:           1
//   QueueDepth:       32
//   Workloads:        all          # or any of internal, external, sequential
//   TestFileName:     test_file
//   RangePartitioned: false
//   SyncWrites:       false
//   Preallocate:      false
//
//   [Report]
//   FilePath:         # optional YAML run report
//
//   [Metrics]
//   Namespace:        traveler
//   TextfilePath:     # optional Prometheus textfile
//
//   [History]
//   DatabasePath:     # optional SQLite run history
//
package travelerpkg

import (
	"github.com/NVIDIA/traveler/conf"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
)

// Run performs one benchmark run described by confMap
//
// Every state transition is logged and emitted to sink (which may be nil).
// runReport is always returned, with State set to "Done" or "Failed"; err is
// non-nil exactly when the run Failed and carries a blunder.Kind naming the
// stage that failed. Individual failed cycles do not fail the run; they are
// recorded in runReport.
//
func Run(confMap conf.ConfMap, sink progress.Sink) (runReport *report.RunReport, err error) {
	runReport, err = doRun(confMap, sink)
	return
}
