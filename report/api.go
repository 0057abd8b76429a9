// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package report holds the results of a benchmark run.
//
// Results are built bottom-up: a TransferResult or WorkerResult per operation,
// a CycleReport per cycle, a WorkloadReport per workload and one RunReport per
// run. Only the orchestrating goroutine appends to a RunReport; once the run
// finishes the report is read-only and may be written out as YAML, as a
// summary table, as metrics or as a history record.
//
package report

import (
	"time"

	"github.com/google/uuid"
)

// Phases of the concurrent sequential workload
const (
	PhaseRead  = "read"
	PhaseWrite = "write"
)

// TransferResult is the outcome of copying one file to another
type TransferResult struct {
	Source          string  `yaml:"source"`
	Destination     string  `yaml:"destination"`
	DurationSeconds float64 `yaml:"durationSeconds"`
	Bytes           uint64  `yaml:"bytes"`
	Succeeded       bool    `yaml:"succeeded"`
	ErrorDetail     string  `yaml:"errorDetail,omitempty"`
}

// WorkerResult is the outcome of one worker in one phase of a sequential cycle
type WorkerResult struct {
	Worker          int       `yaml:"worker"`
	Phase           string    `yaml:"phase"`
	Offset          uint64    `yaml:"offset"`
	Bytes           uint64    `yaml:"bytes"`
	DurationSeconds float64   `yaml:"durationSeconds"`
	StartedAt       time.Time `yaml:"startedAt"`
	EndedAt         time.Time `yaml:"endedAt"`
	Succeeded       bool      `yaml:"succeeded"`
	ErrorDetail     string    `yaml:"errorDetail,omitempty"`
}

// CycleReport holds the results of one cycle of a workload
//
// Transfer workloads fill in Transfers in the order they were attempted. The
// sequential workload fills in Workers (read phase first, then write phase)
// along with the two phase durations.
//
type CycleReport struct {
	CycleIndex           int              `yaml:"cycleIndex"`
	Transfers            []TransferResult `yaml:"transfers,omitempty"`
	Workers              []WorkerResult   `yaml:"workers,omitempty"`
	CycleDurationSeconds float64          `yaml:"cycleDurationSeconds"`
	ReadPhaseSeconds     float64          `yaml:"readPhaseSeconds,omitempty"`
	WritePhaseSeconds    float64          `yaml:"writePhaseSeconds,omitempty"`
}

// Succeeded reports whether every transfer and worker in the cycle succeeded
func (cycle *CycleReport) Succeeded() bool {
	for _, transfer := range cycle.Transfers {
		if !transfer.Succeeded {
			return false
		}
	}
	for _, worker := range cycle.Workers {
		if !worker.Succeeded {
			return false
		}
	}
	return true
}

// PhaseBytes sums the bytes moved by successful workers of phase
func (cycle *CycleReport) PhaseBytes(phase string) (bytes uint64) {
	for _, worker := range cycle.Workers {
		if (phase == worker.Phase) && worker.Succeeded {
			bytes += worker.Bytes
		}
	}
	return
}

// TransferBytes sums the bytes moved by successful transfers
func (cycle *CycleReport) TransferBytes() (bytes uint64) {
	for _, transfer := range cycle.Transfers {
		if transfer.Succeeded {
			bytes += transfer.Bytes
		}
	}
	return
}

// WorkloadReport holds every cycle of one workload
type WorkloadReport struct {
	Name                 string        `yaml:"name"`
	Cycles               []CycleReport `yaml:"cycles"`
	TotalDurationSeconds float64       `yaml:"totalDurationSeconds"`
}

func NewWorkloadReport(name string, cycles uint32) (workloadReport *WorkloadReport) {
	workloadReport = &WorkloadReport{
		Name:   name,
		Cycles: make([]CycleReport, 0, cycles),
	}
	return
}

// AddCycle appends cycle and adds its duration to the workload total
func (workloadReport *WorkloadReport) AddCycle(cycle CycleReport) {
	workloadReport.Cycles = append(workloadReport.Cycles, cycle)
	workloadReport.TotalDurationSeconds += cycle.CycleDurationSeconds
}

// FailedCycles counts cycles containing at least one failed operation
func (workloadReport *WorkloadReport) FailedCycles() (failed int) {
	for i := range workloadReport.Cycles {
		if !workloadReport.Cycles[i].Succeeded() {
			failed++
		}
	}
	return
}

// RunReport holds every workload executed by one run
type RunReport struct {
	RunID         string           `yaml:"runID"`
	StartedAt     time.Time        `yaml:"startedAt"`
	EndedAt       time.Time        `yaml:"endedAt"`
	State         string           `yaml:"state"`
	PrimaryPath   string           `yaml:"primaryPath"`
	SecondaryPath string           `yaml:"secondaryPath,omitempty"`
	FileSizeBytes uint64           `yaml:"fileSizeBytes"`
	CyclesPerRun  uint32           `yaml:"cycles"`
	QueueDepth    uint32           `yaml:"queueDepth"`
	Workloads     []WorkloadReport `yaml:"workloads"`
}

// NewRunReport returns an empty RunReport stamped with a fresh run ID and start time
func NewRunReport() (runReport *RunReport) {
	runReport = &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Workloads: make([]WorkloadReport, 0, 3),
	}
	return
}

// AddWorkload appends workloadReport in execution order
func (runReport *RunReport) AddWorkload(workloadReport *WorkloadReport) {
	runReport.Workloads = append(runReport.Workloads, *workloadReport)
}

// Workload looks up a workload report by name
func (runReport *RunReport) Workload(name string) (workloadReport *WorkloadReport, ok bool) {
	for i := range runReport.Workloads {
		if name == runReport.Workloads[i].Name {
			workloadReport = &runReport.Workloads[i]
			ok = true
			return
		}
	}
	ok = false
	return
}

// DurationSeconds is the wall clock time from StartedAt to EndedAt
func (runReport *RunReport) DurationSeconds() float64 {
	if runReport.EndedAt.IsZero() {
		return 0
	}
	return runReport.EndedAt.Sub(runReport.StartedAt).Seconds()
}
