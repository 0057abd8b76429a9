// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package stats accumulates benchmark measurements as Prometheus metrics.
//
// Measurements are kept in a private registry created by Up() and may be
// exported once the run is over via WriteTextfile() in the node_exporter
// textfile collector format.
//
package stats

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/traveler/report"
)

func resultLabel(succeeded bool) string {
	if succeeded {
		return "ok"
	}
	return "error"
}

// RecordTransfer observes one transfer performed by workload
func RecordTransfer(workload string, transferResult *report.TransferResult) {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return
	}

	globals.transferDuration.WithLabelValues(workload, resultLabel(transferResult.Succeeded)).Observe(transferResult.DurationSeconds)

	if transferResult.Succeeded {
		globals.transferBytes.WithLabelValues(workload).Add(float64(transferResult.Bytes))
	} else {
		globals.failures.WithLabelValues(workload).Inc()
	}
}

// RecordWorker observes one sequential I/O worker
func RecordWorker(workload string, workerResult *report.WorkerResult) {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return
	}

	globals.workerDuration.WithLabelValues(workerResult.Phase, resultLabel(workerResult.Succeeded)).Observe(workerResult.DurationSeconds)
	globals.workerBytes.WithLabelValues(workerResult.Phase).Add(float64(workerResult.Bytes))

	if !workerResult.Succeeded {
		globals.failures.WithLabelValues(workload).Inc()
	}
}

// RecordPhase observes the wall clock duration of one sequential I/O phase
func RecordPhase(phase string, seconds float64) {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return
	}

	globals.phaseDuration.WithLabelValues(phase).Observe(seconds)
}

// RecordCycle observes the wall clock duration of one workload cycle
func RecordCycle(workload string, seconds float64) {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return
	}

	globals.cycleDuration.WithLabelValues(workload).Observe(seconds)
}

// RecordRun sets the run-level gauges from a finished RunReport
func RecordRun(runReport *report.RunReport, succeeded bool) {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return
	}

	globals.testFileBytes.Set(float64(runReport.FileSizeBytes))
	globals.queueDepth.Set(float64(runReport.QueueDepth))
	globals.runDurationSeconds.Set(runReport.DurationSeconds())

	if succeeded {
		globals.lastRunSuccessUnixTime.Set(float64(runReport.EndedAt.UnixNano()) / float64(time.Second))
	}
}

// Gatherer returns the registry holding the current run's metrics, or nil before Up()
func Gatherer() prometheus.Gatherer {
	globals.Lock()
	defer globals.Unlock()

	if nil == globals.registry {
		return nil
	}

	return globals.registry
}

// WriteTextfile writes every metric to path in the Prometheus text exposition format
func WriteTextfile(path string) (err error) {
	gatherer := Gatherer()
	if nil == gatherer {
		err = fmt.Errorf("stats.WriteTextfile() called before stats.Up()")
		return
	}

	err = prometheus.WriteToTextfile(path, gatherer)

	return
}
