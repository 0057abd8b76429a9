// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package stats

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/traveler/conf"
)

const defaultNamespace = "traveler"

type globalsStruct struct {
	sync.Mutex
	namespace              string
	registry               *prometheus.Registry
	transferDuration       *prometheus.HistogramVec // labels: workload, result
	transferBytes          *prometheus.CounterVec   // labels: workload
	workerDuration         *prometheus.HistogramVec // labels: phase, result
	workerBytes            *prometheus.CounterVec   // labels: phase
	phaseDuration          *prometheus.HistogramVec // labels: phase
	cycleDuration          *prometheus.HistogramVec // labels: workload
	failures               *prometheus.CounterVec   // labels: workload
	testFileBytes          prometheus.Gauge
	queueDepth             prometheus.Gauge
	runDurationSeconds     prometheus.Gauge
	lastRunSuccessUnixTime prometheus.Gauge
}

var globals globalsStruct

// durationBuckets spans 1ms to roughly 35 minutes
var durationBuckets = prometheus.ExponentialBuckets(0.001, 2, 22)

// Up creates a fresh registry for one run
//
// [Metrics]Namespace optionally replaces the "traveler" metric name prefix.
//
func Up(confMap conf.ConfMap) (err error) {
	namespace, err := confMap.FetchOptionValueString("Metrics", "Namespace")
	if nil != err {
		namespace = defaultNamespace
	}

	globals.Lock()
	defer globals.Unlock()

	globals.namespace = namespace
	globals.registry = prometheus.NewRegistry()

	globals.transferDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transfer_duration_seconds",
		Help:      "Duration of each file transfer, content and metadata.",
		Buckets:   durationBuckets,
	}, []string{"workload", "result"})

	globals.transferBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_bytes_total",
		Help:      "Bytes copied by successful file transfers.",
	}, []string{"workload"})

	globals.workerDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "worker_duration_seconds",
		Help:      "Duration of each sequential I/O worker.",
		Buckets:   durationBuckets,
	}, []string{"phase", "result"})

	globals.workerBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "worker_bytes_total",
		Help:      "Bytes read or written by sequential I/O workers.",
	}, []string{"phase"})

	globals.phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "phase_duration_seconds",
		Help:      "Wall clock duration of each sequential I/O phase.",
		Buckets:   durationBuckets,
	}, []string{"phase"})

	globals.cycleDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "cycle_duration_seconds",
		Help:      "Wall clock duration of each workload cycle.",
		Buckets:   durationBuckets,
	}, []string{"workload"})

	globals.failures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Failed transfers and workers.",
	}, []string{"workload"})

	globals.testFileBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "test_file_bytes",
		Help:      "Configured size of the test file.",
	})

	globals.queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Configured number of sequential I/O workers per phase.",
	})

	globals.runDurationSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall clock duration of the whole run.",
	})

	globals.lastRunSuccessUnixTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_success_timestamp_seconds",
		Help:      "Unix time at which the last run reached Done.",
	})

	globals.registry.MustRegister(
		globals.transferDuration,
		globals.transferBytes,
		globals.workerDuration,
		globals.workerBytes,
		globals.phaseDuration,
		globals.cycleDuration,
		globals.failures,
		globals.testFileBytes,
		globals.queueDepth,
		globals.runDurationSeconds,
		globals.lastRunSuccessUnixTime,
	)

	err = nil
	return
}

// Down drops the registry; subsequent Record calls are no-ops until the next Up
func Down() (err error) {
	globals.Lock()
	globals.registry = nil
	globals.Unlock()

	err = nil
	return
}
