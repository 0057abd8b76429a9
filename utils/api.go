// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package utils provides timing and formatting helpers shared by the workloads.
package utils

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// BytesPerGB is the multiplier applied to the --file-size flag (1 GiB)
const BytesPerGB = uint64(1024 * 1024 * 1024)

type Stopwatch struct {
	StartTime   time.Time
	StopTime    time.Time
	ElapsedTime time.Duration
	IsRunning   bool
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{StartTime: time.Now(), IsRunning: true}
}

// Stop freezes the stopwatch and returns the elapsed time
//
// Stopping a stopwatch that is not running returns the previously captured
// elapsed time unchanged.
//
func (sw *Stopwatch) Stop() time.Duration {
	if sw.IsRunning {
		sw.StopTime = time.Now()
		sw.ElapsedTime = sw.StopTime.Sub(sw.StartTime)
		sw.IsRunning = false
	}
	return sw.ElapsedTime
}

func (sw *Stopwatch) Elapsed() time.Duration {
	if !sw.IsRunning {
		return sw.ElapsedTime
	}

	return time.Since(sw.StartTime)
}

// BytesPerSecond returns bytes/seconds, or 0 when seconds is not positive
func BytesPerSecond(bytes uint64, seconds float64) float64 {
	if 0 >= seconds {
		return 0
	}
	return float64(bytes) / seconds
}

// HumanBytes renders a byte count in IEC units (e.g. "50 GiB")
func HumanBytes(bytes uint64) string {
	return humanize.IBytes(bytes)
}

// HumanRate renders a transfer rate in IEC units per second (e.g. "1.2 GiB/s")
func HumanRate(bytes uint64, seconds float64) string {
	rate := BytesPerSecond(bytes, seconds)
	if (0 == rate) || math.IsInf(rate, 0) || math.IsNaN(rate) {
		return "-"
	}
	return humanize.IBytes(uint64(rate)) + "/s"
}

// SecondsString renders seconds the way the run log reports cycle durations
func SecondsString(seconds float64) string {
	return fmt.Sprintf("%.2f", seconds)
}
