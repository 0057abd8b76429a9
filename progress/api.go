// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package progress carries run state transitions and per-cycle milestones
// from the orchestrator to whatever front end is watching the run.
package progress

import (
	"time"
)

// Phase names the orchestrator state an Event was emitted from
type Phase string

const (
	Idle         Phase = "Idle"
	Validating   Phase = "Validating"
	Provisioning Phase = "Provisioning"
	Executing    Phase = "Executing"
	Cleaning     Phase = "Cleaning"
	Done         Phase = "Done"
	Failed       Phase = "Failed"
)

type Event struct {
	Phase   Phase
	Message string
	Time    time.Time
}

// Sink receives Events in emission order on the orchestrator goroutine
//
// Emit must not block for long; a slow Sink delays the benchmark.
//
type Sink interface {
	Emit(event Event)
}

// SinkFunc adapts an ordinary function to a Sink
type SinkFunc func(event Event)

func (sinkFunc SinkFunc) Emit(event Event) {
	sinkFunc(event)
}

// ChanSink forwards Events to a channel, dropping them when the channel is full
type ChanSink chan Event

func (chanSink ChanSink) Emit(event Event) {
	select {
	case chanSink <- event:
	default:
	}
}

type discardSink struct{}

func (discardSink) Emit(event Event) {}

// Discard is a Sink that ignores every Event
var Discard Sink = discardSink{}

// Recorder is a Sink that keeps every Event, for tests and post-run inspection
type Recorder struct {
	Events []Event
}

func (recorder *Recorder) Emit(event Event) {
	recorder.Events = append(recorder.Events, event)
}

// Phases returns the distinct phases seen, in first-seen order
func (recorder *Recorder) Phases() (phases []Phase) {
	seen := make(map[Phase]bool)

	phases = make([]Phase, 0, len(recorder.Events))

	for _, event := range recorder.Events {
		if !seen[event.Phase] {
			seen[event.Phase] = true
			phases = append(phases, event.Phase)
		}
	}

	return
}
