// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package workload

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/NVIDIA/traveler/blunder"
	"github.com/NVIDIA/traveler/logger"
	"github.com/NVIDIA/traveler/progress"
	"github.com/NVIDIA/traveler/report"
	"github.com/NVIDIA/traveler/stats"
	"github.com/NVIDIA/traveler/utils"
)

type workerRange struct {
	offset uint64
	length uint64
}

// partition splits sizeBytes among queueDepth workers
//
// Each worker gets share = sizeBytes / queueDepth bytes. With
// rangePartitioned, worker i starts at i*share and the last worker also takes
// the remainder. Without it every worker starts at offset 0 and the remainder
// is returned so the caller can report it as untouched.
//
func partition(sizeBytes uint64, queueDepth uint32, rangePartitioned bool) (ranges []workerRange, remainder uint64) {
	if 0 == queueDepth {
		ranges = []workerRange{}
		remainder = sizeBytes
		return
	}

	share := sizeBytes / uint64(queueDepth)
	remainder = sizeBytes % uint64(queueDepth)

	ranges = make([]workerRange, queueDepth)

	for workerIndex := range ranges {
		if rangePartitioned {
			ranges[workerIndex] = workerRange{offset: uint64(workerIndex) * share, length: share}
		} else {
			ranges[workerIndex] = workerRange{offset: 0, length: share}
		}
	}

	if rangePartitioned {
		ranges[queueDepth-1].length += remainder
		remainder = 0
	}

	return
}

// RunSequential drives queueDepth concurrent readers, then queueDepth
// concurrent writers, against testFilePath once per cycle
//
// Every worker opens the file itself and moves its share through a ChunkSize
// buffer. The write phase of a cycle starts only after every reader of that
// cycle has returned. Writers never truncate the file. A phase's duration is
// the wall clock time from starting its first worker until its last returns.
//
func RunSequential(testFilePath string, sizeBytes uint64, cycles uint32, queueDepth uint32, options SequentialOptions, sink progress.Sink) (workloadReport *report.WorkloadReport) {
	ranges, remainder := partition(sizeBytes, queueDepth, options.RangePartitioned)

	workloadReport = report.NewWorkloadReport(Sequential, cycles)

	if 0 < remainder {
		logger.Warnf("Test file size %d is not a multiple of queue depth %d: last %d bytes are not read or written",
			sizeBytes, queueDepth, remainder)
	}

	if options.RangePartitioned {
		emit(sink, "Starting concurrent sequential I/O test: %d workers over disjoint ranges of %s...",
			queueDepth, utils.HumanBytes(sizeBytes))
	} else {
		emit(sink, "Starting concurrent sequential I/O test: %d workers each over the leading %s...",
			queueDepth, utils.HumanBytes(sizeBytes/uint64(maxUint32(queueDepth, 1))))
	}

	for cycleIndex := 1; cycleIndex <= int(cycles); cycleIndex++ {
		cycleStarted(sink, cycleIndex, cycles)

		stopwatch := utils.NewStopwatch()

		readResults, readSeconds := runPhase(report.PhaseRead, testFilePath, ranges, options)
		recordPhase(sink, report.PhaseRead, readResults, readSeconds)

		writeResults, writeSeconds := runPhase(report.PhaseWrite, testFilePath, ranges, options)
		recordPhase(sink, report.PhaseWrite, writeResults, writeSeconds)

		cycle := report.CycleReport{
			CycleIndex:           cycleIndex,
			Workers:              append(readResults, writeResults...),
			CycleDurationSeconds: stopwatch.Stop().Seconds(),
			ReadPhaseSeconds:     readSeconds,
			WritePhaseSeconds:    writeSeconds,
		}

		workloadReport.AddCycle(cycle)

		cycleCompleted(sink, Sequential, cycleIndex, cycle.CycleDurationSeconds)
	}

	emit(sink, "Total time for %d concurrent sequential I/O cycles: %s seconds.",
		cycles, utils.SecondsString(workloadReport.TotalDurationSeconds))

	return
}

func maxUint32(a uint32, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func recordPhase(sink progress.Sink, phase string, workerResults []report.WorkerResult, seconds float64) {
	var (
		bytes  uint64
		failed int
	)

	for workerIndex := range workerResults {
		workerResult := &workerResults[workerIndex]

		stats.RecordWorker(Sequential, workerResult)

		bytes += workerResult.Bytes

		if workerResult.Succeeded {
			logger.Tracef("Worker %d %s of %d bytes at offset %d completed in %s seconds.",
				workerResult.Worker, phase, workerResult.Bytes, workerResult.Offset, utils.SecondsString(workerResult.DurationSeconds))
		} else {
			failed++
			logger.Warnf("Worker %d %s at offset %d failed: %s",
				workerResult.Worker, phase, workerResult.Offset, workerResult.ErrorDetail)
		}
	}

	stats.RecordPhase(phase, seconds)

	if 0 == failed {
		emit(sink, "Sequential %s phase completed in %s seconds (%s).",
			phase, utils.SecondsString(seconds), utils.HumanRate(bytes, seconds))
	} else {
		emit(sink, "Sequential %s phase completed in %s seconds with %d of %d workers failed.",
			phase, utils.SecondsString(seconds), failed, len(workerResults))
	}
}

func runPhase(phase string, path string, ranges []workerRange, options SequentialOptions) (workerResults []report.WorkerResult, seconds float64) {
	var (
		wg sync.WaitGroup
	)

	workerResults = make([]report.WorkerResult, len(ranges))

	stopwatch := utils.NewStopwatch()

	for workerIndex := range ranges {
		wg.Add(1)
		go func(workerIndex int) {
			defer wg.Done()
			workerResults[workerIndex] = runWorker(phase, path, workerIndex, ranges[workerIndex], options)
		}(workerIndex)
	}

	wg.Wait()

	seconds = stopwatch.Stop().Seconds()

	return
}

func runWorker(phase string, path string, workerIndex int, workerRange workerRange, options SequentialOptions) (workerResult report.WorkerResult) {
	var (
		bytes uint64
		err   error
	)

	workerResult = report.WorkerResult{
		Worker: workerIndex,
		Phase:  phase,
		Offset: workerRange.offset,
	}

	stopwatch := utils.NewStopwatch()

	defer func() {
		if r := recover(); nil != r {
			err = fmt.Errorf("worker %d %s panicked: %v", workerIndex, phase, r)
		}

		workerResult.DurationSeconds = stopwatch.Stop().Seconds()
		workerResult.StartedAt = stopwatch.StartTime
		workerResult.EndedAt = stopwatch.StopTime
		workerResult.Bytes = bytes

		if nil == err {
			workerResult.Succeeded = true
			return
		}

		workerResult.Succeeded = false
		workerResult.ErrorDetail = blunder.ErrorString(blunder.AddKind(err, blunder.TransferError))
	}()

	if report.PhaseRead == phase {
		bytes, err = readRange(path, workerRange)
	} else {
		bytes, err = writeRange(path, workerRange, options.SyncWrites)
	}

	return
}

// readRange reads workerRange from path, stopping early and successfully at end of file
func readRange(path string, workerRange workerRange) (bytes uint64, err error) {
	var (
		chunk uint64
		file  *os.File
		n     int
	)

	file, err = os.Open(path)
	if nil != err {
		return
	}
	defer file.Close()

	buf := make([]byte, ChunkSize)

	for bytes < workerRange.length {
		chunk = workerRange.length - bytes
		if ChunkSize < chunk {
			chunk = ChunkSize
		}

		n, err = file.ReadAt(buf[:chunk], int64(workerRange.offset+bytes))
		bytes += uint64(n)

		if io.EOF == err {
			err = nil
			return
		}
		if nil != err {
			err = fmt.Errorf("read at offset %d failed: %w", workerRange.offset+bytes, err)
			return
		}
	}

	return
}

// writeRange overwrites workerRange of path with zeroes without truncating the file
func writeRange(path string, workerRange workerRange, syncWrites bool) (bytes uint64, err error) {
	var (
		chunk    uint64
		closeErr error
		file     *os.File
		n        int
	)

	file, err = os.OpenFile(path, os.O_WRONLY, 0)
	if nil != err {
		return
	}

	buf := make([]byte, ChunkSize)

	for bytes < workerRange.length {
		chunk = workerRange.length - bytes
		if ChunkSize < chunk {
			chunk = ChunkSize
		}

		n, err = file.WriteAt(buf[:chunk], int64(workerRange.offset+bytes))
		bytes += uint64(n)

		if nil != err {
			err = fmt.Errorf("write at offset %d failed: %w", workerRange.offset+bytes, err)
			_ = file.Close()
			return
		}
	}

	if syncWrites {
		err = file.Sync()
		if nil != err {
			_ = file.Close()
			return
		}
	}

	closeErr = file.Close()
	if nil != closeErr {
		err = closeErr
	}

	return
}
