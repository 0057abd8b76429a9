// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

// Package history keeps a summary of every benchmark run in a SQLite database
// so results can be compared across runs, devices and configurations.
package history

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/NVIDIA/traveler/report"
)

type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the history database at path
//
// A path of "file::memory:" gives a private in-memory database.
//
func Open(path string) (store *Store, err error) {
	var (
		db *gorm.DB
	)

	db, err = gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if nil != err {
		err = fmt.Errorf("open of history database %s failed: %v", path, err)
		return
	}

	// SQLite allows one writer; one connection also keeps an in-memory database alive
	sqlDB, err := db.DB()
	if nil != err {
		err = fmt.Errorf("open of history database %s failed: %v", path, err)
		return
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&Run{}, &Workload{}, &Cycle{})
	if nil != err {
		_ = sqlDB.Close()
		err = fmt.Errorf("migration of history database %s failed: %v", path, err)
		return
	}

	store = &Store{db: db}

	return
}

func (store *Store) Close() (err error) {
	sqlDB, err := store.db.DB()
	if nil != err {
		return
	}

	err = sqlDB.Close()

	return
}

func cycleBytes(cycle *report.CycleReport) uint64 {
	if 0 < len(cycle.Workers) {
		return cycle.PhaseBytes(report.PhaseRead) + cycle.PhaseBytes(report.PhaseWrite)
	}
	return cycle.TransferBytes()
}

// Record stores a finished run along with its per-workload and per-cycle summaries
func (store *Store) Record(runReport *report.RunReport) (err error) {
	var (
		runID uuid.UUID
	)

	runID, err = uuid.Parse(runReport.RunID)
	if nil != err {
		err = fmt.Errorf("run ID %q is not a UUID: %v", runReport.RunID, err)
		return
	}

	run := Run{
		Id:            runID,
		StartedAt:     runReport.StartedAt,
		EndedAt:       runReport.EndedAt,
		State:         runReport.State,
		PrimaryPath:   runReport.PrimaryPath,
		SecondaryPath: runReport.SecondaryPath,
		FileSizeBytes: runReport.FileSizeBytes,
		Cycles:        runReport.CyclesPerRun,
		QueueDepth:    runReport.QueueDepth,
		Workloads:     make([]Workload, 0, len(runReport.Workloads)),
		CycleRows:     make([]Cycle, 0),
	}

	for workloadIndex := range runReport.Workloads {
		workloadReport := &runReport.Workloads[workloadIndex]

		workload := Workload{
			Name:                 workloadReport.Name,
			Cycles:               len(workloadReport.Cycles),
			FailedCycles:         workloadReport.FailedCycles(),
			TotalDurationSeconds: workloadReport.TotalDurationSeconds,
		}

		for cycleIndex := range workloadReport.Cycles {
			cycleReport := &workloadReport.Cycles[cycleIndex]

			bytes := cycleBytes(cycleReport)
			workload.Bytes += bytes

			run.CycleRows = append(run.CycleRows, Cycle{
				Workload:          workloadReport.Name,
				CycleIndex:        cycleReport.CycleIndex,
				DurationSeconds:   cycleReport.CycleDurationSeconds,
				ReadPhaseSeconds:  cycleReport.ReadPhaseSeconds,
				WritePhaseSeconds: cycleReport.WritePhaseSeconds,
				Bytes:             bytes,
				Succeeded:         cycleReport.Succeeded(),
			})
		}

		run.Workloads = append(run.Workloads, workload)
	}

	err = store.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
	if nil != err {
		err = fmt.Errorf("recording run %s failed: %v", runReport.RunID, err)
		return
	}

	return
}

// Recent returns up to limit runs, newest first, with their workload summaries
func (store *Store) Recent(limit int) (runs []Run, err error) {
	err = store.db.Preload("Workloads").Order("started_at desc").Limit(limit).Find(&runs).Error
	return
}

// Get returns one run with its workload and cycle summaries
func (store *Store) Get(runID string) (run Run, err error) {
	id, err := uuid.Parse(runID)
	if nil != err {
		return
	}

	err = store.db.Preload("Workloads").Preload("CycleRows", func(db *gorm.DB) *gorm.DB {
		return db.Order("workload, cycle_index")
	}).First(&run, "id = ?", id).Error

	return
}

// Best returns the fastest completed run of workload, by total duration, among
// runs that used fileSizeBytes
func (store *Store) Best(workload string, fileSizeBytes uint64) (best Workload, err error) {
	err = store.db.
		Joins("JOIN runs ON runs.id = workloads.run_id").
		Where("workloads.name = ? AND runs.file_size_bytes = ? AND runs.state = ? AND workloads.failed_cycles = 0", workload, fileSizeBytes, "Done").
		Order("workloads.total_duration_seconds asc").
		First(&best).Error
	return
}
