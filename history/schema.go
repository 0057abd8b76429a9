// Copyright (c) 2015-2021, NVIDIA CORPORATION.
// SPDX-License-Identifier: Apache-2.0

package history

import (
	"time"

	"github.com/google/uuid"
)

type Run struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	StartedAt     time.Time `gorm:"index"`
	EndedAt       time.Time
	State         string `gorm:"size:20;not null"`
	PrimaryPath   string `gorm:"not null"`
	SecondaryPath string
	FileSizeBytes uint64
	Cycles        uint32
	QueueDepth    uint32

	Workloads []Workload `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
	CycleRows []Cycle    `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE"`
}

type Workload struct {
	RunId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name  string    `gorm:"size:20;primaryKey"`

	Cycles               int
	FailedCycles         int
	Bytes                uint64
	TotalDurationSeconds float64
}

type Cycle struct {
	RunId      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Workload   string    `gorm:"size:20;primaryKey"`
	CycleIndex int       `gorm:"primaryKey;autoIncrement:false"`

	DurationSeconds   float64
	ReadPhaseSeconds  float64
	WritePhaseSeconds float64
	Bytes             uint64
	Succeeded         bool
}
