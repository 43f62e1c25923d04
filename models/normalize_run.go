package models

import (
	"time"
)

// Status-Werte eines Normalisierungslaufs.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// NormalizeRun protokolliert einen Lauf des Batch-Normalizers.
type NormalizeRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	RunID   string `json:"run_id" gorm:"uniqueIndex;not null"`
	Trigger string `json:"trigger" gorm:"index"` // cli, cron, api

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `json:"status" gorm:"index;default:'running'"`

	Datasets      int    `json:"datasets"`
	Pages         int    `json:"pages"`
	Samples       int    `json:"samples"`
	FieldsChanged int    `json:"fields_changed"`
	FailedFile    string `json:"failed_file,omitempty"`
	Error         string `json:"error,omitempty" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (NormalizeRun) TableName() string {
	return "normalize_runs"
}
