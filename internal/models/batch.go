package models

import (
	"time"
)

// BatchStatus is the lifecycle state of one load attempt.
type BatchStatus string

const (
	// BatchStatusRunning is the implicit state between Open and Finalize.
	// A batch left RUNNING indicates the process died mid-load.
	BatchStatusRunning BatchStatus = "RUNNING"
	BatchStatusSuccess BatchStatus = "SUCCESS"
	BatchStatusFailed  BatchStatus = "FAILED"
	// BatchStatusPartial means some rows persisted and some were rejected.
	BatchStatusPartial BatchStatus = "PARTIAL"
)

// Batch is the audit record for one attempt to load one input file.
// Created at the start of a load attempt and finalized exactly once to a
// terminal status; never deleted, even on failure.
type Batch struct {
	ID           int64       `json:"batch_id"`
	SourceID     int64       `json:"source_id"`
	Name         string      `json:"batch_name"`
	FilePath     *string     `json:"file_path"`
	FileSize     *int64      `json:"file_size_bytes"`
	RowCount     *int        `json:"row_count"`
	QualityScore *float64    `json:"quality_score"`
	Status       BatchStatus `json:"status"`
	StartTime    time.Time   `json:"start_time"`
	EndTime      *time.Time  `json:"end_time"`
	ErrorMessage *string     `json:"error_message"`
}

// BatchMeta carries the fields known at batch-open time.
type BatchMeta struct {
	SourceID     int64
	Name         string
	FilePath     string
	FileSize     int64
	RowCount     int
	QualityScore float64
}
