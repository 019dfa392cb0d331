package model

import "time"

// JobStatus tracks an asynchronous pipeline job through its lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job stages reported to status pollers while a job is processing.
const (
	StageReceived   = "received"
	StageCleaning   = "cleaning"
	StageValidation = "validation"
	StageCompleted  = "completed"
)

// Job is one asynchronous run of the pipeline for one uploaded batch.
// Each job is written by exactly one background task for its entire
// lifetime; pollers only read.
type Job struct {
	ID        string          `json:"job_id"`
	Status    JobStatus       `json:"status"`
	Stage     string          `json:"stage,omitempty"`
	Progress  int             `json:"progress"`
	Error     string          `json:"error,omitempty"`
	Result    *PipelineReport `json:"result,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
