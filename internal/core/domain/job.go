package domain

import "time"

type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// AnalysisJob tracks an asynchronous analysis request.
type AnalysisJob struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	Format      Format          `json:"format"`
	StoragePath string          `json:"storage_path"`
	Status      JobStatus       `json:"status"`
	Error       string          `json:"error,omitempty"`
	Result      *PipelineResult `json:"result,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// QueuedJob is the message handed from the API to workers.
type QueuedJob struct {
	JobID      string    `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
