package model

import "time"

// JobStatus represents the current state of an import job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal jobs are never
// transitioned again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// MaxErrorDetails bounds the error_details list persisted on a job.
const MaxErrorDetails = 100

// ImportJob tracks one execution of the import orchestrator. It is created
// at submission and mutated by the worker throughout the run; callers poll
// it for progress.
type ImportJob struct {
	ID               string     `json:"id"`
	FileName         string     `json:"file_name,omitempty"`
	Status           JobStatus  `json:"status"`
	TotalRecords     int        `json:"total_records"`
	ProcessedRecords int        `json:"processed_records"`
	ImportedCount    int        `json:"imported_count"`
	ErrorCount       int        `json:"error_count"`
	SkippedCount     int        `json:"skipped_count"`
	ErrorDetails     []string   `json:"error_details,omitempty"`
	ProgressMessage  string     `json:"progress_message,omitempty"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AppendErrors adds entries to ErrorDetails, keeping the first
// MaxErrorDetails entries collected over the run.
func (j *ImportJob) AppendErrors(entries []string) {
	for _, e := range entries {
		if len(j.ErrorDetails) >= MaxErrorDetails {
			return
		}
		j.ErrorDetails = append(j.ErrorDetails, e)
	}
}
