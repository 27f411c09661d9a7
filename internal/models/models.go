package models

import "time"

// JobStatus represents the current state of a merge job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusError     JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed from s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Snapshot is the observable state of a job at one revision. It is what the
// status endpoint returns and what every stream event carries.
type Snapshot struct {
	JobID          string    `json:"job_id"`
	Status         JobStatus `json:"status"`
	TotalPages     int       `json:"total_pages"`
	ProcessedPages int       `json:"processed_pages"`
	Percent        float64   `json:"percent"`
	Error          string    `json:"error,omitempty"`
	HasResult      bool      `json:"has_result"`
	OutputName     string    `json:"output_name"`
	CurrentFile    string    `json:"current_file,omitempty"`
	Revision       uint64    `json:"revision"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// MergeAccepted is returned by POST /merge.
type MergeAccepted struct {
	JobID      string `json:"job_id"`
	OutputName string `json:"output_name"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
