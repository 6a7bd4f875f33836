package models

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusDone      JobStatus = "done"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further status transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCancelled || s == JobStatusDone || s == JobStatusFailed
}

// Job is one end-to-end search request's lifecycle, spanning all sources.
type Job struct {
	ID         uuid.UUID      `json:"id" db:"id"`
	Owner      string         `json:"owner,omitempty" db:"owner"`
	Status     JobStatus      `json:"status" db:"status"`
	Criteria   SearchCriteria `json:"criteria" db:"criteria"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty" db:"finished_at"`
}
