package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusWaiting   JobStatus = "waiting"
	StatusActive    JobStatus = "active"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether processing (and polling) stops at this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Job struct {
	ID           uuid.UUID       `json:"id"`
	Type         string          `json:"type"`
	Status       JobStatus       `json:"status"`
	Priority     int             `json:"priority" db:"priority"`
	Progress     int             `json:"progress"` // 0..100
	Input        json.RawMessage `json:"input"`
	Result       json.RawMessage `json:"result,omitempty"`
	FailedReason *string         `json:"failed_reason,omitempty"`
	AttemptsMade int             `json:"attempts_made"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ProcessedOn  *time.Time      `json:"processed_on,omitempty"`
	FinishedOn   *time.Time      `json:"finished_on,omitempty"`
}
