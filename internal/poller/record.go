package poller

import (
	"encoding/json"
	"time"

	"revenue-jobs/internal/entity"
)

// Record is one status snapshot of a backend job, replaced wholesale on
// every successful fetch. Bookkeeping fields are read-only to the client.
type Record struct {
	JobID        string           `json:"jobId"`
	Type         string           `json:"type,omitempty"`
	Status       entity.JobStatus `json:"status"`
	Progress     int              `json:"progress"`
	Result       json.RawMessage  `json:"result,omitempty"`
	FailedReason *string          `json:"failedReason,omitempty"`
	AttemptsMade int              `json:"attemptsMade"`
	Timestamp    *time.Time       `json:"timestamp,omitempty"`
	ProcessedOn  *time.Time       `json:"processedOn,omitempty"`
	FinishedOn   *time.Time       `json:"finishedOn,omitempty"`
}
