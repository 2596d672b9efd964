package jobs

import (
	"time"

	"foodsafe-backend/internal/analysis"
)

// Status is a job lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job tracks one analysis request through its lifecycle. Result is set only
// when completed; Error and ErrorCode only when failed. CompletedAt is set
// iff the status is terminal.
type Job struct {
	ID          string                   `json:"jobId"`
	OwnerID     string                   `json:"ownerId"`
	Kind        analysis.Kind            `json:"kind"`
	Request     analysis.Request         `json:"request"`
	Status      Status                   `json:"status"`
	Result      *analysis.AnalysisResult `json:"result,omitempty"`
	Error       string                   `json:"error,omitempty"`
	ErrorCode   string                   `json:"errorCode,omitempty"`
	CreatedAt   time.Time                `json:"createdAt"`
	StartedAt   *time.Time               `json:"startedAt,omitempty"`
	CompletedAt *time.Time               `json:"completedAt,omitempty"`
}

func (j Job) clone() Job {
	out := j
	out.Request = j.Request.Clone()
	if j.Result != nil {
		res := j.Result.Clone()
		out.Result = &res
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		out.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Stats are aggregate counts over the jobs currently held in memory.
type Stats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Total returns the number of jobs counted.
func (s Stats) Total() int {
	return s.Pending + s.Processing + s.Completed + s.Failed
}
