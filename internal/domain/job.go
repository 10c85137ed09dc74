package domain

import (
	"errors"
	"time"
)

// JobKind names what a job runs.
type JobKind string

const (
	JobKindImage    JobKind = "image"
	JobKindPipeline JobKind = "pipeline"
	JobKindVideo    JobKind = "video"
)

// JobStatus enumerates job lifecycle states.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is the tracked state of one asynchronous generation. It is written
// twice: once as processing at submission and once with its terminal state.
type Job struct {
	ID          string     `json:"id"`
	Kind        JobKind    `json:"kind"`
	UserID      string     `json:"userId,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	FailedAt    *time.Time `json:"failedAt,omitempty"`
	Result      *Artifact  `json:"result,omitempty"`
	Method      string     `json:"method,omitempty"`
	Error       string     `json:"error,omitempty"`
	ErrorCode   string     `json:"errorCode,omitempty"`

	// Rejection and Reasons are set when a vendor safety filter refused the
	// content.
	Rejection RejectionReason `json:"rejection,omitempty"`
	Reasons   []string        `json:"reasons,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		out.CompletedAt = &t
	}
	if j.FailedAt != nil {
		t := *j.FailedAt
		out.FailedAt = &t
	}
	if j.Result != nil {
		a := *j.Result
		out.Result = &a
	}
	if j.Reasons != nil {
		out.Reasons = append([]string(nil), j.Reasons...)
	}
	return &out
}

// Complete returns the completed successor of j.
func (j *Job) Complete(at time.Time, result *Artifact, method string) *Job {
	next := j.Clone()
	next.Status = JobStatusCompleted
	next.CompletedAt = &at
	next.Result = result
	next.Method = method
	return next
}

// Fail returns the failed successor of j, recording the kind of err.
func (j *Job) Fail(at time.Time, err error) *Job {
	next := j.Clone()
	next.Status = JobStatusFailed
	next.FailedAt = &at
	next.Error = err.Error()
	next.ErrorCode = ErrorCode(err)
	var rejection *ContentRejectionError
	if errors.As(err, &rejection) {
		next.Rejection = rejection.Reason
		next.Reasons = append([]string(nil), rejection.Details...)
	}
	return next
}
