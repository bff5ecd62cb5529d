package models

import (
	"time"
)

// SubmissionStatus represents the processing state of a submission
type SubmissionStatus string

const (
	SubmissionStatusPending    SubmissionStatus = "pending"
	SubmissionStatusProcessing SubmissionStatus = "processing"
	SubmissionStatusCompleted  SubmissionStatus = "completed"
	SubmissionStatusFailed     SubmissionStatus = "failed"
)

// CanTransition reports whether a submission may move from s to next.
// pending may resolve directly to completed when a form has no pipeline;
// completed and failed are re-claimable only by an explicit user re-run,
// which is modelled as a transition back to processing.
func (s SubmissionStatus) CanTransition(next SubmissionStatus) bool {
	switch s {
	case SubmissionStatusPending:
		return next == SubmissionStatusProcessing || next == SubmissionStatusCompleted
	case SubmissionStatusProcessing:
		return next == SubmissionStatusCompleted || next == SubmissionStatusFailed
	case SubmissionStatusCompleted, SubmissionStatusFailed:
		return next == SubmissionStatusProcessing
	}
	return false
}

// Submission is one filled-in instance of a form's fields plus its
// processing status. FieldSnapshot is the form's field list as it stood at
// intake time; the pipeline and the dashboard read the snapshot so that
// later edits to the form never change how a historical submission is
// interpreted.
type Submission struct {
	ID            string                `json:"id" db:"id"`
	FormID        string                `json:"form_id" db:"form_id"`
	Data          map[string]FieldValue `json:"data" db:"data"`
	FieldSnapshot []FormField           `json:"field_snapshot" db:"field_snapshot"`
	Status        SubmissionStatus      `json:"status" db:"status"`
	IPAddress     *string               `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent     *string               `json:"user_agent,omitempty" db:"user_agent"`
	ErrorMessage  *string               `json:"error_message,omitempty" db:"error_message"`
	SubmittedAt   time.Time             `json:"submitted_at" db:"submitted_at"`
	ProcessedAt   *time.Time            `json:"processed_at,omitempty" db:"processed_at"`
}

// StepOutput is the persisted record of one step's execution against one
// submission. Prompt holds the resolved template that was actually sent,
// not the raw template. Rows are append-only and unique per
// (submission, step number); sorted by step number they form the run's
// audit trail.
type StepOutput struct {
	ID           string    `json:"id" db:"id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	StepNumber   int       `json:"step_number" db:"step_number"`
	StepName     string    `json:"step_name" db:"step_name"`
	Prompt       string    `json:"prompt" db:"prompt"`
	Output       string    `json:"output" db:"output"`
	TokenCount   *int      `json:"token_count,omitempty" db:"token_count"`
	DurationMs   *int64    `json:"duration_ms,omitempty" db:"duration_ms"`
	Model        *string   `json:"model,omitempty" db:"model"`
	ExecutedAt   time.Time `json:"executed_at" db:"executed_at"`
}
