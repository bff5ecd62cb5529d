package models

import (
	"time"
)

// PipelineStep is one templated-prompt processing stage within a pipeline.
// Step numbers are 1-based and dense: a pipeline of N steps carries exactly
// the numbers 1..N, and execution always follows that order.
type PipelineStep struct {
	StepNumber  int     `json:"stepNumber"`
	Name        string  `json:"name"`
	Prompt      string  `json:"prompt"`
	Description *string `json:"description,omitempty"`
	Model       *string `json:"model,omitempty"`
}

// Pipeline is the ordered list of AI processing steps attached to a form.
// A form has zero or one pipeline.
type Pipeline struct {
	ID        string         `json:"id" db:"id"`
	FormID    string         `json:"form_id" db:"form_id"`
	Name      string         `json:"name" db:"name"`
	Steps     []PipelineStep `json:"steps" db:"steps"`
	IsActive  bool           `json:"is_active" db:"is_active"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}
