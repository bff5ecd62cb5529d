// Package repository provides persistence for forms, pipelines,
// submissions, and step outputs.
package repository

import (
	"context"
	"errors"

	"formpipe/backend/pkg/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrRunInProgress is returned by ClaimSubmissionRun when the submission is
// already being processed by an active run.
var ErrRunInProgress = errors.New("a run is already in progress for this submission")

// Repository is the storage surface of the service.
//
// The submission status columns are written only through the Claim/Mark
// methods, which enforce the status state machine in their WHERE clauses so
// that at most one run can hold a submission at a time even across
// processes.
type Repository interface {
	Ping(ctx context.Context) error

	// Users
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error

	// Forms
	CreateForm(ctx context.Context, form *models.Form) error
	GetForm(ctx context.Context, id string) (*models.Form, error)
	GetFormByPublicID(ctx context.Context, publicID string) (*models.Form, error)
	ListForms(ctx context.Context, userID string) ([]*models.Form, error)
	ListActiveForms(ctx context.Context) ([]*models.Form, error)
	UpdateForm(ctx context.Context, form *models.Form) error
	DeleteForm(ctx context.Context, id string) error

	// Pipelines (one per form)
	UpsertPipeline(ctx context.Context, pipeline *models.Pipeline) error
	GetPipelineByFormID(ctx context.Context, formID string) (*models.Pipeline, error)
	DeletePipeline(ctx context.Context, formID string) error

	// Submissions
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	ListSubmissionsByForm(ctx context.Context, formID string) ([]*models.Submission, error)
	DeleteSubmission(ctx context.Context, id string) error

	// ClaimSubmissionRun transitions the submission to processing, clears
	// any previous error and step outputs, and guarantees single-writer
	// semantics: a second concurrent claim returns ErrRunInProgress.
	ClaimSubmissionRun(ctx context.Context, id string) error
	// CompleteSubmissionNoPipeline resolves a submission straight to
	// completed when its form has no pipeline configured.
	CompleteSubmissionNoPipeline(ctx context.Context, id string) error
	MarkSubmissionCompleted(ctx context.Context, id string) error
	MarkSubmissionFailed(ctx context.Context, id, errorMessage string) error

	// Step outputs (append-only)
	CreateStepOutput(ctx context.Context, output *models.StepOutput) error
	ListStepOutputs(ctx context.Context, submissionID string) ([]*models.StepOutput, error)
}
