package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"formpipe/backend/pkg/models"
)

// PostgresStore is a PostgreSQL implementation of the Repository interface.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// GetUserByEmail retrieves a user by email address.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, email, name, created_at, updated_at FROM users WHERE email = $1", email).
		Scan(&user.ID, &user.Email, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser saves a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	_, err := s.db.Exec(ctx,
		"INSERT INTO users (id, email, name, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)",
		user.ID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	return err
}

// CreateForm saves a new form.
func (s *PostgresStore) CreateForm(ctx context.Context, form *models.Form) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	now := time.Now().UTC()
	form.CreatedAt = now
	form.UpdatedAt = now
	_, err = s.db.Exec(ctx,
		`INSERT INTO forms (id, user_id, name, description, fields, public_id, is_active, submission_count, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		form.ID, form.UserID, form.Name, form.Description, fields, form.PublicID,
		form.IsActive, form.SubmissionCount, form.CreatedAt, form.UpdatedAt)
	return err
}

const formColumns = "id, user_id, name, description, fields, public_id, is_active, submission_count, created_at, updated_at"

func scanForm(row pgx.Row) (*models.Form, error) {
	var form models.Form
	var fields []byte
	err := row.Scan(&form.ID, &form.UserID, &form.Name, &form.Description, &fields,
		&form.PublicID, &form.IsActive, &form.SubmissionCount, &form.CreatedAt, &form.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(fields, &form.Fields); err != nil {
		return nil, fmt.Errorf("unmarshal fields: %w", err)
	}
	return &form, nil
}

// GetForm retrieves a form by its ID.
func (s *PostgresStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	return scanForm(s.db.QueryRow(ctx, "SELECT "+formColumns+" FROM forms WHERE id = $1", id))
}

// GetFormByPublicID retrieves a form by its public submission identifier.
func (s *PostgresStore) GetFormByPublicID(ctx context.Context, publicID string) (*models.Form, error) {
	return scanForm(s.db.QueryRow(ctx, "SELECT "+formColumns+" FROM forms WHERE public_id = $1", publicID))
}

// ListForms retrieves all forms owned by a user, newest first.
func (s *PostgresStore) ListForms(ctx context.Context, userID string) ([]*models.Form, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+formColumns+" FROM forms WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*models.Form
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

// ListActiveForms retrieves every form currently accepting submissions.
func (s *PostgresStore) ListActiveForms(ctx context.Context) ([]*models.Form, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+formColumns+" FROM forms WHERE is_active ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var forms []*models.Form
	for rows.Next() {
		form, err := scanForm(rows)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	return forms, rows.Err()
}

// UpdateForm updates a form's definition.
func (s *PostgresStore) UpdateForm(ctx context.Context, form *models.Form) error {
	fields, err := json.Marshal(form.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	form.UpdatedAt = time.Now().UTC()
	tag, err := s.db.Exec(ctx,
		`UPDATE forms SET name = $1, description = $2, fields = $3, is_active = $4, updated_at = $5 WHERE id = $6`,
		form.Name, form.Description, fields, form.IsActive, form.UpdatedAt, form.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteForm deletes a form; its pipeline, submissions, and step outputs
// cascade.
func (s *PostgresStore) DeleteForm(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM forms WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertPipeline creates or replaces the pipeline attached to a form.
func (s *PostgresStore) UpsertPipeline(ctx context.Context, pipeline *models.Pipeline) error {
	steps, err := json.Marshal(pipeline.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	now := time.Now().UTC()
	pipeline.CreatedAt = now
	pipeline.UpdatedAt = now
	return s.db.QueryRow(ctx,
		`INSERT INTO pipelines (id, form_id, name, steps, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (form_id) DO UPDATE
		 SET name = EXCLUDED.name, steps = EXCLUDED.steps, is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		pipeline.ID, pipeline.FormID, pipeline.Name, steps, pipeline.IsActive,
		pipeline.CreatedAt, pipeline.UpdatedAt).
		Scan(&pipeline.ID, &pipeline.CreatedAt)
}

// GetPipelineByFormID retrieves the pipeline attached to a form.
func (s *PostgresStore) GetPipelineByFormID(ctx context.Context, formID string) (*models.Pipeline, error) {
	var pipeline models.Pipeline
	var steps []byte
	err := s.db.QueryRow(ctx,
		"SELECT id, form_id, name, steps, is_active, created_at, updated_at FROM pipelines WHERE form_id = $1", formID).
		Scan(&pipeline.ID, &pipeline.FormID, &pipeline.Name, &steps,
			&pipeline.IsActive, &pipeline.CreatedAt, &pipeline.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(steps, &pipeline.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal steps: %w", err)
	}
	return &pipeline, nil
}

// DeletePipeline removes the pipeline attached to a form.
func (s *PostgresStore) DeletePipeline(ctx context.Context, formID string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM pipelines WHERE form_id = $1", formID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSubmission saves a new submission and bumps the form's counter.
func (s *PostgresStore) CreateSubmission(ctx context.Context, submission *models.Submission) error {
	data, err := json.Marshal(submission.Data)
	if err != nil {
		return fmt.Errorf("marshal data: %w", err)
	}
	snapshot, err := json.Marshal(submission.FieldSnapshot)
	if err != nil {
		return fmt.Errorf("marshal field snapshot: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO submissions (id, form_id, data, field_snapshot, status, ip_address, user_agent, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		submission.ID, submission.FormID, data, snapshot, submission.Status,
		submission.IPAddress, submission.UserAgent, submission.SubmittedAt)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		"UPDATE forms SET submission_count = submission_count + 1 WHERE id = $1", submission.FormID)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const submissionColumns = "id, form_id, data, field_snapshot, status, ip_address, user_agent, error_message, submitted_at, processed_at"

func scanSubmission(row pgx.Row) (*models.Submission, error) {
	var sub models.Submission
	var data, snapshot []byte
	err := row.Scan(&sub.ID, &sub.FormID, &data, &snapshot, &sub.Status,
		&sub.IPAddress, &sub.UserAgent, &sub.ErrorMessage, &sub.SubmittedAt, &sub.ProcessedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &sub.Data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	if err := json.Unmarshal(snapshot, &sub.FieldSnapshot); err != nil {
		return nil, fmt.Errorf("unmarshal field snapshot: %w", err)
	}
	return &sub, nil
}

// GetSubmission retrieves a submission by its ID.
func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	return scanSubmission(s.db.QueryRow(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE id = $1", id))
}

// ListSubmissionsByForm retrieves a form's submissions, newest first.
func (s *PostgresStore) ListSubmissionsByForm(ctx context.Context, formID string) ([]*models.Submission, error) {
	rows, err := s.db.Query(ctx,
		"SELECT "+submissionColumns+" FROM submissions WHERE form_id = $1 ORDER BY submitted_at DESC", formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubmission deletes a submission and its step outputs.
func (s *PostgresStore) DeleteSubmission(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM submissions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimSubmissionRun atomically transitions a submission to processing and
// clears any previous run's outputs. The WHERE clause on status is the
// single-writer guarantee: a submission already processing cannot be
// claimed again, no matter how many processes race.
func (s *PostgresStore) ClaimSubmissionRun(ctx context.Context, id string) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE submissions SET status = $1, error_message = NULL, processed_at = NULL
		 WHERE id = $2 AND status <> $1`,
		models.SubmissionStatusProcessing, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.claimConflict(ctx, id)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM step_outputs WHERE submission_id = $1", id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CompleteSubmissionNoPipeline resolves a submission straight to completed;
// used when its form has no pipeline configured.
func (s *PostgresStore) CompleteSubmissionNoPipeline(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE submissions SET status = $1, error_message = NULL, processed_at = now()
		 WHERE id = $2 AND status <> $3`,
		models.SubmissionStatusCompleted, id, models.SubmissionStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.claimConflict(ctx, id)
	}
	return nil
}

// claimConflict distinguishes a missing submission from one that is
// already being processed.
func (s *PostgresStore) claimConflict(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM submissions WHERE id = $1)", id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrRunInProgress
}

// MarkSubmissionCompleted moves a processing submission to completed.
func (s *PostgresStore) MarkSubmissionCompleted(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE submissions SET status = $1, processed_at = now() WHERE id = $2 AND status = $3`,
		models.SubmissionStatusCompleted, id, models.SubmissionStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s is not processing", id)
	}
	return nil
}

// MarkSubmissionFailed moves a processing submission to failed with the
// run's error message.
func (s *PostgresStore) MarkSubmissionFailed(ctx context.Context, id, errorMessage string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE submissions SET status = $1, error_message = $2, processed_at = now()
		 WHERE id = $3 AND status = $4`,
		models.SubmissionStatusFailed, errorMessage, id, models.SubmissionStatusProcessing)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission %s is not processing", id)
	}
	return nil
}

// CreateStepOutput appends one step's audit record. Rows are never updated;
// the unique constraint on (submission_id, step_number) backs the
// append-only, no-duplicates invariant.
func (s *PostgresStore) CreateStepOutput(ctx context.Context, output *models.StepOutput) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO step_outputs (id, submission_id, step_number, step_name, prompt, output, token_count, duration_ms, model, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		output.ID, output.SubmissionID, output.StepNumber, output.StepName, output.Prompt,
		output.Output, output.TokenCount, output.DurationMs, output.Model, output.ExecutedAt)
	return err
}

// ListStepOutputs returns a submission's audit trail in step order.
func (s *PostgresStore) ListStepOutputs(ctx context.Context, submissionID string) ([]*models.StepOutput, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, submission_id, step_number, step_name, prompt, output, token_count, duration_ms, model, executed_at
		 FROM step_outputs WHERE submission_id = $1 ORDER BY step_number`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outputs []*models.StepOutput
	for rows.Next() {
		var out models.StepOutput
		if err := rows.Scan(&out.ID, &out.SubmissionID, &out.StepNumber, &out.StepName, &out.Prompt,
			&out.Output, &out.TokenCount, &out.DurationMs, &out.Model, &out.ExecutedAt); err != nil {
			return nil, err
		}
		outputs = append(outputs, &out)
	}
	return outputs, rows.Err()
}
