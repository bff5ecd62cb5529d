package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"

	"formpipe/backend/internal/pipeline"
	"formpipe/backend/internal/repository"
	"formpipe/backend/pkg/models"
)

// ErrFormInactive is returned when a submission targets a deactivated form.
var ErrFormInactive = errors.New("form is not accepting submissions")

// ValidationError reports a submission rejected at the intake boundary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// SubmissionService handles submission intake and run triggering. Intake
// validates the payload against the form's field definitions so the
// pipeline only ever sees well-typed values, snapshots the field list, and
// starts the pipeline run asynchronously.
type SubmissionService struct {
	repo   repository.Repository
	runner *pipeline.Runner
	logger Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(repo repository.Repository, runner *pipeline.Runner, logger Logger) *SubmissionService {
	return &SubmissionService{repo: repo, runner: runner, logger: logger}
}

// Submit validates and stores a new submission for the form behind
// publicID, then triggers its pipeline run in the background.
func (s *SubmissionService) Submit(ctx context.Context, publicID string, data map[string]models.FieldValue, ipAddress, userAgent *string) (*models.Submission, error) {
	form, err := s.repo.GetFormByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	if !form.IsActive {
		return nil, ErrFormInactive
	}
	if err := ValidateSubmissionData(form.Fields, data); err != nil {
		return nil, err
	}

	snapshot := make([]models.FormField, len(form.Fields))
	copy(snapshot, form.Fields)

	sub := &models.Submission{
		ID:            uuid.New().String(),
		FormID:        form.ID,
		Data:          data,
		FieldSnapshot: snapshot,
		Status:        models.SubmissionStatusPending,
		IPAddress:     ipAddress,
		UserAgent:     userAgent,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	s.triggerRun(sub.ID)
	return sub, nil
}

// Rerun triggers a fresh pipeline run for an existing submission, starting
// over from step 1. A submission with an active run is rejected with
// repository.ErrRunInProgress.
func (s *SubmissionService) Rerun(ctx context.Context, submissionID string) error {
	sub, err := s.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	if sub.Status == models.SubmissionStatusProcessing || s.runner.IsActive(submissionID) {
		return repository.ErrRunInProgress
	}
	s.triggerRun(submissionID)
	return nil
}

// triggerRun starts the pipeline in the background. The run detaches from
// the request context; each step is bounded by the executor's timeout.
func (s *SubmissionService) triggerRun(submissionID string) {
	go func() {
		if err := s.runner.Run(context.Background(), submissionID); err != nil {
			s.logger.Error("pipeline run failed", "submission_id", submissionID, "error", err)
		}
	}()
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateSubmissionData checks a payload against the form's field
// definitions: no unknown keys, required fields present and non-empty,
// values shaped for their field type, and option-backed fields restricted
// to their declared options.
func ValidateSubmissionData(fields []models.FormField, data map[string]models.FieldValue) error {
	known := make(map[string]models.FormField, len(fields))
	for _, f := range fields {
		known[f.ID] = f
	}
	for id := range data {
		if _, ok := known[id]; !ok {
			return &ValidationError{Field: id, Reason: "unknown field"}
		}
	}

	for _, field := range fields {
		value, present := data[field.ID]
		if !present || value.String() == "" {
			if field.Required {
				return &ValidationError{Field: field.ID, Reason: "required"}
			}
			continue
		}
		if err := validateFieldValue(field, value); err != nil {
			return err
		}
	}
	return nil
}

func validateFieldValue(field models.FormField, value models.FieldValue) error {
	if field.Type == models.FieldTypeCheckbox {
		if !value.IsList() {
			return &ValidationError{Field: field.ID, Reason: "expected a list of selections"}
		}
		for _, item := range value.List() {
			if !containsOption(field.Options, item) {
				return &ValidationError{Field: field.ID, Reason: fmt.Sprintf("%q is not an option", item)}
			}
		}
		return nil
	}
	if value.IsList() {
		return &ValidationError{Field: field.ID, Reason: "expected a single value"}
	}

	raw := value.String()
	switch field.Type {
	case models.FieldTypeNumber:
		num, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return &ValidationError{Field: field.ID, Reason: "expected a number"}
		}
		if v := field.Validation; v != nil {
			if v.Min != nil && num < *v.Min {
				return &ValidationError{Field: field.ID, Reason: validationMessage(v, fmt.Sprintf("must be at least %v", *v.Min))}
			}
			if v.Max != nil && num > *v.Max {
				return &ValidationError{Field: field.ID, Reason: validationMessage(v, fmt.Sprintf("must be at most %v", *v.Max))}
			}
		}
	case models.FieldTypeEmail:
		if _, err := mail.ParseAddress(raw); err != nil {
			return &ValidationError{Field: field.ID, Reason: "expected an email address"}
		}
	case models.FieldTypeDate:
		if !datePattern.MatchString(raw) {
			return &ValidationError{Field: field.ID, Reason: "expected a date (YYYY-MM-DD)"}
		}
		if _, err := time.Parse("2006-01-02", raw); err != nil {
			return &ValidationError{Field: field.ID, Reason: "invalid date"}
		}
	case models.FieldTypeSelect, models.FieldTypeRadio:
		if !containsOption(field.Options, raw) {
			return &ValidationError{Field: field.ID, Reason: fmt.Sprintf("%q is not an option", raw)}
		}
	}

	if v := field.Validation; v != nil && v.Pattern != nil {
		re, err := regexp.Compile(*v.Pattern)
		if err == nil && !re.MatchString(raw) {
			return &ValidationError{Field: field.ID, Reason: validationMessage(v, "does not match the expected format")}
		}
	}
	return nil
}

func validationMessage(v *models.FieldValidation, fallback string) string {
	if v.Message != nil && *v.Message != "" {
		return *v.Message
	}
	return fallback
}

func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
