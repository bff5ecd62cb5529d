package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"formpipe/backend/internal/repository"
	"formpipe/backend/pkg/models"
)

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Runner orchestrates a submission's pipeline: it claims the submission,
// executes the steps strictly in order, persists each output, and drives
// the submission's status to a terminal state. It is the sole writer of
// submission status after intake.
type Runner struct {
	repo     repository.Repository
	executor *Executor
	logger   Logger
	tracer   trace.Tracer

	mu     sync.Mutex
	active map[string]struct{}
}

// NewRunner creates a Runner.
func NewRunner(repo repository.Repository, executor *Executor, logger Logger) *Runner {
	return &Runner{
		repo:     repo,
		executor: executor,
		logger:   logger,
		tracer:   otel.Tracer("formpipe/pipeline"),
		active:   make(map[string]struct{}),
	}
}

// Run executes the pipeline configured for the submission's form.
//
// At most one run may be active per submission: a second concurrent call
// returns repository.ErrRunInProgress, both via an in-process guard and via
// the repository's conditional status claim. A form without a pipeline (or
// with an inactive or empty one) completes the submission immediately with
// zero step outputs. On the first step failure the run halts, later steps
// never execute, and the submission is marked failed with a message naming
// the step and cause. Cancellation is honored between steps; a generation
// result arriving after cancellation is never persisted. Steps are never
// retried; a re-run starts over from step 1.
func (r *Runner) Run(ctx context.Context, submissionID string) error {
	if !r.acquire(submissionID) {
		return repository.ErrRunInProgress
	}
	defer r.release(submissionID)

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("submission.id", submissionID)))
	defer span.End()

	sub, err := r.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return fmt.Errorf("load submission: %w", err)
	}

	pl, err := r.repo.GetPipelineByFormID(ctx, sub.FormID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("load pipeline: %w", err)
	}
	if pl == nil || !pl.IsActive || len(pl.Steps) == 0 {
		if err := r.repo.CompleteSubmissionNoPipeline(ctx, submissionID); err != nil {
			return fmt.Errorf("complete submission without pipeline: %w", err)
		}
		r.logger.Info("submission completed without pipeline", "submission_id", submissionID)
		return nil
	}

	// The editor guarantees dense 1..N numbering; re-check once before
	// touching the submission and fail fast if storage disagrees.
	if err := ValidateSteps(pl.Steps); err != nil {
		return err
	}

	if err := r.repo.ClaimSubmissionRun(ctx, submissionID); err != nil {
		return err
	}
	r.logger.Info("pipeline run started",
		"submission_id", submissionID, "form_id", sub.FormID, "steps", len(pl.Steps))

	outputs := make([]models.StepOutput, 0, len(pl.Steps))
	for _, step := range pl.Steps {
		if cause := ctx.Err(); cause != nil {
			if failErr := r.fail(submissionID, fmt.Sprintf("run cancelled before step %d", step.StepNumber)); failErr != nil {
				return failErr
			}
			return fmt.Errorf("run cancelled before step %d: %w", step.StepNumber, cause)
		}

		vars := BuildContext(sub.FieldSnapshot, sub.Data, outputs, step.StepNumber)
		out, err := r.executeStep(ctx, step, vars, submissionID)
		if err != nil {
			r.logger.Error("pipeline step failed",
				"submission_id", submissionID, "step", step.StepNumber, "error", err)
			if failErr := r.fail(submissionID, err.Error()); failErr != nil {
				return failErr
			}
			return err
		}
		if cause := ctx.Err(); cause != nil {
			// The result arrived after cancellation; drop it.
			if failErr := r.fail(submissionID, fmt.Sprintf("run cancelled during step %d", step.StepNumber)); failErr != nil {
				return failErr
			}
			return fmt.Errorf("run cancelled during step %d: %w", step.StepNumber, cause)
		}

		if err := r.repo.CreateStepOutput(ctx, out); err != nil {
			persistErr := fmt.Errorf("persist output of step %d: %w", step.StepNumber, err)
			if failErr := r.fail(submissionID, persistErr.Error()); failErr != nil {
				return failErr
			}
			return persistErr
		}
		outputs = append(outputs, *out)
		r.logger.Debug("pipeline step completed",
			"submission_id", submissionID, "step", step.StepNumber, "name", step.Name)
	}

	if err := r.repo.MarkSubmissionCompleted(ctx, submissionID); err != nil {
		return fmt.Errorf("mark submission completed: %w", err)
	}
	r.logger.Info("pipeline run completed", "submission_id", submissionID, "steps", len(outputs))
	return nil
}

func (r *Runner) executeStep(ctx context.Context, step models.PipelineStep, vars Context, submissionID string) (*models.StepOutput, error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.step",
		trace.WithAttributes(attribute.Int("step.number", step.StepNumber)))
	defer span.End()
	return r.executor.ExecuteStep(ctx, step, vars, submissionID)
}

// fail marks the submission failed, using a background context so the
// status write survives the cancellation that may have caused the failure.
func (r *Runner) fail(submissionID, message string) error {
	if err := r.repo.MarkSubmissionFailed(context.Background(), submissionID, message); err != nil {
		return fmt.Errorf("mark submission failed: %w", err)
	}
	return nil
}

// IsActive reports whether this process currently holds a run for the
// submission.
func (r *Runner) IsActive(submissionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, taken := r.active[submissionID]
	return taken
}

func (r *Runner) acquire(submissionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.active[submissionID]; taken {
		return false
	}
	r.active[submissionID] = struct{}{}
	return true
}

func (r *Runner) release(submissionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, submissionID)
}
