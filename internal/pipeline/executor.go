package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"formpipe/backend/pkg/models"
)

// GenerationResult is the usable part of a generation capability response.
type GenerationResult struct {
	Text       string
	TokenCount *int
}

// Generator is the opaque text generation capability a step invokes.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (GenerationResult, error)
}

// Executor runs a single pipeline step: it resolves the step's prompt
// against the supplied context, invokes the generator under a bounded
// timeout, and produces the audit record. It has no side effects beyond
// the generation call; persistence belongs to the Runner.
type Executor struct {
	gen          Generator
	defaultModel string
	timeout      time.Duration
}

// NewExecutor creates an Executor. The default model is used for steps that
// don't pin one; the timeout bounds each generation call.
func NewExecutor(gen Generator, defaultModel string, timeout time.Duration) *Executor {
	return &Executor{gen: gen, defaultModel: defaultModel, timeout: timeout}
}

// ExecuteStep resolves and runs one step for a submission. The returned
// StepOutput records the resolved prompt actually sent, not the raw
// template. Any generation error, timeout, or empty result is reported as
// a *StepFailure and no StepOutput is produced.
func (e *Executor) ExecuteStep(ctx context.Context, step models.PipelineStep, vars Context, submissionID string) (*models.StepOutput, error) {
	resolved := Resolve(step.Prompt, vars)

	model := e.defaultModel
	if step.Model != nil && *step.Model != "" {
		model = *step.Model
	}

	genCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	result, err := e.gen.Generate(genCtx, resolved, model)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		return nil, &StepFailure{StepNumber: step.StepNumber, StepName: step.Name, Cause: err}
	}
	if strings.TrimSpace(result.Text) == "" {
		return nil, &StepFailure{
			StepNumber: step.StepNumber,
			StepName:   step.Name,
			Cause:      errors.New("generator returned empty output"),
		}
	}

	return &models.StepOutput{
		ID:           uuid.New().String(),
		SubmissionID: submissionID,
		StepNumber:   step.StepNumber,
		StepName:     step.Name,
		Prompt:       resolved,
		Output:       result.Text,
		TokenCount:   result.TokenCount,
		DurationMs:   &duration,
		Model:        &model,
		ExecutedAt:   time.Now().UTC(),
	}, nil
}
