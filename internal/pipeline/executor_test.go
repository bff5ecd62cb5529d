package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpipe/backend/pkg/models"
)

type fakeGenerator struct {
	fn func(ctx context.Context, prompt, model string) (GenerationResult, error)
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt, model string) (GenerationResult, error) {
	return g.fn(ctx, prompt, model)
}

func strPtr(s string) *string { return &s }

func TestExecuteStep_Success(t *testing.T) {
	tokens := 42
	var gotPrompt, gotModel string
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt, model string) (GenerationResult, error) {
		gotPrompt, gotModel = prompt, model
		return GenerationResult{Text: "generated text", TokenCount: &tokens}, nil
	}}
	exec := NewExecutor(gen, "gemini-2.5-flash", time.Second)

	step := models.PipelineStep{StepNumber: 1, Name: "Greet", Prompt: "Greet {name}"}
	out, err := exec.ExecuteStep(context.Background(), step, Context{"name": "Ann"}, "sub-1")
	require.NoError(t, err)

	// The audit trail records the resolved prompt, not the template.
	assert.Equal(t, "Greet Ann", gotPrompt)
	assert.Equal(t, "Greet Ann", out.Prompt)
	assert.Equal(t, "gemini-2.5-flash", gotModel)
	assert.Equal(t, "generated text", out.Output)
	assert.Equal(t, "sub-1", out.SubmissionID)
	assert.Equal(t, 1, out.StepNumber)
	assert.Equal(t, "Greet", out.StepName)
	assert.Equal(t, &tokens, out.TokenCount)
	require.NotNil(t, out.DurationMs)
	require.NotNil(t, out.Model)
	assert.Equal(t, "gemini-2.5-flash", *out.Model)
	assert.False(t, out.ExecutedAt.IsZero())
	assert.NotEmpty(t, out.ID)
}

func TestExecuteStep_StepModelOverridesDefault(t *testing.T) {
	var gotModel string
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt, model string) (GenerationResult, error) {
		gotModel = model
		return GenerationResult{Text: "ok"}, nil
	}}
	exec := NewExecutor(gen, "default-model", time.Second)

	step := models.PipelineStep{StepNumber: 1, Name: "S", Prompt: "p", Model: strPtr("custom-model")}
	out, err := exec.ExecuteStep(context.Background(), step, nil, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "custom-model", gotModel)
	assert.Equal(t, "custom-model", *out.Model)
}

func TestExecuteStep_GenerationErrorBecomesStepFailure(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt, model string) (GenerationResult, error) {
		return GenerationResult{}, errors.New("rate limited")
	}}
	exec := NewExecutor(gen, "m", time.Second)

	step := models.PipelineStep{StepNumber: 3, Name: "Summarize", Prompt: "p"}
	out, err := exec.ExecuteStep(context.Background(), step, nil, "sub-1")
	assert.Nil(t, out)

	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 3, failure.StepNumber)
	assert.Equal(t, "Summarize", failure.StepName)
	assert.Contains(t, failure.Error(), "rate limited")
}

func TestExecuteStep_EmptyOutputIsFailure(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt, model string) (GenerationResult, error) {
		return GenerationResult{Text: "   \n"}, nil
	}}
	exec := NewExecutor(gen, "m", time.Second)

	_, err := exec.ExecuteStep(context.Background(), models.PipelineStep{StepNumber: 1, Name: "S", Prompt: "p"}, nil, "sub-1")
	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, failure.Error(), "empty output")
}

func TestExecuteStep_TimeoutIsFailure(t *testing.T) {
	gen := &fakeGenerator{fn: func(ctx context.Context, prompt, model string) (GenerationResult, error) {
		<-ctx.Done()
		return GenerationResult{}, ctx.Err()
	}}
	exec := NewExecutor(gen, "m", 10*time.Millisecond)

	_, err := exec.ExecuteStep(context.Background(), models.PipelineStep{StepNumber: 1, Name: "S", Prompt: "p"}, nil, "sub-1")
	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, failure.Cause, context.DeadlineExceeded)
}
