package pipeline

import (
	"fmt"
)

// StepFailure reports that a single step failed: the generation call
// errored, timed out, or produced unusable output. The run halts at the
// failing step and the message becomes the submission's error message.
type StepFailure struct {
	StepNumber int
	StepName   string
	Cause      error
}

func (e *StepFailure) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.StepNumber, e.StepName, e.Cause)
}

func (e *StepFailure) Unwrap() error { return e.Cause }

// TemplateVariableError reports a step whose prompt references an invalid
// or forward-referencing variable. It is raised when a pipeline is saved,
// never during a run.
type TemplateVariableError struct {
	StepNumber int
	Variable   string
	Reason     string
}

func (e *TemplateVariableError) Error() string {
	return fmt.Sprintf("step %d references {%s}: %s", e.StepNumber, e.Variable, e.Reason)
}

// ConfigurationError reports a pipeline whose stored shape violates the
// engine's invariants (non-dense step numbers, empty prompts). The runner
// checks for it once at run start and fails fast without touching the
// submission.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid pipeline configuration: " + e.Reason
}
