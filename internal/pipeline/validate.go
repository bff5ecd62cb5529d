package pipeline

import (
	"fmt"
	"strings"

	"formpipe/backend/pkg/models"
)

// ValidateSteps checks the structural invariants a stored pipeline must
// satisfy before it may run: step numbers form exactly 1..N in order, and
// every step has a name and a prompt.
func ValidateSteps(steps []models.PipelineStep) error {
	for i, step := range steps {
		if step.StepNumber != i+1 {
			return &ConfigurationError{
				Reason: fmt.Sprintf("step at position %d has stepNumber %d, want %d", i+1, step.StepNumber, i+1),
			}
		}
		if strings.TrimSpace(step.Name) == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("step %d has no name", step.StepNumber)}
		}
		if strings.TrimSpace(step.Prompt) == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("step %d has no prompt", step.StepNumber)}
		}
	}
	return nil
}

// ValidateTemplates checks every step's prompt for illegal step-output
// references. Names shaped like step_<K>_output are reserved: K must be a
// positive integer naming a strictly earlier step. Later steps may depend
// on earlier ones but never the reverse, so circular dependencies are
// impossible by construction. Other unknown variable names are allowed;
// they fall through to the resolver's lenient pass-through at run time.
//
// Called when a pipeline is saved, before it reaches storage.
func ValidateTemplates(steps []models.PipelineStep) error {
	for _, step := range steps {
		for _, name := range Variables(step.Prompt) {
			if !stepRefShaped(name) {
				continue
			}
			k, ok := ParseStepRef(name)
			if !ok {
				return &TemplateVariableError{
					StepNumber: step.StepNumber,
					Variable:   name,
					Reason:     "step reference must name a positive integer step",
				}
			}
			if k >= step.StepNumber {
				return &TemplateVariableError{
					StepNumber: step.StepNumber,
					Variable:   name,
					Reason:     fmt.Sprintf("only outputs of steps before %d may be referenced", step.StepNumber),
				}
			}
		}
	}
	return nil
}

// ValidatePipeline runs both structural and template validation, in the
// order a save request should report problems.
func ValidatePipeline(steps []models.PipelineStep) error {
	if err := ValidateSteps(steps); err != nil {
		return err
	}
	return ValidateTemplates(steps)
}

func stepRefShaped(name string) bool {
	return strings.HasPrefix(name, "step_") && strings.HasSuffix(name, "_output")
}
