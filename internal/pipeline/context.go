package pipeline

import (
	"sort"
	"strings"

	"formpipe/backend/pkg/models"
)

// BuildContext assembles the resolution context for one step from the
// submission's data, the field definitions snapshotted at intake, and the
// outputs already produced by earlier steps.
//
// Every field id maps to its submitted value, or "" when absent; list
// values are joined with ", ". The synthetic all_fields variable expands to
// one "Label: value" line per field in declared order. Outputs are exposed
// as step_<K>_output for K strictly before the current step only, so a
// prompt can never see a later step's result.
func BuildContext(fields []models.FormField, data map[string]models.FieldValue, outputs []models.StepOutput, stepNumber int) Context {
	vars := make(Context, len(fields)+len(outputs)+1)

	ordered := make([]models.FormField, len(fields))
	copy(ordered, fields)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })

	var all strings.Builder
	for i, field := range ordered {
		value := data[field.ID].String()
		vars[field.ID] = value
		if i > 0 {
			all.WriteByte('\n')
		}
		all.WriteString(field.Label)
		all.WriteString(": ")
		all.WriteString(value)
	}
	vars[AllFieldsVar] = all.String()

	for _, out := range outputs {
		if out.StepNumber < stepNumber {
			vars[StepOutputVar(out.StepNumber)] = out.Output
		}
	}
	return vars
}
