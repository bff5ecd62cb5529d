// Package pipeline implements the prompt templating and sequential
// execution engine that processes form submissions.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"
)

// AllFieldsVar is the synthetic variable that expands to a block listing
// every field's label and value.
const AllFieldsVar = "all_fields"

// Context is the mapping from variable name to resolved string value used
// to expand a step's prompt template.
type Context map[string]string

// Resolve replaces every occurrence of {name} in the template with the
// context's value for name. A variable is the text between a literal '{'
// and the next '}' on the same line; there is no nesting and no escaping.
// Resolution is case- and whitespace-sensitive and deterministic.
//
// Unknown variables are left verbatim (lenient policy): a user typo in a
// prompt degrades that one substitution instead of failing the whole run.
func Resolve(template string, vars Context) string {
	var b strings.Builder
	b.Grow(len(template))
	i := 0
	for i < len(template) {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i
		b.WriteString(template[i:open])

		end := strings.IndexByte(template[open+1:], '}')
		if end < 0 {
			b.WriteString(template[open:])
			break
		}
		end += open + 1

		name := template[open+1 : end]
		if strings.ContainsAny(name, "{\n") {
			// Not a variable; emit the brace and rescan from the next char
			// so an inner '{' can still open one.
			b.WriteByte('{')
			i = open + 1
			continue
		}
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(template[open : end+1])
		}
		i = end + 1
	}
	return b.String()
}

// Variables returns every variable-shaped name referenced by the template,
// in order of appearance, duplicates included.
func Variables(template string) []string {
	var names []string
	i := 0
	for i < len(template) {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			break
		}
		open += i
		end := strings.IndexByte(template[open+1:], '}')
		if end < 0 {
			break
		}
		end += open + 1
		name := template[open+1 : end]
		if strings.ContainsAny(name, "{\n") {
			i = open + 1
			continue
		}
		names = append(names, name)
		i = end + 1
	}
	return names
}

// StepOutputVar returns the variable name carrying step k's output.
func StepOutputVar(k int) string {
	return fmt.Sprintf("step_%d_output", k)
}

// ParseStepRef reports whether name references a step output and, if so,
// which step. Only the canonical form step_<K>_output with K a positive
// integer (no leading zeros) counts; anything else is an ordinary variable.
func ParseStepRef(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "step_")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, "_output")
	if !ok {
		return 0, false
	}
	k, err := strconv.Atoi(digits)
	if err != nil || k < 1 || digits != strconv.Itoa(k) {
		return 0, false
	}
	return k, true
}
