package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_Substitution(t *testing.T) {
	vars := Context{"name": "Ann", "email": "a@x.com"}

	assert.Equal(t, "Greet Ann", Resolve("Greet {name}", vars))
	assert.Equal(t, "Email a@x.com: hi Ann", Resolve("Email {email}: hi {name}", vars))
	assert.Equal(t, "no variables here", Resolve("no variables here", vars))
}

func TestResolve_MultipleOccurrencesGetSameValue(t *testing.T) {
	vars := Context{"name": "Ann"}
	assert.Equal(t, "Ann Ann Ann", Resolve("{name} {name} {name}", vars))
}

func TestResolve_Deterministic(t *testing.T) {
	vars := Context{"a": "1", "b": "2", "all_fields": "A: 1\nB: 2"}
	template := "x {a} y {b} z {all_fields} {a}"

	first := Resolve(template, vars)
	second := Resolve(template, vars)
	assert.Equal(t, first, second)
}

func TestResolve_UnknownVariablePassesThroughVerbatim(t *testing.T) {
	// Lenient policy: a typo degrades one substitution, never the run.
	vars := Context{"name": "Ann"}

	assert.Equal(t, "hi {nmae}", Resolve("hi {nmae}", vars))
	assert.Equal(t, "hi {unknown} Ann", Resolve("hi {unknown} {name}", vars))
}

func TestResolve_CaseAndWhitespaceSensitive(t *testing.T) {
	vars := Context{"name": "Ann"}

	assert.Equal(t, "{Name}", Resolve("{Name}", vars))
	assert.Equal(t, "{ name }", Resolve("{ name }", vars))
	assert.Equal(t, "{name }", Resolve("{name }", vars))
}

func TestResolve_LiteralBraces(t *testing.T) {
	vars := Context{"name": "Ann"}

	// Unterminated brace passes through.
	assert.Equal(t, "a { b", Resolve("a { b", vars))
	// Braces must pair on the same line.
	assert.Equal(t, "a {x\ny} Ann", Resolve("a {x\ny} {name}", vars))
	// An inner brace can still open a variable.
	assert.Equal(t, "{outer Ann", Resolve("{outer {name}", vars))
	// Empty braces are an unknown variable.
	assert.Equal(t, "{}", Resolve("{}", vars))
}

func TestVariables(t *testing.T) {
	assert.Equal(t,
		[]string{"name", "step_1_output", "name"},
		Variables("a {name} b {step_1_output} c {name}"))
	assert.Nil(t, Variables("no refs"))
	assert.Equal(t, []string{"b"}, Variables("{a\nx} {b}"))
}

func TestParseStepRef(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"step_1_output", 1, true},
		{"step_12_output", 12, true},
		{"step_0_output", 0, false},
		{"step_01_output", 0, false},
		{"step_-1_output", 0, false},
		{"step_x_output", 0, false},
		{"step_1_outputs", 0, false},
		{"name", 0, false},
		{"all_fields", 0, false},
	}
	for _, tt := range tests {
		k, ok := ParseStepRef(tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if tt.ok {
			assert.Equal(t, tt.want, k, tt.name)
		}
	}
}
