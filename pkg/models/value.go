package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldValue is a submitted value for a single form field: either a scalar
// or a list of strings (checkbox selections). Incoming JSON may carry a
// string, number, boolean, or array of strings; everything is normalized at
// the boundary so the rest of the system only ever sees well-typed values.
type FieldValue struct {
	list   []string
	scalar string
	isList bool
}

// ScalarValue returns a scalar field value.
func ScalarValue(s string) FieldValue {
	return FieldValue{scalar: s}
}

// ListValue returns a list field value.
func ListValue(items []string) FieldValue {
	return FieldValue{list: items, isList: true}
}

// IsList reports whether the value is a list.
func (v FieldValue) IsList() bool { return v.isList }

// List returns the list items, or nil for a scalar value.
func (v FieldValue) List() []string {
	if !v.isList {
		return nil
	}
	return v.list
}

// String renders the value for prompt interpolation. List values are joined
// with a comma-and-space separator.
func (v FieldValue) String() string {
	if v.isList {
		return strings.Join(v.list, ", ")
	}
	return v.scalar
}

// MarshalJSON encodes scalars as strings and lists as string arrays.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	if v.isList {
		return json.Marshal(v.list)
	}
	return json.Marshal(v.scalar)
}

// UnmarshalJSON accepts a string, number, boolean, or array of strings.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch val := raw.(type) {
	case nil:
		*v = ScalarValue("")
	case string:
		*v = ScalarValue(val)
	case bool:
		*v = ScalarValue(strconv.FormatBool(val))
	case float64:
		*v = ScalarValue(formatNumber(val))
	case []interface{}:
		items := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("field value list may only contain strings, got %T", item)
			}
			items = append(items, s)
		}
		*v = ListValue(items)
	default:
		return fmt.Errorf("unsupported field value type %T", raw)
	}
	return nil
}

// formatNumber renders JSON numbers without a trailing ".0" for integers.
func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
