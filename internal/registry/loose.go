package registry

import (
	"bytes"
	"encoding/json"
	"strings"
)

// decodeLooseObject decodes a JSON object whose field types are not trusted.
// Numbers stay as json.Number so identifiers like registration numbers
// round-trip without float mangling.
func decodeLooseObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// stringField returns the named field coerced to a string, or "" when the
// field is absent, null, or not scalar.
func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// looseChild returns the named field as a nested object, or nil.
func looseChild(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	child, _ := m[key].(map[string]any)
	return child
}

// looseFirst returns the first element of the named array field as an
// object, or nil when the array is missing or empty.
func looseFirst(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	list, _ := m[key].([]any)
	if len(list) == 0 {
		return nil
	}
	first, _ := list[0].(map[string]any)
	return first
}

// trimJoin joins two name parts with a space and trims the result.
func trimJoin(first, last string) string {
	return strings.TrimSpace(first + " " + last)
}
