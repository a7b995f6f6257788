// Package labels converts project labels between their manifest form and
// the JSON column they are stored in.
package labels

import (
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// ToJSON copies values into a JSON column value. Keys with blank names are
// skipped.
func ToJSON(values map[string]string) datatypes.JSONMap {
	out := datatypes.JSONMap{}
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			continue
		}
		out[key] = value
	}
	return out
}

// FromJSON flattens a stored label set back to strings.
func FromJSON(values datatypes.JSONMap) map[string]string {
	out := make(map[string]string, len(values))
	for key, value := range values {
		if str, ok := value.(string); ok {
			out[key] = str
			continue
		}
		out[key] = fmt.Sprint(value)
	}
	return out
}

// Format renders labels as "k=v, k=v" ordered by key, or "-" when empty.
func Format(values datatypes.JSONMap) string {
	if len(values) == 0 {
		return "-"
	}

	flat := FromJSON(values)
	keys := make([]string, 0, len(flat))
	for key := range flat {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, key := range keys {
		parts[i] = key + "=" + flat[key]
	}
	return strings.Join(parts, ", ")
}
