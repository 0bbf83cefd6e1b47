package tree

import (
	"encoding/json"
	"maps"
	"time"
)

// Now returns the current time in the form it has after a trip through
// storage: UTC with no monotonic reading.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}

// NormalizeMetadata returns a copy of m holding only JSON value shapes
// (string, float64, bool, nil, []any and map[string]any), so metadata reads
// the same before and after it is stored. Values that cannot be encoded are
// kept as a shallow copy.
func NormalizeMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return maps.Clone(m)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return maps.Clone(m)
	}
	return out
}
