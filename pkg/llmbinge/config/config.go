package config

import (
	"maps"
	"strings"
	"time"
)

// Config wraps a nested map[string]any for type-safe value extraction.
// Keys are dotted paths ("llm.model") that descend through nested maps.
// All accessors return the default if the path is missing or the value
// cannot be converted to the requested type.
type Config struct {
	data map[string]any
}

// New creates a Config from the given map.
// If data is nil, an empty Config is returned.
func New(data map[string]any) Config {
	if data == nil {
		data = make(map[string]any)
	}
	return Config{data: data}
}

// lookup resolves a dotted path.
func (c Config) lookup(path string) (any, bool) {
	var cur any = c.data
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the string value at path, or defaultVal.
func (c Config) String(path, defaultVal string) string {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	if s, ok := v.(string); ok {
		return s
	}
	return defaultVal
}

// Duration returns the duration at path, or defaultVal.
//
// Accepts:
//   - string: parsed with time.ParseDuration
//   - int, int64, float64: interpreted as milliseconds
//   - time.Duration: used directly
func (c Config) Duration(path string, defaultVal time.Duration) time.Duration {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case time.Duration:
		return val
	case float64:
		return time.Duration(val * float64(time.Millisecond))
	case int:
		return time.Duration(val) * time.Millisecond
	case int64:
		return time.Duration(val) * time.Millisecond
	}
	return defaultVal
}

// Bool returns the boolean at path, or defaultVal.
func (c Config) Bool(path string, defaultVal bool) bool {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return defaultVal
}

// Int returns the integer at path, or defaultVal. Floats convert only when
// they have no fractional part.
func (c Config) Int(path string, defaultVal int) int {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		if val == float64(int(val)) {
			return int(val)
		}
	}
	return defaultVal
}

// Float returns the float64 at path, or defaultVal.
func (c Config) Float(path string, defaultVal float64) float64 {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	}
	return defaultVal
}

// StringSlice returns the string slice at path, or defaultVal. A list with
// any non-string element yields defaultVal.
func (c Config) StringSlice(path string, defaultVal []string) []string {
	v, ok := c.lookup(path)
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		result := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return defaultVal
			}
			result = append(result, s)
		}
		return result
	}
	return defaultVal
}

// Has reports whether path exists.
func (c Config) Has(path string) bool {
	_, ok := c.lookup(path)
	return ok
}

// Sub returns the nested section at path, or an empty Config.
func (c Config) Sub(path string) Config {
	v, ok := c.lookup(path)
	if !ok {
		return New(nil)
	}
	m, ok := asMap(v)
	if !ok {
		return New(nil)
	}
	return New(m)
}

// Set returns a copy of c with value stored at path. Intermediate sections
// are created as needed; a non-map value in the way is replaced.
func (c Config) Set(path string, value any) Config {
	parts := strings.Split(path, ".")
	return New(setPath(c.data, parts, value))
}

func setPath(m map[string]any, parts []string, value any) map[string]any {
	out := maps.Clone(m)
	if out == nil {
		out = make(map[string]any)
	}
	if len(parts) == 1 {
		out[parts[0]] = value
		return out
	}
	child, _ := asMap(out[parts[0]])
	out[parts[0]] = setPath(child, parts[1:], value)
	return out
}

// Merge returns a new Config with other layered over c. Nested sections
// merge key by key; any other value in other replaces the one in c.
func (c Config) Merge(other Config) Config {
	return New(mergeMaps(c.data, other.data))
}

func mergeMaps(base, over map[string]any) map[string]any {
	out := maps.Clone(base)
	if out == nil {
		out = make(map[string]any, len(over))
	}
	for k, ov := range over {
		om, overIsMap := asMap(ov)
		bm, baseIsMap := asMap(out[k])
		if overIsMap && baseIsMap {
			out[k] = mergeMaps(bm, om)
			continue
		}
		out[k] = ov
	}
	return out
}

// Raw returns the underlying map.
// The returned map should not be modified.
func (c Config) Raw() map[string]any {
	return c.data
}

// asMap accepts both JSON-style and YAML-style nested maps.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Config:
		return m.data, true
	}
	return nil, false
}
