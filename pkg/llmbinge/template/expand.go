package template

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholder matches ${varname}; varname can contain alphanumerics and underscores.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// Expander expands ${var} placeholders in strings.
//
// Create with NewExpander() and configure with Option functions.
// Expander is safe for concurrent use after construction.
type Expander struct {
	missingAction MissingAction
	trim          bool
}

// NewExpander creates a new Expander with the given options.
//
// Default configuration:
//   - MissingAction: MissingEmpty
//   - Trim: disabled
func NewExpander(opts ...Option) *Expander {
	e := &Expander{missingAction: MissingEmpty}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand expands placeholders in s using the provided vars.
//
// Errors are only returned when MissingAction is MissingError and
// a variable is not found. The partially expanded string is still returned.
func (e *Expander) Expand(s string, vars map[string]any) (string, error) {
	if s == "" {
		return "", nil
	}

	var missing []string
	result := placeholder.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val, ok := vars[name]; ok {
			return stringify(val)
		}
		switch e.missingAction {
		case MissingKeep:
			return match
		case MissingError:
			missing = append(missing, name)
			return match
		default:
			return ""
		}
	})

	if e.trim {
		result = strings.TrimSpace(result)
	}
	if len(missing) > 0 {
		return result, &UndefinedVariableError{Names: missing}
	}
	return result, nil
}

// MustExpand expands placeholders in s and panics on error.
func (e *Expander) MustExpand(s string, vars map[string]any) string {
	result, err := e.Expand(s, vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return result
}

// ExpandAll expands placeholders in every string of ss.
// On error (with MissingError), returns nil and the first error.
func (e *Expander) ExpandAll(ss []string, vars map[string]any) ([]string, error) {
	if ss == nil {
		return nil, nil
	}

	results := make([]string, len(ss))
	for i, s := range ss {
		expanded, err := e.Expand(s, vars)
		if err != nil {
			return nil, err
		}
		results[i] = expanded
	}
	return results, nil
}

// Variables returns the distinct placeholder names in s, in order of first use.
func Variables(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// stringify renders a value for substitution. String slices become
// comma-separated lists, which is how prompts enumerate existing items.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// UndefinedVariableError is returned when MissingError is set and
// one or more variables are not found.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// defaultExpander is the package-level expander with default settings.
var defaultExpander = NewExpander()

// Expand expands placeholders in s using the default expander.
// Missing variables become empty strings.
func Expand(s string, vars map[string]any) string {
	// Default expander never returns errors (MissingEmpty).
	result, _ := defaultExpander.Expand(s, vars)
	return result
}
