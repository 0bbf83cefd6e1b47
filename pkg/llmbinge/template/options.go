package template

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingEmpty replaces the placeholder with an empty string when
	// the variable is not found. This is the default behavior.
	MissingEmpty MissingAction = iota

	// MissingKeep keeps the placeholder as-is when the variable is not found.
	MissingKeep

	// MissingError returns an error when a variable is not found.
	MissingError
)

// Option configures an Expander.
type Option func(*Expander)

// WithMissingAction sets how missing variables are handled.
//
// Default: MissingEmpty
//
// Example:
//
//	exp := NewExpander(WithMissingAction(MissingError))
//	_, err := exp.Expand("${missing}", nil)
//	// err: "undefined variable: missing"
func WithMissingAction(action MissingAction) Option {
	return func(e *Expander) {
		e.missingAction = action
	}
}

// WithTrim trims leading and trailing whitespace from the expanded result.
// Prompt files usually end with a newline the model does not need.
func WithTrim(enabled bool) Option {
	return func(e *Expander) {
		e.trim = enabled
	}
}
