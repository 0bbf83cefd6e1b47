/*
Package template expands ${var} placeholders in prompt text.

# Basic Usage

	result := template.Expand("Write about ${topic}", map[string]any{"topic": "Octopus"})
	// result: "Write about Octopus"

Missing variables expand to the empty string by default, so optional
sections of a prompt simply disappear:

	template.Expand("Focus: ${aspect}", nil)
	// "Focus: "

Configure other behavior with options:

	exp := template.NewExpander(template.WithMissingAction(template.MissingError))
	_, err := exp.Expand("Hello ${missing}", nil)
	// err: "undefined variable: missing"

# Prompt Sets

A Set holds named templates loaded from a file system, typically an
embed.FS of markdown prompts:

	//go:embed prompts/*.md
	var promptFS embed.FS

	prompts, err := template.LoadSet(promptFS, "prompts")
	text, err := prompts.Render("article", map[string]any{"topic": "Tides"})

Only the brace form is recognised. A bare dollar sign ("$5", "$HOME") is
left untouched, which keeps prices and shell snippets in prompts intact.

# Thread Safety

Expander and Set are safe for concurrent use after construction.
*/
package template
