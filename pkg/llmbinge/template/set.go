package template

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ErrUnknownTemplate is returned by Set.Render for a name that was never loaded.
var ErrUnknownTemplate = errors.New("unknown template")

// Set is an immutable collection of named templates.
type Set struct {
	templates map[string]string
	expander  *Expander
}

// NewSet builds a set from name → text pairs.
func NewSet(templates map[string]string, opts ...Option) *Set {
	copied := make(map[string]string, len(templates))
	for k, v := range templates {
		copied[k] = v
	}
	return &Set{templates: copied, expander: NewExpander(opts...)}
}

// LoadSet reads every *.md file under dir in fsys. A template's name is its
// file name without the extension. Results are trimmed.
func LoadSet(fsys fs.FS, dir string, opts ...Option) (*Set, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read template dir %s: %w", dir, err)
	}

	templates := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", entry.Name(), err)
		}
		templates[strings.TrimSuffix(entry.Name(), ".md")] = string(data)
	}

	return NewSet(templates, append([]Option{WithTrim(true)}, opts...)...), nil
}

// Render expands the named template with vars.
func (s *Set) Render(name string, vars map[string]any) (string, error) {
	text, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return s.expander.Expand(text, vars)
}

// Has reports whether the set contains name.
func (s *Set) Has(name string) bool {
	_, ok := s.templates[name]
	return ok
}

// Names returns the template names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
