package extract

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
)

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// Placement positions a topic in normalized map coordinates.
type Placement struct {
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Group is a named cluster of topics on a map.
type Group struct {
	Name   string      `json:"name"`
	Topics []Placement `json:"topics"`
}

// MapLayout is the structured result of the layout stage.
type MapLayout struct {
	Groups []Group `json:"groups"`
}

// TopicNames returns every placed topic name in group order.
func (l MapLayout) TopicNames() []string {
	var out []string
	for _, g := range l.Groups {
		for _, p := range g.Topics {
			out = append(out, p.Name)
		}
	}
	return out
}

// JSON encodes the layout for storage as node content.
func (l MapLayout) JSON() (string, error) {
	data, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type rawLayout struct {
	Groups *[]rawGroup `json:"groups"`
}

type rawGroup struct {
	Name   string       `json:"name"`
	Topics *[]Placement `json:"topics"`
}

// Layout parses a map layout from model output. The JSON may be wrapped in a
// fenced code block or surrounded by prose. The result must contain a groups
// array whose groups each contain a topics array. Coordinates are clamped to
// [0, 1]. Any failure is a *errors.ParseError.
func Layout(text string) (MapLayout, error) {
	candidate := text
	if m := codeFence.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		candidate = m[1]
	}
	candidate = strings.TrimSpace(candidate)

	var raw rawLayout
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		start := strings.Index(candidate, "{")
		end := strings.LastIndex(candidate, "}")
		if start < 0 || end <= start {
			return MapLayout{}, parseError(text, "no JSON object in layout response", err)
		}
		raw = rawLayout{}
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &raw); err != nil {
			return MapLayout{}, parseError(text, "invalid layout JSON", err)
		}
	}

	if raw.Groups == nil {
		return MapLayout{}, parseError(text, "invalid layout: missing groups array", nil)
	}

	layout := MapLayout{Groups: make([]Group, 0, len(*raw.Groups))}
	for i, g := range *raw.Groups {
		if g.Topics == nil {
			return MapLayout{}, parseError(text, "invalid layout: group "+g.Name+" missing topics array", nil)
		}
		group := Group{Name: g.Name, Topics: make([]Placement, len(*g.Topics))}
		for j, p := range *g.Topics {
			p.X = clamp01(p.X)
			p.Y = clamp01(p.Y)
			group.Topics[j] = p
		}
		if group.Name == "" {
			group.Name = "Group " + strconv.Itoa(i+1)
		}
		layout.Groups = append(layout.Groups, group)
	}
	return layout, nil
}

func parseError(input, msg string, err error) *llmerrors.ParseError {
	return &llmerrors.ParseError{Input: llmerrors.Excerpt(input, 200), Message: msg, Err: err}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
