package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
)

// Built-in fallbacks for keys the defaults file may omit.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
	DefaultTopP        = 1.0
	DefaultDebounce    = 500 * time.Millisecond
)

// AppConfig is the resolved application configuration.
type AppConfig struct {
	LLM           llm.Config       `json:"llm"`
	Aspects       []string         `json:"aspects"`
	StarterTopics []string         `json:"topics"`
	Generation    GenerationConfig `json:"generation"`
	Log           LogConfig        `json:"log"`
	Storage       StorageConfig    `json:"storage"`
}

// GenerationConfig tunes streaming persistence.
type GenerationConfig struct {
	// DebounceWindow is how long token updates coalesce before a flush.
	DebounceWindow time.Duration `json:"debounce"`

	// MaxPendingTokens forces a flush once this many tokens are unflushed.
	// Zero disables the bound.
	MaxPendingTokens int `json:"max_pending_tokens"`
}

// LogConfig selects the log handler.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	URL string `json:"url"`
}

// Validate implements validation.Validatable.
func (a AppConfig) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.LLM),
		validation.Field(&a.Generation),
		validation.Field(&a.Log),
	)
}

// Validate implements validation.Validatable.
func (g GenerationConfig) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.DebounceWindow, validation.Min(time.Duration(0))),
		validation.Field(&g.MaxPendingTokens, validation.Min(0)),
	)
}

// Validate implements validation.Validatable.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("text", "json")),
	)
}

// Decode builds an AppConfig from c, filling gaps with built-in fallbacks,
// and validates it. Validation failures are *errors.ValidationError.
func Decode(c Config) (AppConfig, error) {
	app := AppConfig{
		LLM: llm.Config{
			Endpoint:    c.String("llm.endpoint", ""),
			Model:       c.String("llm.model", ""),
			Temperature: c.Float("llm.temperature", DefaultTemperature),
			MaxTokens:   c.Int("llm.max_tokens", DefaultMaxTokens),
			TopP:        c.Float("llm.top_p", DefaultTopP),
			APIKey:      c.String("llm.api_key", ""),
		},
		Aspects:       c.StringSlice("aspects.fixed", []string{}),
		StarterTopics: c.StringSlice("topics.starters", []string{}),
		Generation: GenerationConfig{
			DebounceWindow:   c.Duration("generation.debounce", DefaultDebounce),
			MaxPendingTokens: c.Int("generation.max_pending_tokens", 0),
		},
		Log: LogConfig{
			Level:  c.String("log.level", "info"),
			Format: c.String("log.format", "text"),
		},
		Storage: StorageConfig{
			URL: c.String("storage.url", "memory://"),
		},
	}

	if err := app.Validate(); err != nil {
		return AppConfig{}, toValidationError(err)
	}
	return app, nil
}

// Resolve layers stored overrides over defaults and decodes the result.
// The llm section merges field by field; aspect and topic lists replace
// the defaults wholesale.
func Resolve(defaults, overrides Config) (AppConfig, error) {
	return Decode(defaults.Merge(overrides))
}

// Overrides converts the user-editable parts of a to a Config suitable for
// storing as config overrides. The API key is left out.
func (a AppConfig) Overrides() Config {
	return New(map[string]any{
		"llm": map[string]any{
			"endpoint":    a.LLM.Endpoint,
			"model":       a.LLM.Model,
			"temperature": a.LLM.Temperature,
			"max_tokens":  a.LLM.MaxTokens,
			"top_p":       a.LLM.TopP,
		},
		"aspects": map[string]any{"fixed": slices.Clone(a.Aspects)},
		"topics":  map[string]any{"starters": slices.Clone(a.StarterTopics)},
	})
}

// toValidationError flattens ozzo's nested error map into the first failing
// field, using a dotted path.
func toValidationError(err error) error {
	var errs validation.Errors
	if !errors.As(err, &errs) {
		var internal validation.InternalError
		if errors.As(err, &internal) {
			return fmt.Errorf("validate config: %w", err)
		}
		return &llmerrors.ValidationError{Message: err.Error()}
	}

	field, msg := firstFieldError("", errs)
	return &llmerrors.ValidationError{Field: field, Message: msg}
}

func firstFieldError(prefix string, errs validation.Errors) (string, string) {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		var nested validation.Errors
		if errors.As(errs[k], &nested) {
			return firstFieldError(path, nested)
		}
		return path, errs[k].Error()
	}
	return prefix, "invalid"
}
