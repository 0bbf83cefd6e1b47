package llm

import (
	"errors"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config selects the endpoint, model and sampling parameters for one call.
type Config struct {
	Endpoint    string  `json:"endpoint" yaml:"endpoint"`
	Model       string  `json:"model" yaml:"model"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
	APIKey      string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// Validate checks that the config can be sent to an endpoint.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Endpoint, validation.Required, validation.By(httpURL)),
		validation.Field(&c.Model, validation.Required),
		validation.Field(&c.Temperature, validation.Min(0.0), validation.Max(2.0)),
		validation.Field(&c.MaxTokens, validation.Required, validation.Min(1)),
		validation.Field(&c.TopP, validation.Min(0.0), validation.Max(1.0)),
	)
}

// WithTemperature returns a copy of c using temperature t.
func (c Config) WithTemperature(t float64) Config {
	c.Temperature = t
	return c
}

// CompletionsURL returns the chat completions URL for the endpoint.
func (c Config) CompletionsURL() string {
	return strings.TrimRight(c.Endpoint, "/") + "/chat/completions"
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// Message is a conversation turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role identifies the message sender.
type Role string

// Standard message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// System returns a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User returns a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// chatRequest is the JSON body POSTed to the completions endpoint.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	TopP        float64   `json:"top_p"`
	Stream      bool      `json:"stream"`
}

// chatChunk is one streamed event payload.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}
