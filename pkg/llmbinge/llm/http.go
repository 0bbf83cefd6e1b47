package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
)

const (
	defaultReadSize     = 4096
	defaultMaxErrorBody = 64 << 10
)

// HTTPClient implements Client over HTTP with server-sent events.
type HTTPClient struct {
	http         *http.Client
	logger       *slog.Logger
	readSize     int
	maxErrorBody int64
}

// HTTPOption configures HTTPClient.
type HTTPOption func(*HTTPClient)

// NewHTTPClient creates a streaming client. Requests have no client-side
// timeout; callers bound them with the context.
func NewHTTPClient(opts ...HTTPOption) *HTTPClient {
	c := &HTTPClient{
		http:         &http.Client{},
		logger:       slog.New(slog.DiscardHandler),
		readSize:     defaultReadSize,
		maxErrorBody: defaultMaxErrorBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithHTTPClient sets the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.http = hc }
}

// WithLogger sets the logger for request lifecycle messages.
func WithLogger(logger *slog.Logger) HTTPOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReadSize sets the body read buffer size.
func WithReadSize(n int) HTTPOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.readSize = n
		}
	}
}

// Stream implements Client.
func (c *HTTPClient) Stream(ctx context.Context, cfg Config, messages []Message, cb Callbacks) {
	endpoint := cfg.CompletionsURL()
	start := time.Now()
	logger := c.logger.With(slog.String("endpoint", endpoint), slog.String("model", cfg.Model))

	body, err := json.Marshal(chatRequest{
		Model:       cfg.Model,
		Messages:    messages,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		TopP:        cfg.TopP,
		Stream:      true,
	})
	if err != nil {
		cb.fail(&llmerrors.TransportError{Endpoint: endpoint, Err: err})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		cb.fail(&llmerrors.TransportError{Endpoint: endpoint, Err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	logger.Debug("llm request started", slog.Int("messages", len(messages)))

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug("llm request aborted")
			return
		}
		logger.Warn("llm request failed", slog.String("error", err.Error()))
		cb.fail(&llmerrors.TransportError{Endpoint: endpoint, Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxErrorBody))
		if ctx.Err() != nil {
			return
		}
		logger.Warn("llm request rejected", slog.Int("status", resp.StatusCode))
		cb.fail(&llmerrors.TransportError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       string(data),
		})
		return
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		cb.fail(&llmerrors.StreamError{Message: "response body is empty"})
		return
	}

	tokens := 0
	dec := newDecoder(func(tok string) {
		if ctx.Err() != nil {
			return
		}
		tokens++
		cb.token(tok)
	})

	buf := make([]byte, c.readSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if ctx.Err() != nil {
				logger.Debug("llm stream aborted", slog.Int("tokens", tokens))
				return
			}
			dec.Feed(buf[:n])
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				logger.Debug("llm stream aborted", slog.Int("tokens", tokens))
				return
			}
			logger.Warn("llm stream failed",
				slog.String("error", readErr.Error()),
				slog.Int("tokens", tokens))
			cb.fail(&llmerrors.StreamError{
				Message: "read response body",
				Partial: dec.Content(),
				Err:     readErr,
			})
			return
		}
	}

	dec.Flush()
	if ctx.Err() != nil {
		logger.Debug("llm stream aborted", slog.Int("tokens", tokens))
		return
	}

	logger.Debug("llm stream complete",
		slog.Int("tokens", tokens),
		slog.Duration("duration", time.Since(start)))
	cb.complete(dec.Content())
}

// Compile-time interface check.
var _ Client = (*HTTPClient)(nil)
