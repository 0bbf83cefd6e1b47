package llm

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
)

// MockCall records one Stream invocation.
type MockCall struct {
	Config   Config
	Messages []Message
}

// MockClient is a scripted Client for tests and offline demos.
// Responses are split into word tokens (or fixed-size chunks) and delivered
// through the callbacks like a real stream.
type MockClient struct {
	mu         sync.Mutex
	responses  []string
	next       int
	err        error
	failAfter  int
	chunkSize  int
	tokenDelay time.Duration
	gate       <-chan struct{}

	// Calls lists every Stream invocation in order.
	Calls []MockCall
}

// NewMockClient creates a client that always streams response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}, failAfter: -1}
}

// WithResponses sets responses returned in order, cycling at the end.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.next = 0
	return m
}

// WithError makes every call fail with err before any token.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFailAfter makes every call fail with a StreamError after n tokens.
func (m *MockClient) WithFailAfter(n int) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithChunkSize splits responses into chunks of n runes instead of words.
func (m *MockClient) WithChunkSize(n int) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkSize = n
	return m
}

// WithTokenDelay waits d before each token.
func (m *MockClient) WithTokenDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokenDelay = d
	return m
}

// WithGate blocks each call before its first token until gate is closed.
func (m *MockClient) WithGate(gate <-chan struct{}) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	return m
}

// CallCount returns the number of Stream calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent call, or nil.
func (m *MockClient) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	call := m.Calls[len(m.Calls)-1]
	return &call
}

// Stream implements Client.
func (m *MockClient) Stream(ctx context.Context, cfg Config, messages []Message, cb Callbacks) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Config: cfg, Messages: append([]Message(nil), messages...)})
	var response string
	if len(m.responses) > 0 {
		response = m.responses[m.next%len(m.responses)]
		m.next++
	}
	err, failAfter, chunkSize, delay, gate := m.err, m.failAfter, m.chunkSize, m.tokenDelay, m.gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		cb.fail(err)
		return
	}

	var sent strings.Builder
	for i, tok := range splitTokens(response, chunkSize) {
		if failAfter >= 0 && i >= failAfter {
			cb.fail(&llmerrors.StreamError{Message: "mock stream interrupted", Partial: sent.String()})
			return
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		sent.WriteString(tok)
		cb.token(tok)
	}

	if ctx.Err() != nil {
		return
	}
	if failAfter >= 0 {
		cb.fail(&llmerrors.StreamError{Message: "mock stream interrupted", Partial: sent.String()})
		return
	}
	cb.complete(sent.String())
}

// splitTokens splits s into word tokens that keep their trailing space, or
// into chunks of size runes when size is positive.
func splitTokens(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size <= 0 {
		var out []string
		for _, tok := range strings.SplitAfter(s, " ") {
			if tok != "" {
				out = append(out, tok)
			}
		}
		return out
	}
	var out []string
	for len(s) > 0 {
		end, count := 0, 0
		for end < len(s) && count < size {
			_, w := utf8.DecodeRuneInString(s[end:])
			end += w
			count++
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)
