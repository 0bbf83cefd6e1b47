// Package llm streams chat completions from an OpenAI-compatible endpoint.
//
// A Client delivers output through Callbacks. Stream blocks until the
// response is finished; during that time OnToken fires once per non-empty
// content delta in arrival order, followed by exactly one of OnComplete or
// OnError. When the context is cancelled neither fires.
package llm

import (
	"context"

	llmerrors "github.com/randalmurphal/llmbinge/pkg/llmbinge/errors"
)

// Client streams chat completions.
type Client interface {
	Stream(ctx context.Context, cfg Config, messages []Message, cb Callbacks)
}

// Callbacks receive the output of a Stream call. Nil fields are ignored.
type Callbacks struct {
	OnToken    func(token string)
	OnComplete func(full string)
	OnError    func(err error)
}

func (cb Callbacks) token(s string) {
	if cb.OnToken != nil {
		cb.OnToken(s)
	}
}

func (cb Callbacks) complete(s string) {
	if cb.OnComplete != nil {
		cb.OnComplete(s)
	}
}

func (cb Callbacks) fail(err error) {
	if cb.OnError != nil {
		cb.OnError(err)
	}
}

// Complete runs a stream to the end and returns the full text.
// A cancelled context yields ctx.Err().
func Complete(ctx context.Context, c Client, cfg Config, messages []Message) (string, error) {
	var (
		result   string
		err      error
		finished bool
	)
	c.Stream(ctx, cfg, messages, Callbacks{
		OnComplete: func(full string) {
			result = full
			finished = true
		},
		OnError: func(e error) {
			err = e
			finished = true
		},
	})

	if err != nil {
		return "", err
	}
	if !finished {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &llmerrors.StreamError{Message: "stream ended without completion"}
	}
	return result, nil
}
