package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
)

// drainTimeout bounds how long a command waits for queued events to print
// after its generation stopped.
const drainTimeout = 2 * time.Second

// streamPrinter writes token events for one node to w and reports when the
// node's generation reached a terminal event.
type streamPrinter struct {
	w      io.Writer
	nodeID string
	done   chan event.Event
}

func newStreamPrinter(w io.Writer, nodeID string) *streamPrinter {
	return &streamPrinter{w: w, nodeID: nodeID, done: make(chan event.Event, 1)}
}

// Handle implements event.Handler.
func (p *streamPrinter) Handle(_ context.Context, evt event.Event) error {
	if evt.NodeID != p.nodeID {
		return nil
	}
	switch {
	case evt.Type == event.GenerationToken:
		tok, _ := evt.Payload.(event.TokenPayload)
		_, err := io.WriteString(p.w, tok.Token)
		return err
	case evt.Type == event.MapPhase:
		phase, _ := evt.Payload.(event.PhasePayload)
		_, err := fmt.Fprintf(p.w, "... %s\n", phase.Phase)
		return err
	case evt.Type.Terminal():
		select {
		case p.done <- evt:
		default:
		}
	}
	return nil
}

// wait returns the terminal event, or false if none arrived in time.
func (p *streamPrinter) wait() (event.Event, bool) {
	select {
	case evt := <-p.done:
		return evt, true
	case <-time.After(drainTimeout):
		return event.Event{}, false
	}
}

// subscribe attaches a printer for nodeID to the app's bus.
func (a *app) subscribe(w io.Writer, nodeID string) (*streamPrinter, func(), error) {
	p := newStreamPrinter(w, nodeID)
	sub, err := a.bus.Subscribe([]event.Type{
		event.GenerationToken,
		event.MapPhase,
		event.GenerationCompleted,
		event.GenerationFailed,
		event.GenerationAborted,
	}, p)
	if err != nil {
		return nil, nil, err
	}
	return p, sub.Unsubscribe, nil
}
