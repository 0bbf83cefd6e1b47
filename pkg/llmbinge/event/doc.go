// Package event publishes generation lifecycle events.
//
// Orchestrators emit an Event for every state change of a node's
// generation: start, each streamed token, each persisted flush, and the
// terminal completed, failed or aborted transition. Map generations also
// emit a phase event when they move between stages.
//
// # Bus for Pub/Sub
//
// LocalBus provides in-memory pub/sub with fan-out:
//
//	bus := event.NewBus(event.BusConfig{BufferSize: 256})
//	defer bus.Close()
//
//	// Subscribe to specific types
//	sub := bus.Subscribe([]event.Type{event.GenerationCompleted}, handler)
//	defer sub.Unsubscribe()
//
//	// Or subscribe to all events
//	bus.SubscribeAll(event.HandlerFunc(func(ctx context.Context, evt event.Event) error {
//	    log.Println(evt.Type, evt.NodeID)
//	    return nil
//	}))
//
// Each subscription has its own goroutine and buffered channel, so a
// subscriber sees events in publish order. In non-blocking mode a full
// buffer drops the event and reports it through BusConfig.OnDrop.
package event
