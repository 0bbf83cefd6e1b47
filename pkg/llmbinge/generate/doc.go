// Package generate drives streaming generations into the content tree.
//
// An Orchestrator runs article generations: tokens are appended to the
// node as they arrive and persisted in coalesced flushes, so a crash loses
// at most one debounce window of text. A MapOrchestrator runs the two-stage
// map generation (topics, then layout) and persists the result once.
//
// At most one generation is active per node. Starting another aborts the
// first, and an aborted run never touches the node again, even if its
// stream delivers late callbacks.
//
// Basic usage:
//
//	orch := generate.NewOrchestrator(client, cfg, manager,
//	    generate.WithDebounce(500*time.Millisecond),
//	    generate.WithLogger(logger),
//	)
//	h := orch.Generate(ctx, nodeID, "Octopus", "")
//	if err := h.Wait(ctx); err != nil {
//	    // partial content stays on the node
//	}
package generate
