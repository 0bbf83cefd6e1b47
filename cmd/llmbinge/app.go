package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/viper"

	"github.com/randalmurphal/llmbinge/pkg/llmbinge/config"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/event"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/generate"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/llm"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/observability"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/session"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/storage"
	"github.com/randalmurphal/llmbinge/pkg/llmbinge/tree"
)

// current is the app opened for the running command.
var current *app

// app bundles everything a command needs.
type app struct {
	cfg       config.AppConfig
	layered   config.Config
	overrides config.Config
	store     storage.Store
	sessions  *session.Manager
	client    llm.Client
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	bus       *event.LocalBus
}

func openApp(ctx context.Context) (*app, error) {
	layered := layeredConfig()

	// The store location cannot come from stored overrides.
	bootstrap, err := config.Decode(layered)
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(os.Stderr, bootstrap.Log.Level, bootstrap.Log.Format)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, bootstrap.Storage.URL)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	stored, err := store.ConfigOverrides(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		stored, err = map[string]any{}, nil
	}
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load config overrides: %w", err)
	}
	overrides := config.New(stored)

	cfg, err := config.Resolve(layered, overrides)
	if err != nil {
		store.Close()
		return nil, err
	}

	metrics := observability.NewMetricsRecorder()
	a := &app{
		cfg:       cfg,
		layered:   layered,
		overrides: overrides,
		store:     store,
		client:    llm.NewHTTPClient(llm.WithLogger(logger)),
		logger:    logger,
		metrics:   metrics,
		spans:     observability.NewSpanManager(),
		bus: event.NewBus(event.BusConfig{
			BufferSize: 1024,
			OnError: func(evt event.Event, subscriberID string, err error) {
				logger.Debug("event handler failed", "type", evt.Type, "subscriber", subscriberID, "error", err)
			},
		}),
	}
	a.sessions = session.NewManager(store, session.WithLogger(logger), session.WithMetrics(metrics))
	return a, nil
}

// Close releases the bus and the store.
func (a *app) Close() error {
	a.bus.Close()
	return a.store.Close()
}

func (a *app) orchestrator() *generate.Orchestrator {
	return generate.NewOrchestrator(a.client, a.cfg.LLM, a.sessions,
		generate.WithDebounce(a.cfg.Generation.DebounceWindow),
		generate.WithMaxPendingTokens(a.cfg.Generation.MaxPendingTokens),
		generate.WithLogger(a.logger),
		generate.WithMetrics(a.metrics),
		generate.WithSpans(a.spans),
		generate.WithEventBus(a.bus),
	)
}

func (a *app) mapOrchestrator() *generate.MapOrchestrator {
	return generate.NewMapOrchestrator(a.client, a.cfg.LLM, a.sessions,
		generate.WithLogger(a.logger),
		generate.WithMetrics(a.metrics),
		generate.WithSpans(a.spans),
		generate.WithEventBus(a.bus),
	)
}

// loadNode loads the session holding nodeID and returns the node.
func (a *app) loadNode(ctx context.Context, nodeID string) (tree.Node, error) {
	stored, err := a.store.Node(ctx, nodeID)
	if errors.Is(err, storage.ErrNotFound) {
		return tree.Node{}, fmt.Errorf("node %s not found", nodeID)
	}
	if err != nil {
		return tree.Node{}, err
	}
	if err := a.sessions.LoadSession(ctx, stored.SessionID); err != nil {
		return tree.Node{}, err
	}
	node, ok := a.sessions.Node(nodeID)
	if !ok {
		return tree.Node{}, fmt.Errorf("node %s not found", nodeID)
	}
	return node, nil
}

// layeredConfig merges the embedded defaults with whatever viper found in
// the config file, the environment and the --store flag.
func layeredConfig() config.Config {
	defaults := config.Defaults()
	for key, v := range flatten("", defaults.Raw()) {
		viper.SetDefault(key, v)
	}
	// Keys without a default are still read from the environment.
	_ = viper.BindEnv("llm.api_key")

	keys := viper.AllKeys()
	sort.Strings(keys)

	layered := defaults
	for _, key := range keys {
		v := viper.Get(key)
		if s, ok := v.(string); ok && key != "llm.api_key" {
			// Environment values arrive as strings.
			v = config.ParseValue(s)
		}
		if v == nil || v == "" {
			continue
		}
		layered = layered.Set(key, v)
	}
	return layered
}

// flatten maps the dotted path of every non-map value in m to the value.
func flatten(prefix string, m map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			for sk, sv := range flatten(path, sub) {
				out[sk] = sv
			}
			continue
		}
		out[path] = v
	}
	return out
}
