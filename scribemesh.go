// Package scribemesh provides a high-level façade over the session registry,
// decision engine, dispatcher and realtime gateway enabling rapid
// construction of speech-driven agent pipelines. Most applications interact
// with this package by:
//  1. Creating a ScribeMesh via New() (optionally overriding default in-memory services)
//  2. Registering agents and their activation configs
//  3. Mounting Handler() on an HTTP server for realtime clients
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable store, a Redis cache and a
// structured logger.
package scribemesh

import (
	"time"

	"github.com/scribemesh/scribemesh/agents"
	"github.com/scribemesh/scribemesh/cache"
	"github.com/scribemesh/scribemesh/config"
	"github.com/scribemesh/scribemesh/core"
	"github.com/scribemesh/scribemesh/decision"
	"github.com/scribemesh/scribemesh/dispatch"
	"github.com/scribemesh/scribemesh/extract"
	"github.com/scribemesh/scribemesh/gateway"
	"github.com/scribemesh/scribemesh/logging"
	"github.com/scribemesh/scribemesh/pipeline"
	"github.com/scribemesh/scribemesh/registry"
	"github.com/scribemesh/scribemesh/store"
)

// Options configures the ScribeMesh instance.
type Options struct {
	// Store persists sessions, segments and generated artifacts.
	// Defaults to an in-memory implementation.
	Store core.Store

	// Cache shares session snapshots across instances. Defaults to an
	// in-memory implementation (single-instance only).
	Cache core.Cache

	// Extractor performs entity/intent extraction. Defaults to the
	// deterministic keyword extractor.
	Extractor core.Extractor

	// Configs supplies agent activation configs, re-read per segment.
	// Defaults to enabling every registered agent with triggering intents
	// and required entities matching the keyword extractor's output, so the
	// built-in agents activate out of the box.
	Configs core.ConfigProvider

	// Registry of processing agents. Defaults to the built-in set.
	Agents *agents.Registry

	// MaxConcurrentAgents bounds agent fan-out within one dispatch pass.
	MaxConcurrentAgents int

	// QueueWorkers and QueueDepth size the detached orchestration pool.
	QueueWorkers int
	QueueDepth   int

	// SnapshotTTL is the sliding expiration for cached snapshots.
	SnapshotTTL time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// ScribeMesh aggregates the wired components of one server instance.
type ScribeMesh struct {
	opts       Options
	hub        *gateway.Hub
	registry   *registry.Registry
	pipe       *pipeline.Pipeline
	queue      *pipeline.Queue
	gateway    *gateway.Gateway
	ownedCache *cache.InMemory
}

// New creates a fully wired ScribeMesh instance with optional overrides.
// Any unset service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *ScribeMesh {
	opts := Options{
		Store:               nil,
		Cache:               nil,
		Extractor:           extract.NewKeyword(),
		Agents:              agents.Defaults(),
		MaxConcurrentAgents: 8,
		QueueWorkers:        4,
		QueueDepth:          256,
		SnapshotTTL:         30 * time.Minute,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemory()
	}
	var ownedCache *cache.InMemory
	if opts.Cache == nil {
		ownedCache = cache.NewInMemory(time.Minute)
		opts.Cache = ownedCache
	}
	agentSet := opts.Agents.All()
	if opts.Configs == nil {
		opts.Configs = defaultConfigs(agentSet)
	}

	hub := gateway.NewHub(opts.Logger)
	reg := registry.New(opts.Store, opts.Cache, hub, func(o *registry.Options) {
		o.SnapshotTTL = opts.SnapshotTTL
		o.Logger = opts.Logger
	})
	hub.SetResolver(reg.Connections)

	engine := decision.New(func(o *decision.Options) { o.Logger = opts.Logger })
	dispatcher := dispatch.New(opts.Store, func(o *dispatch.Options) {
		o.MaxConcurrent = opts.MaxConcurrentAgents
		o.Logger = opts.Logger
	})
	pipe := pipeline.New(opts.Extractor, engine, dispatcher, opts.Configs, opts.Store, agentSet,
		func(o *pipeline.Options) { o.Logger = opts.Logger })
	queue := pipeline.NewQueue(func(o *pipeline.QueueOptions) {
		o.Workers = opts.QueueWorkers
		o.Depth = opts.QueueDepth
		o.Logger = opts.Logger
	})
	gw := gateway.New(hub, reg, pipe, queue, opts.Store, func(o *gateway.Options) {
		o.Logger = opts.Logger
	})

	return &ScribeMesh{opts: opts, hub: hub, registry: reg, pipe: pipe, queue: queue, gateway: gw, ownedCache: ownedCache}
}

// Handler returns the realtime websocket endpoint.
func (m *ScribeMesh) Handler() *gateway.Gateway { return m.gateway }

// Registry returns the session registry for direct lifecycle operations.
func (m *ScribeMesh) Registry() *registry.Registry { return m.registry }

// Pipeline returns the orchestration entry point for embedded callers that
// bypass the realtime gateway.
func (m *ScribeMesh) Pipeline() *pipeline.Pipeline { return m.pipe }

// Close drains the detached work queue and stops services the instance
// created itself. Call during shutdown after the HTTP server stopped
// accepting connections.
func (m *ScribeMesh) Close() {
	m.queue.Close()
	if m.ownedCache != nil {
		m.ownedCache.Close()
	}
}

// builtinDefaults maps the built-in agents to activation rules matching the
// keyword extractor's intent categories and entity types.
var builtinDefaults = map[string]core.AgentConfig{
	"summary": {
		Enabled:             true,
		ConfidenceThreshold: 0.5,
		TriggeringIntents:   []string{"Summary", "General"},
	},
	"prescription": {
		Enabled:             true,
		ConfidenceThreshold: 0.7,
		TriggeringIntents:   []string{"Prescription"},
		RequiredEntities:    []string{agents.EntityMedicationName},
	},
	"followup": {
		Enabled:             true,
		ConfidenceThreshold: 0.7,
		TriggeringIntents:   []string{"FollowUp"},
		RequiredEntities:    []string{agents.EntityTimeframe},
	},
	"actionitem": {
		Enabled:             true,
		ConfidenceThreshold: 0.7,
		TriggeringIntents:   []string{"ActionItem"},
		RequiredEntities:    []string{agents.EntityTask},
	},
}

// defaultConfigs wires every registered agent to the keyword extractor's
// output so agents fire without a config file. Real deployments supply a
// config.Provider instead.
func defaultConfigs(agentSet []core.Agent) core.ConfigProvider {
	configs := make(config.Static, len(agentSet))
	for _, agent := range agentSet {
		cfg, ok := builtinDefaults[agent.Name()]
		if !ok {
			// Custom agents default to firing on every classified intent.
			cfg = core.AgentConfig{
				Enabled:           true,
				TriggeringIntents: allIntentCategories(),
			}
		}
		cfg.Name = agent.Name()
		configs[agent.Name()] = cfg
	}
	return configs
}

func allIntentCategories() []string {
	categories := make([]string, 0, len(extract.DefaultIntentRules)+1)
	for category := range extract.DefaultIntentRules {
		categories = append(categories, category)
	}
	return append(categories, "General")
}
