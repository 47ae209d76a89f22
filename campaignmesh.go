// Package campaignmesh is the high-level façade for building and running
// marketing campaign agent trees. Most applications:
//  1. load a config.Config (config.Load) and create a CampaignMesh via New
//  2. pick a campaign definition (campaign.Load or campaign.LoadFile)
//  3. run it synchronously (Run) or stream its events (Invoke)
//
// The façade resolves models for the configured provider, wraps them with
// retries, wires logging and tracing and delegates execution to a
// runner.Runner per tree.
package campaignmesh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/hupe1980/campaignmesh/agent"
	"github.com/hupe1980/campaignmesh/campaign"
	"github.com/hupe1980/campaignmesh/config"
	"github.com/hupe1980/campaignmesh/core"
	"github.com/hupe1980/campaignmesh/logging"
	"github.com/hupe1980/campaignmesh/observability"
	"github.com/hupe1980/campaignmesh/runner"
	"github.com/hupe1980/campaignmesh/session"
	"github.com/hupe1980/campaignmesh/tool"
	"github.com/hupe1980/campaignmesh/tool/builtin"
)

// Options configures the CampaignMesh instance.
type Options struct {
	// SessionStore defaults to an in-memory store.
	SessionStore core.SessionStore
	// Logger overrides the logger built from the config.
	Logger logging.Logger
	// LogOutput receives logs and exported spans. Defaults to stderr.
	LogOutput io.Writer
	// Tools overrides the builtin tool registry.
	Tools *tool.Registry
	// ModelFactory overrides provider based model construction.
	ModelFactory ModelFactory
	// EnableStreaming makes leaves emit partial response events.
	EnableStreaming bool
	// EventBufferSize sets channel buffering for run events.
	EventBufferSize int
}

// CampaignMesh aggregates configuration, models, tools and sessions.
type CampaignMesh struct {
	cfg     *config.Config
	opts    Options
	logger  logging.Logger
	tracing *observability.Tracing
	models  *modelCache
}

// New creates a CampaignMesh from an explicit configuration.
func New(cfg *config.Config, optFns ...func(o *Options)) (*CampaignMesh, error) {
	if cfg == nil {
		return nil, errors.New("campaignmesh: nil config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := Options{
		SessionStore:    session.NewInMemoryStore(),
		LogOutput:       os.Stderr,
		EventBufferSize: 100,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		l, err := logging.New(logging.Config{
			Backend: cfg.Log.Backend,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			Output:  opts.LogOutput,
		})
		if err != nil {
			return nil, fmt.Errorf("campaignmesh: %w", err)
		}

		logger = l
	}

	if opts.Tools == nil {
		reg, err := builtin.NewRegistry(builtin.Options{})
		if err != nil {
			return nil, err
		}

		opts.Tools = reg
	}

	tracing, err := observability.NewTracing(cfg.Tracing, opts.LogOutput)
	if err != nil {
		return nil, fmt.Errorf("campaignmesh: %w", err)
	}

	factory := opts.ModelFactory
	if factory == nil {
		factory = ProviderModelFactory(cfg)
	}

	return &CampaignMesh{
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
		tracing: tracing,
		models:  newModelCache(factory, cfg.Runtime.Retry, logger),
	}, nil
}

// Config returns the configuration the instance was built with.
func (m *CampaignMesh) Config() *config.Config { return m.cfg }

// Logger returns the active logger.
func (m *CampaignMesh) Logger() logging.Logger { return m.logger }

// Tools returns the tool registry leaves bind from.
func (m *CampaignMesh) Tools() *tool.Registry { return m.opts.Tools }

// SessionStore returns the session store shared by all runs.
func (m *CampaignMesh) SessionStore() core.SessionStore { return m.opts.SessionStore }

// Build turns a definition into a validated tree. seedKeys name state
// keys supplied at run time.
func (m *CampaignMesh) Build(def *campaign.Definition, seedKeys ...string) (agent.Node, error) {
	return campaign.Build(def, campaign.Deps{
		Models:    m.models.Resolve,
		Tools:     m.opts.Tools,
		Runtime:   m.cfg.Runtime,
		Streaming: m.opts.EnableStreaming,
		SeedKeys:  seedKeys,
	})
}

// Runner returns a runner for root sharing this instance's session store,
// logger and tracer.
func (m *CampaignMesh) Runner(root agent.Node) *runner.Runner {
	return runner.New(root, func(o *runner.Options) {
		o.EventBufferSize = m.opts.EventBufferSize
		o.MaxModelCalls = m.cfg.Runtime.MaxModelCalls
		o.SessionStore = m.opts.SessionStore
		o.Logger = m.logger
		o.Tracer = m.tracing.Tracer
	})
}

// Invoke builds def and starts an asynchronous run.
func (m *CampaignMesh) Invoke(ctx context.Context, def *campaign.Definition, sessionID, prompt string, initialState map[string]any) (*runner.Invocation, error) {
	root, err := m.Build(def, seedKeys(initialState)...)
	if err != nil {
		return nil, err
	}

	return m.Runner(root).Run(ctx, sessionID, core.NewTextContent(core.RoleUser, prompt), initialState)
}

// Run builds def, runs it and waits for the outcome.
func (m *CampaignMesh) Run(ctx context.Context, def *campaign.Definition, sessionID, prompt string, initialState map[string]any) (*runner.Outcome, error) {
	inv, err := m.Invoke(ctx, def, sessionID, prompt, initialState)
	if err != nil {
		return nil, err
	}

	return inv.Wait()
}

// Close flushes traces and releases model clients.
func (m *CampaignMesh) Close(ctx context.Context) error {
	return errors.Join(m.models.Close(), m.tracing.Shutdown(ctx))
}

func seedKeys(state map[string]any) []string {
	return slices.Sorted(maps.Keys(state))
}
