// Package dependency wires core mcpconverse services using go.uber.org/dig.
package dependency

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/dig"

	"github.com/crystaldolphin/mcpconverse/internal/agent"
	"github.com/crystaldolphin/mcpconverse/internal/bus"
	"github.com/crystaldolphin/mcpconverse/internal/config"
	"github.com/crystaldolphin/mcpconverse/internal/mcp"
	"github.com/crystaldolphin/mcpconverse/internal/providers"
	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

// eventBufferSize bounds the notifications queued between two turns.
const eventBufferSize = 64

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	provider schema.LLMProvider
	registry *tools.Registry
	events   *bus.EventBus
	servers  *mcp.Manager
	agent    *agent.ConverseAgent
}

func (c *Container) Provider() schema.LLMProvider { return c.provider }
func (c *Container) Registry() *tools.Registry    { return c.registry }
func (c *Container) EventBus() *bus.EventBus      { return c.events }
func (c *Container) MCPManager() *mcp.Manager     { return c.servers }
func (c *Container) Agent() *agent.ConverseAgent  { return c.agent }

// Close releases the MCP connections and the event bus.
func (c *Container) Close() {
	c.servers.Close()
	c.events.Close()
}

// ProviderFactory builds the inference provider. Tests substitute a fake.
type ProviderFactory func(ctx context.Context, p providers.Params) (schema.LLMProvider, error)

// Option customises container construction.
type Option func(*options)

type options struct {
	newProvider ProviderFactory
}

// WithProviderFactory replaces providers.New.
func WithProviderFactory(f ProviderFactory) Option {
	return func(o *options) { o.newProvider = f }
}

// New builds and wires all core services from cfg. It does not connect to
// any MCP server; callers do that so they can report progress.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	o := options{newProvider: providers.New}
	for _, opt := range opts {
		opt(&o)
	}

	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(func(cfg *config.Config) (schema.LLMProvider, error) {
		return newProvider(ctx, cfg, o.newProvider)
	}); err != nil {
		return nil, err
	}
	if err := d.Provide(tools.NewRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newEventBus); err != nil {
		return nil, err
	}
	if err := d.Provide(newMCPManager); err != nil {
		return nil, err
	}
	if err := d.Provide(newSettings); err != nil {
		return nil, err
	}
	if err := d.Provide(newConverseAgent); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		provider schema.LLMProvider,
		registry *tools.Registry,
		events *bus.EventBus,
		servers *mcp.Manager,
		conv *agent.ConverseAgent,
	) {
		result = &Container{
			provider: provider,
			registry: registry,
			events:   events,
			servers:  servers,
			agent:    conv,
		}
	})
	if err != nil {
		return nil, dig.RootCause(err)
	}
	return result, nil
}

func newProvider(ctx context.Context, cfg *config.Config, factory ProviderFactory) (schema.LLMProvider, error) {
	params := cfg.ProviderParams()
	p, err := factory(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create %s provider: %w", params.ProviderName, err)
	}
	return p, nil
}

func newEventBus() *bus.EventBus {
	return bus.NewEventBus(eventBufferSize)
}

func newMCPManager(cfg *config.Config, events *bus.EventBus) *mcp.Manager {
	return mcp.NewManager(cfg.Tools.MCPServers, events)
}

func newSettings(cfg *config.Config) agent.Settings {
	return agent.Settings{
		ModelID:      cfg.Agent.Model,
		SystemPrompt: cfg.Agent.SystemPrompt,
		Inference: schema.InferenceConfig{
			MaxTokens:     cfg.Agent.MaxTokens,
			Temperature:   cfg.Agent.Temperature,
			TopP:          cfg.Agent.TopP,
			StopSequences: cfg.Agent.StopSequences,
		},
		MaxTurns:          cfg.Agent.MaxTurns,
		ParallelToolCalls: cfg.Tools.ParallelToolCalls,
		RequestTimeout:    time.Duration(cfg.Agent.RequestTimeout) * time.Second,
		ToolTimeout:       time.Duration(cfg.Tools.ToolTimeout) * time.Second,
	}
}

func newConverseAgent(cfg *config.Config, p schema.LLMProvider, reg *tools.Registry, settings agent.Settings) *agent.ConverseAgent {
	a := agent.NewConverseAgent(p, settings)
	a.SetTools(reg)
	a.SetResponseOutputTags(cfg.Agent.OutputTags)
	return a
}
