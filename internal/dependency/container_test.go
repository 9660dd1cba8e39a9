package dependency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/mcpconverse/internal/config"
	"github.com/crystaldolphin/mcpconverse/internal/providers"
	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

type stubProvider struct{ model string }

func (s *stubProvider) Converse(context.Context, schema.ConverseRequest) (schema.ConverseResponse, error) {
	msg := schema.NewAssistantMessage(schema.NewTextBlock("ok"))
	return schema.ConverseResponse{Output: schema.ConverseOutput{Message: &msg}, StopReason: schema.StopEndTurn}, nil
}

func (s *stubProvider) DefaultModel() string { return s.model }

func TestNew_WiresServices(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.MaxTurns = 3

	var got providers.Params
	c, err := New(context.Background(), &cfg, WithProviderFactory(func(_ context.Context, p providers.Params) (schema.LLMProvider, error) {
		got = p
		return &stubProvider{model: p.DefaultModel}, nil
	}))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "bedrock", got.ProviderName)
	assert.Equal(t, "us-west-2", got.Region)
	assert.Equal(t, cfg.Agent.Model, got.DefaultModel)

	assert.NotNil(t, c.Provider())
	assert.NotNil(t, c.Registry())
	assert.NotNil(t, c.EventBus())
	assert.Equal(t, []string{"default"}, c.MCPManager().ServerNames())

	answer, err := c.Agent().InvokeWithPrompt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "ok", answer)
}

func TestNew_FallsBackToBedrockWithoutKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.Model = "deepseek/deepseek-chat"

	var got providers.Params
	c, err := New(context.Background(), &cfg, WithProviderFactory(func(_ context.Context, p providers.Params) (schema.LLMProvider, error) {
		got = p
		return &stubProvider{}, nil
	}))
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, "bedrock", got.ProviderName)
}

func TestNew_ProviderError(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := New(context.Background(), &cfg, WithProviderFactory(func(context.Context, providers.Params) (schema.LLMProvider, error) {
		return nil, errors.New("no credentials")
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create bedrock provider: no credentials")
}

func TestNewSettings(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agent.RequestTimeout = 30
	cfg.Tools.ToolTimeout = 10
	cfg.Tools.ParallelToolCalls = true

	s := newSettings(&cfg)
	assert.Equal(t, cfg.Agent.Model, s.ModelID)
	assert.Equal(t, cfg.Agent.SystemPrompt, s.SystemPrompt)
	assert.Equal(t, 8192, s.Inference.MaxTokens)
	assert.InDelta(t, 0.999, s.Inference.TopP, 1e-9)
	assert.Equal(t, 20, s.MaxTurns)
	assert.True(t, s.ParallelToolCalls)
	assert.Equal(t, "30s", s.RequestTimeout.String())
	assert.Equal(t, "10s", s.ToolTimeout.String())
}
