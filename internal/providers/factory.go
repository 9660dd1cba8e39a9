package providers

import (
	"context"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// Params are the raw values needed to construct any schema.LLMProvider.
// Extracted from config.Config by the caller to avoid an import cycle.
type Params struct {
	APIKey       string
	APIBase      string
	ExtraHeaders map[string]string
	DefaultModel string
	ProviderName string // registry name, e.g. "bedrock", "openrouter"

	// Bedrock only.
	Region     string
	Profile    string
	MaxRetries int
}

// New creates the appropriate schema.LLMProvider for the given params.
//
// Rules:
//   - bedrock   → BedrockProvider (Converse API, AWS default credentials)
//   - otherwise → OpenAIProvider (every OpenAI-compatible endpoint)
func New(ctx context.Context, p Params) (schema.LLMProvider, error) {
	if spec := FindByName(p.ProviderName); spec != nil && spec.Backend == BackendBedrock {
		return NewBedrockProvider(ctx, BedrockOptions{
			Region:       p.Region,
			Profile:      p.Profile,
			MaxRetries:   p.MaxRetries,
			DefaultModel: p.DefaultModel,
		})
	}
	return NewOpenAIProvider(p.APIKey, p.APIBase, p.DefaultModel, p.ProviderName, p.ExtraHeaders), nil
}
