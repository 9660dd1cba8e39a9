// Package providers adapts inference services to schema.LLMProvider.
// Concrete implementations are in bedrock.go and openai.go.
package providers

import "github.com/crystaldolphin/mcpconverse/internal/schema"

var (
	_ schema.LLMProvider = (*BedrockProvider)(nil)
	_ schema.LLMProvider = (*OpenAIProvider)(nil)
)
