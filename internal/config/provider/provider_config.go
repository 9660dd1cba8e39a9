package provider

const (
	ProviderBedrock    = "bedrock"
	ProviderCustom     = "custom"
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderDeepSeek   = "deepseek"
	ProviderGroq       = "groq"
	ProviderMoonshot   = "moonshot"
	ProviderVLLM       = "vllm"
)

// ProviderConfig holds credentials for one OpenAI-compatible provider.
type ProviderConfig struct {
	APIKey       string            `json:"apiKey" mapstructure:"apiKey"`
	APIBase      string            `json:"apiBase,omitempty" mapstructure:"apiBase"`
	ExtraHeaders map[string]string `json:"extraHeaders,omitempty" mapstructure:"extraHeaders"`
}

// BedrockConfig selects the AWS account and region for Bedrock. Credentials
// come from the standard AWS chain (env, shared config, instance role).
type BedrockConfig struct {
	Region     string `json:"region" mapstructure:"region"`
	Profile    string `json:"profile,omitempty" mapstructure:"profile"`
	MaxRetries int    `json:"maxRetries,omitempty" mapstructure:"maxRetries"`
}

// ProvidersConfig holds credentials for all supported LLM providers.
type ProvidersConfig struct {
	Bedrock    BedrockConfig  `json:"bedrock" mapstructure:"bedrock"`
	Custom     ProviderConfig `json:"custom" mapstructure:"custom"`
	OpenRouter ProviderConfig `json:"openrouter" mapstructure:"openrouter"`
	OpenAI     ProviderConfig `json:"openai" mapstructure:"openai"`
	DeepSeek   ProviderConfig `json:"deepseek" mapstructure:"deepseek"`
	Groq       ProviderConfig `json:"groq" mapstructure:"groq"`
	Moonshot   ProviderConfig `json:"moonshot" mapstructure:"moonshot"`
	VLLM       ProviderConfig `json:"vllm" mapstructure:"vllm"`
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{Bedrock: BedrockConfig{Region: "us-west-2"}}
}

// ByName returns a pointer to the ProviderConfig field matching the given
// registry name. Returns nil for bedrock and unknown names.
func (p *ProvidersConfig) ByName(name string) *ProviderConfig {
	switch name {
	case ProviderCustom:
		return &p.Custom
	case ProviderOpenRouter:
		return &p.OpenRouter
	case ProviderOpenAI:
		return &p.OpenAI
	case ProviderDeepSeek:
		return &p.DeepSeek
	case ProviderGroq:
		return &p.Groq
	case ProviderMoonshot:
		return &p.Moonshot
	case ProviderVLLM:
		return &p.VLLM
	}
	return nil
}
