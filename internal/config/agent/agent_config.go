package agent

// DefaultModel is the Bedrock Converse model used when none is configured.
const DefaultModel = "us.amazon.nova-pro-v1:0"

// DefaultSystemPrompt steers the model towards frugal tool usage.
const DefaultSystemPrompt = `You are a helpful assistant that can use tools to help you answer questions and perform tasks.

When using tools, follow these guidelines to be efficient:
1. Plan your tool usage before making calls - determine exactly what information you need
2. Make each tool call count - don't repeat the same call with the same parameters
3. Only make additional tool calls if the information you have is insufficient
4. Trust the results you get - don't make verification calls unless explicitly asked
5. When getting location-based information (weather, time, etc.), get the location info once and reuse it

Remember: Each tool call is expensive, so use them judiciously while still providing accurate and helpful responses.`

type AgentConfig struct {
	Model          string   `json:"model" mapstructure:"model"`
	SystemPrompt   string   `json:"systemPrompt" mapstructure:"systemPrompt"`
	MaxTokens      int      `json:"maxTokens" mapstructure:"maxTokens"`
	Temperature    float64  `json:"temperature" mapstructure:"temperature"`
	TopP           float64  `json:"topP" mapstructure:"topP"`
	StopSequences  []string `json:"stopSequences" mapstructure:"stopSequences"`
	MaxTurns       int      `json:"maxTurns" mapstructure:"maxTurns"`             // 0 = unbounded
	RequestTimeout int      `json:"requestTimeout" mapstructure:"requestTimeout"` // seconds; 0 disables
	// OutputTags, when exactly two are set, extract the answer between them.
	OutputTags []string `json:"outputTags,omitempty" mapstructure:"outputTags"`
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:          DefaultModel,
		SystemPrompt:   DefaultSystemPrompt,
		MaxTokens:      8192,
		Temperature:    0.7,
		TopP:           0.999,
		StopSequences:  []string{},
		MaxTurns:       20,
		RequestTimeout: 300,
	}
}
