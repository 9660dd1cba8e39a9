package schema

import "context"

// StopReason is the inference service's signal for why generation ended.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopSequence  StopReason = "stop_sequence"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Terminal reports whether r ends the turn-taking loop.
func (r StopReason) Terminal() bool {
	return r == StopEndTurn || r == StopSequence
}

// SystemBlock is one entry of the system prompt.
type SystemBlock struct {
	Text string `json:"text"`
}

// InferenceConfig carries the sampling parameters of a request.
type InferenceConfig struct {
	MaxTokens     int      `json:"maxTokens"`
	Temperature   float64  `json:"temperature"`
	TopP          float64  `json:"topP"`
	StopSequences []string `json:"stopSequences"`
}

// ToolChoice selects how the model may call tools. Only automatic choice is
// used: the model decides whether to call a tool.
type ToolChoice struct {
	Auto *struct{} `json:"auto,omitempty"`
}

// AutoToolChoice returns the "model decides" tool-choice policy.
func AutoToolChoice() ToolChoice {
	return ToolChoice{Auto: &struct{}{}}
}

// ToolConfig is the tool-calling section of a request. It is omitted from
// the request entirely when no tools are registered.
type ToolConfig struct {
	Tools      []ToolDefinition `json:"tools"`
	ToolChoice ToolChoice       `json:"toolChoice"`
}

// ConverseRequest is a single call to the inference service.
type ConverseRequest struct {
	ModelID    string          `json:"modelId"`
	Messages   []Message       `json:"messages"`
	System     []SystemBlock   `json:"system"`
	ToolConfig *ToolConfig     `json:"toolConfig,omitempty"`
	Inference  InferenceConfig `json:"inferenceConfig"`
}

// Usage reports token accounting for one response.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// ConverseOutput wraps the assistant message of a response.
type ConverseOutput struct {
	Message *Message `json:"message,omitempty"`
}

// ConverseResponse is the normalised response of any inference backend.
type ConverseResponse struct {
	Output     ConverseOutput `json:"output"`
	StopReason StopReason     `json:"stopReason"`
	Usage      *Usage         `json:"usage,omitempty"`
}

// LLMProvider is the interface every inference backend must satisfy.
type LLMProvider interface {
	Converse(ctx context.Context, req ConverseRequest) (ConverseResponse, error)
	DefaultModel() string
}
