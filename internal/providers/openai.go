package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/shared/llmutils"
)

// stopContentFiltered is reported when the provider withheld the answer.
// The engine does not know it and fails the call.
const stopContentFiltered schema.StopReason = "content_filtered"

// chatCompletionAPI is the part of *openai.Client the provider uses.
type chatCompletionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider talks to any OpenAI-compatible chat-completions endpoint and
// translates between the Converse message shape and chat messages.
type OpenAIProvider struct {
	api          chatCompletionAPI
	apiBase      string
	defaultModel string
	gateway      *ProviderSpec // non-nil for gateway/local providers
	spec         *ProviderSpec // non-nil for standard providers
}

// NewOpenAIProvider constructs a provider from raw config values.
// The caller extracts these from config.Config to avoid an import cycle.
func NewOpenAIProvider(
	apiKey, apiBase, defaultModel, providerName string,
	extraHeaders map[string]string,
) *OpenAIProvider {
	gateway := FindGateway(providerName, apiKey, apiBase)

	var spec *ProviderSpec
	if gateway == nil {
		spec = FindByName(providerName)
		if spec == nil {
			spec = FindByModel(defaultModel)
		}
	}

	// Resolve effective API base.
	effectiveBase := apiBase
	if effectiveBase == "" {
		if gateway != nil && gateway.DefaultAPIBase != "" {
			effectiveBase = gateway.DefaultAPIBase
		} else if spec != nil && spec.DefaultAPIBase != "" {
			effectiveBase = spec.DefaultAPIBase
		} else {
			effectiveBase = "https://api.openai.com/v1"
		}
	}
	effectiveBase = strings.TrimRight(effectiveBase, "/")

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = effectiveBase
	cfg.HTTPClient = &http.Client{
		Timeout:   120 * time.Second,
		Transport: &headerTransport{headers: extraHeaders, base: http.DefaultTransport},
	}

	return &OpenAIProvider{
		api:          openai.NewClientWithConfig(cfg),
		apiBase:      effectiveBase,
		defaultModel: defaultModel,
		gateway:      gateway,
		spec:         spec,
	}
}

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// APIBase returns the endpoint requests are sent to.
func (p *OpenAIProvider) APIBase() string { return p.apiBase }

// Converse implements schema.LLMProvider.
func (p *OpenAIProvider) Converse(ctx context.Context, req schema.ConverseRequest) (schema.ConverseResponse, error) {
	model := req.ModelID
	if model == "" {
		model = p.defaultModel
	}
	model = p.resolveModel(model)

	chatReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    toOpenAIMessages(req.System, req.Messages),
		MaxTokens:   req.Inference.MaxTokens,
		Temperature: float32(req.Inference.Temperature),
		TopP:        float32(req.Inference.TopP),
		Stop:        req.Inference.StopSequences,
	}
	if req.ToolConfig != nil && len(req.ToolConfig.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.ToolConfig.Tools)
		chatReq.ToolChoice = "auto"
	}
	p.applyModelOverrides(model, &chatReq)

	resp, err := p.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return schema.ConverseResponse{}, fmt.Errorf("chat completion (%s): %w", model, err)
	}
	return fromOpenAIResponse(resp)
}

// resolveModel strips the routing prefix the user may have put in front of
// the model name.
func (p *OpenAIProvider) resolveModel(model string) string {
	if p.gateway != nil {
		if p.gateway.StripModelPrefix {
			if i := strings.LastIndex(model, "/"); i >= 0 {
				return model[i+1:]
			}
			return model
		}
		// Strip only the gateway's own prefix if present.
		if pfx := p.gateway.ModelPrefix; pfx != "" {
			full := pfx + "/"
			if strings.HasPrefix(strings.ToLower(model), full) {
				model = model[len(full):]
			}
		}
		return model
	}

	// Standard/local provider: strip known provider-name prefix.
	var prefixesToStrip []string
	if p.spec != nil {
		prefixesToStrip = append(prefixesToStrip, p.spec.ModelPrefix, p.spec.Name)
	}
	for _, pfx := range prefixesToStrip {
		if pfx == "" {
			continue
		}
		full := pfx + "/"
		if strings.HasPrefix(strings.ToLower(model), full) {
			return model[len(full):]
		}
	}
	return model
}

func (p *OpenAIProvider) applyModelOverrides(model string, req *openai.ChatCompletionRequest) {
	modelLower := strings.ToLower(model)
	spec := p.spec
	if spec == nil {
		spec = FindByModel(model)
	}
	if spec == nil {
		return
	}
	for _, ov := range spec.ModelOverrides {
		if strings.Contains(modelLower, strings.ToLower(ov.Pattern)) {
			req.Temperature = float32(ov.Temperature)
			return
		}
	}
}

// toOpenAIMessages flattens Converse messages into chat messages. Tool
// results become one "tool" message each; assistant tool uses become
// tool_calls on the assistant message.
func toOpenAIMessages(system []schema.SystemBlock, messages []schema.Message) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage

	if len(system) > 0 {
		parts := make([]string, 0, len(system))
		for _, s := range system {
			parts = append(parts, s.Text)
		}
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: strings.Join(parts, "\n\n"),
		})
	}

	for _, m := range messages {
		var texts []string
		var toolCalls []openai.ToolCall
		var toolMsgs []openai.ChatCompletionMessage

		for _, b := range m.Content {
			switch b.Kind() {
			case schema.BlockText:
				texts = append(texts, *b.Text)
			case schema.BlockToolUse:
				toolCalls = append(toolCalls, openai.ToolCall{
					ID:   b.ToolUse.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      b.ToolUse.Name,
						Arguments: argumentsJSON(b.ToolUse.Input),
					},
				})
			case schema.BlockToolResult:
				toolMsgs = append(toolMsgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					ToolCallID: b.ToolResult.ToolUseID,
					Content:    b.ToolResult.Text(),
				})
			}
		}

		if m.Role == schema.RoleAssistant {
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   strings.Join(texts, "\n"),
				ToolCalls: toolCalls,
			})
			continue
		}

		out = append(out, toolMsgs...)
		if len(texts) > 0 {
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: strings.Join(texts, "\n"),
			})
		}
	}
	return out
}

func toOpenAITools(defs []schema.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(defs))
	for i, def := range defs {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.ToolSpec.Name,
				Description: def.ToolSpec.Description,
				Parameters:  def.ToolSpec.InputSchema.JSON,
			},
		}
	}
	return out
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) (schema.ConverseResponse, error) {
	if len(resp.Choices) == 0 {
		return schema.ConverseResponse{}, fmt.Errorf("empty choices in response")
	}
	choice := resp.Choices[0]

	var blocks []schema.ContentBlock
	if text := llmutils.StripThink(choice.Message.Content); text != "" {
		blocks = append(blocks, schema.NewTextBlock(text))
	}
	for _, tc := range choice.Message.ToolCalls {
		args, err := repairJSON(tc.Function.Arguments)
		if err != nil {
			slog.Warn("failed to parse tool arguments", "tool", tc.Function.Name, "err", err)
		}
		blocks = append(blocks, schema.NewToolUseBlock(tc.ID, tc.Function.Name, args))
	}

	msg := schema.NewAssistantMessage(blocks...)
	return schema.ConverseResponse{
		Output:     schema.ConverseOutput{Message: &msg},
		StopReason: mapFinishReason(choice.FinishReason, len(choice.Message.ToolCalls) > 0),
		Usage: &schema.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

func mapFinishReason(reason openai.FinishReason, hasToolCalls bool) schema.StopReason {
	switch reason {
	case openai.FinishReasonStop:
		return schema.StopEndTurn
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return schema.StopToolUse
	case openai.FinishReasonLength:
		return schema.StopMaxTokens
	case openai.FinishReasonContentFilter:
		return stopContentFiltered
	case "":
		if hasToolCalls {
			return schema.StopToolUse
		}
		return schema.StopEndTurn
	}
	return schema.StopReason(reason)
}

// argumentsJSON encodes tool input as the JSON object string chat APIs expect.
func argumentsJSON(input any) string {
	if input == nil {
		return "{}"
	}
	b, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// repairJSON attempts to unmarshal JSON, retrying after stripping trailing
// garbage characters. This handles some LLMs that emit truncated tool arguments.
func repairJSON(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	// Attempt 1: trim trailing non-JSON characters.
	stripped := strings.TrimRight(raw, " \t\n\r}]")
	if !strings.HasSuffix(stripped, "}") {
		stripped += "}"
	}
	if err := json.Unmarshal([]byte(stripped), &out); err == nil {
		return out, nil
	}

	// Attempt 2: find the last complete JSON object.
	if i := strings.LastIndex(raw, "}"); i >= 0 {
		if err := json.Unmarshal([]byte(raw[:i+1]), &out); err == nil {
			return out, nil
		}
	}

	return map[string]any{}, fmt.Errorf("cannot repair JSON: %s", raw)
}

// headerTransport adds the configured extra headers to every request.
type headerTransport struct {
	headers map[string]string
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}
