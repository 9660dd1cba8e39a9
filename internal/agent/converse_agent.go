package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/shared/llmutils"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

// ToolSet is what the agent needs from a tool registry.
type ToolSet interface {
	Definitions() []schema.ToolDefinition
	Execute(ctx context.Context, toolUseID, sanitizedName string, input any) (schema.ToolResult, error)
}

// ConverseAgent drives one conversation: it replays history to the provider,
// runs requested tools and loops until the model produces a final answer.
//
// Invoke must not be called concurrently on the same agent, and the setters
// must not be called while an Invoke is in flight.
type ConverseAgent struct {
	provider schema.LLMProvider
	settings Settings
	history  *History

	// pending holds error results for tool uses left unanswered when an
	// Invoke hit MaxTurns. The next Invoke sends them ahead of its content.
	pending []schema.ContentBlock

	tools      ToolSet
	outputTags []string
	outputRe   *regexp.Regexp
	onProgress func(string)
}

var _ schema.Conversation = (*ConverseAgent)(nil)

// NewConverseAgent returns an agent with empty history and no tools.
func NewConverseAgent(provider schema.LLMProvider, settings Settings) *ConverseAgent {
	if settings.ModelID == "" {
		settings.ModelID = provider.DefaultModel()
	}
	return &ConverseAgent{
		provider: provider,
		settings: settings,
		history:  NewHistory(),
	}
}

// SetTools replaces the tool set offered to the model. A nil set, or one
// without definitions, omits tool configuration from requests.
func (a *ConverseAgent) SetTools(ts ToolSet) {
	a.tools = ts
}

// SetResponseOutputTags configures the delimiters used to extract the final
// answer. Extraction only happens when exactly two tags are given; any other
// count disables it.
func (a *ConverseAgent) SetResponseOutputTags(tags []string) {
	a.outputTags = append([]string(nil), tags...)
	a.outputRe = nil
	if len(tags) != 2 {
		return
	}
	re, err := regexp.Compile(`(?s).*` + regexp.QuoteMeta(tags[0]) + `(.*?)` + regexp.QuoteMeta(tags[1]))
	if err != nil {
		slog.Warn("Invalid response output tags", "tags", tags, "err", err)
		return
	}
	a.outputRe = re
}

// SetProgressHandler registers fn to receive a hint before each batch of
// tool calls.
func (a *ConverseAgent) SetProgressHandler(fn func(string)) {
	a.onProgress = fn
}

// Messages returns a copy of the conversation history.
func (a *ConverseAgent) Messages() []schema.Message {
	return a.history.Snapshot()
}

// ClearMessages empties the conversation history.
func (a *ConverseAgent) ClearMessages() {
	a.history.Reset()
	a.pending = nil
}

// InvokeWithPrompt sends prompt as a user text turn.
func (a *ConverseAgent) InvokeWithPrompt(ctx context.Context, prompt string) (string, error) {
	return a.Invoke(ctx, []schema.ContentBlock{schema.NewTextBlock(prompt)})
}

// Invoke appends content as a user turn and runs the conversation until the
// model ends its turn, returning the final answer text.
//
// When MaxTurns is reached the pending tool uses are not run. Each gets an
// error result that the next Invoke sends ahead of its content, so every
// tool use in history stays paired with a result.
func (a *ConverseAgent) Invoke(ctx context.Context, content []schema.ContentBlock) (string, error) {
	if len(a.pending) > 0 {
		content = append(a.pending, content...)
		a.pending = nil
	}

	for turn := 1; ; turn++ {
		a.history.Append(schema.NewUserMessage(content...))

		resp, err := a.converse(ctx, turn)
		if err != nil {
			return "", err
		}
		if resp.Output.Message == nil {
			return "", fmt.Errorf("%w (stop reason %q)", ErrEmptyResponse, resp.StopReason)
		}

		msg := *resp.Output.Message
		msg.Role = schema.RoleAssistant
		a.history.Append(msg)

		lastTurn := a.settings.MaxTurns > 0 && turn >= a.settings.MaxTurns

		switch r := resp.StopReason; {
		case r.Terminal():
			return a.extractAnswer(msg), nil

		case r == schema.StopToolUse:
			uses := msg.ToolUses()
			if len(uses) == 0 {
				return "", ErrNoToolUse
			}
			if lastTurn {
				a.pending = abandonTools(uses)
				return "", a.depthExceeded()
			}
			if a.onProgress != nil {
				a.onProgress(llmutils.ToolHint(uses))
			}
			content = a.runTools(ctx, uses)

		case r == schema.StopMaxTokens:
			if lastTurn {
				return "", a.depthExceeded()
			}
			slog.Info("Response hit token limit, asking model to continue", "turn", turn)
			content = []schema.ContentBlock{schema.NewTextBlock(ContinuePrompt)}

		default:
			return "", fmt.Errorf("%w: %q", ErrUnknownStopReason, resp.StopReason)
		}
	}
}

func (a *ConverseAgent) depthExceeded() error {
	slog.Warn("Conversation depth limit reached", "maxTurns", a.settings.MaxTurns)
	return fmt.Errorf("%w: %d inference calls", ErrDepthExceeded, a.settings.MaxTurns)
}

// abandonTools answers every use with an ErrDepthExceeded error result.
func abandonTools(uses []schema.ToolUse) []schema.ContentBlock {
	blocks := make([]schema.ContentBlock, len(uses))
	for i, tu := range uses {
		blocks[i] = schema.NewToolResultBlock(tools.ErrorResult(tu.ID, ErrDepthExceeded))
	}
	return blocks
}

// converse sends the full history to the provider.
func (a *ConverseAgent) converse(ctx context.Context, turn int) (schema.ConverseResponse, error) {
	req := schema.ConverseRequest{
		ModelID:   a.settings.ModelID,
		Messages:  a.history.Snapshot(),
		Inference: a.settings.Inference,
	}
	if a.settings.SystemPrompt != "" {
		req.System = []schema.SystemBlock{{Text: a.settings.SystemPrompt}}
	}
	if a.tools != nil {
		if defs := a.tools.Definitions(); len(defs) > 0 {
			req.ToolConfig = &schema.ToolConfig{Tools: defs, ToolChoice: schema.AutoToolChoice()}
		}
	}

	if a.settings.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.settings.RequestTimeout)
		defer cancel()
	}

	slog.Debug("Inference call", "model", req.ModelID, "turn", turn, "messages", len(req.Messages))

	resp, err := a.provider.Converse(ctx, req)
	if err != nil {
		return schema.ConverseResponse{}, fmt.Errorf("converse: %w", err)
	}

	if resp.Usage != nil {
		slog.Debug("Inference response", "stopReason", resp.StopReason,
			"inputTokens", resp.Usage.InputTokens, "outputTokens", resp.Usage.OutputTokens)
	}
	return resp, nil
}

// runTools executes every tool use and returns the results in request order.
// Failures of individual tools become error results.
func (a *ConverseAgent) runTools(ctx context.Context, uses []schema.ToolUse) []schema.ContentBlock {
	results := make([]schema.ToolResult, len(uses))

	if a.settings.ParallelToolCalls && len(uses) > 1 {
		var g errgroup.Group
		for i, tu := range uses {
			g.Go(func() error {
				results[i] = a.runTool(ctx, tu)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, tu := range uses {
			results[i] = a.runTool(ctx, tu)
		}
	}

	blocks := make([]schema.ContentBlock, len(results))
	for i, r := range results {
		blocks[i] = schema.NewToolResultBlock(r)
	}
	return blocks
}

func (a *ConverseAgent) runTool(ctx context.Context, tu schema.ToolUse) schema.ToolResult {
	argsJSON, _ := json.Marshal(tu.Input)
	slog.Info("Tool call", "name", tu.Name, "args", llmutils.Truncate(string(argsJSON), 200))

	if a.tools == nil {
		return tools.ErrorResult(tu.ID, fmt.Errorf("%w: %s", tools.ErrUnknownTool, tu.Name))
	}

	if a.settings.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.settings.ToolTimeout)
		defer cancel()
	}

	res, err := a.tools.Execute(ctx, tu.ID, tu.Name, tu.Input)
	if err != nil {
		slog.Warn("Tool call failed", "name", tu.Name, "err", err)
		return tools.ErrorResult(tu.ID, err)
	}
	return res
}

// extractAnswer returns the first text block of msg, narrowed to the text
// between the output tags when they are configured and present.
func (a *ConverseAgent) extractAnswer(msg schema.Message) string {
	text, ok := msg.FirstText()
	if !ok {
		return ""
	}
	if a.outputRe == nil {
		return text
	}
	if m := a.outputRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
