package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
	"github.com/crystaldolphin/mcpconverse/internal/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []schema.ConverseResponse
	errs      []error
	requests  []schema.ConverseRequest
}

func (p *scriptedProvider) Converse(_ context.Context, req schema.ConverseRequest) (schema.ConverseResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := len(p.requests)
	p.requests = append(p.requests, req)
	if i < len(p.errs) && p.errs[i] != nil {
		return schema.ConverseResponse{}, p.errs[i]
	}
	if i >= len(p.responses) {
		return schema.ConverseResponse{}, errors.New("script exhausted")
	}
	return p.responses[i], nil
}

func (p *scriptedProvider) DefaultModel() string { return "test-model" }

func textResponse(stop schema.StopReason, text string) schema.ConverseResponse {
	msg := schema.NewAssistantMessage(schema.NewTextBlock(text))
	return schema.ConverseResponse{Output: schema.ConverseOutput{Message: &msg}, StopReason: stop}
}

func toolResponse(uses ...schema.ToolUse) schema.ConverseResponse {
	blocks := []schema.ContentBlock{schema.NewTextBlock("let me check")}
	for _, tu := range uses {
		blocks = append(blocks, schema.NewToolUseBlock(tu.ID, tu.Name, tu.Input))
	}
	msg := schema.NewAssistantMessage(blocks...)
	return schema.ConverseResponse{Output: schema.ConverseOutput{Message: &msg}, StopReason: schema.StopToolUse}
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	r.Register("ok-tool", func(_ context.Context, name string, _ any) (schema.ToolOutput, error) {
		return schema.TextResult{Text: "ran " + name}, nil
	}, "succeeds", nil)
	r.Register("bad-tool", func(context.Context, string, any) (schema.ToolOutput, error) {
		return nil, errors.New("boom")
	}, "fails", nil)
	return r
}

func TestInvoke_EndTurnReturnsFirstText(t *testing.T) {
	msg := schema.NewAssistantMessage(schema.NewTextBlock("first"), schema.NewTextBlock("second"))
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		{Output: schema.ConverseOutput{Message: &msg}, StopReason: schema.StopEndTurn},
	}}
	a := NewConverseAgent(p, Settings{SystemPrompt: "be nice"})

	got, err := a.InvokeWithPrompt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.Len(t, p.requests, 1)
	req := p.requests[0]
	assert.Equal(t, "test-model", req.ModelID)
	assert.Equal(t, []schema.SystemBlock{{Text: "be nice"}}, req.System)
	assert.Nil(t, req.ToolConfig)

	history := a.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, schema.RoleUser, history[0].Role)
	assert.Equal(t, schema.RoleAssistant, history[1].Role)
}

func TestInvoke_StopSequenceIsTerminal(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{textResponse(schema.StopSequence, "done")}}
	a := NewConverseAgent(p, Settings{})

	got, err := a.InvokeWithPrompt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "done", got)
}

func TestInvoke_NoTextBlockReturnsEmpty(t *testing.T) {
	msg := schema.NewAssistantMessage()
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		{Output: schema.ConverseOutput{Message: &msg}, StopReason: schema.StopEndTurn},
	}}
	a := NewConverseAgent(p, Settings{})

	got, err := a.InvokeWithPrompt(context.Background(), "hi")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInvoke_OutputTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		text string
		want string
	}{
		{"extracts between tags", []string{"<a>", "<b>"}, "ignored<a>KEEP<b>ignored", "KEEP"},
		{"multiline", []string{"<response>", "</response>"}, "thinking\n<response>\nline1\nline2\n</response>", "\nline1\nline2\n"},
		{"regex metacharacters", []string{"[[", "]]"}, "x[[y]]z", "y"},
		{"no match returns text", []string{"<a>", "<b>"}, "no tags here", "no tags here"},
		{"single tag disables extraction", []string{"<a>"}, "x<a>y", "x<a>y"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &scriptedProvider{responses: []schema.ConverseResponse{textResponse(schema.StopEndTurn, tt.text)}}
			a := NewConverseAgent(p, Settings{})
			a.SetResponseOutputTags(tt.tags)

			got, err := a.InvokeWithPrompt(context.Background(), "q")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvoke_ToolUseKeepsResultOrder(t *testing.T) {
	for _, parallel := range []bool{false, true} {
		t.Run(map[bool]string{false: "sequential", true: "parallel"}[parallel], func(t *testing.T) {
			p := &scriptedProvider{responses: []schema.ConverseResponse{
				toolResponse(
					schema.ToolUse{ID: "x", Name: "ok_tool", Input: map[string]any{"q": "1"}},
					schema.ToolUse{ID: "y", Name: "bad_tool", Input: map[string]any{}},
					schema.ToolUse{ID: "z", Name: "ghost", Input: nil},
				),
				textResponse(schema.StopEndTurn, "final"),
			}}
			a := NewConverseAgent(p, Settings{ParallelToolCalls: parallel})
			a.SetTools(newTestRegistry(t))

			got, err := a.InvokeWithPrompt(context.Background(), "go")
			require.NoError(t, err)
			assert.Equal(t, "final", got)

			require.Len(t, p.requests, 2)
			require.NotNil(t, p.requests[0].ToolConfig)
			assert.Len(t, p.requests[0].ToolConfig.Tools, 2)
			assert.NotNil(t, p.requests[0].ToolConfig.ToolChoice.Auto)

			history := a.Messages()
			require.Len(t, history, 4)
			resultsMsg := history[2]
			assert.Equal(t, schema.RoleUser, resultsMsg.Role)
			require.Len(t, resultsMsg.Content, 3)

			x := resultsMsg.Content[0].ToolResult
			y := resultsMsg.Content[1].ToolResult
			z := resultsMsg.Content[2].ToolResult
			require.NotNil(t, x)
			require.NotNil(t, y)
			require.NotNil(t, z)

			assert.Equal(t, "x", x.ToolUseID)
			assert.Equal(t, schema.ToolResultSuccess, x.Status)
			assert.Equal(t, "ran ok-tool", x.Text())

			assert.Equal(t, "y", y.ToolUseID)
			assert.Equal(t, schema.ToolResultError, y.Status)
			assert.Equal(t, "Error executing tool: boom", y.Text())

			assert.Equal(t, "z", z.ToolUseID)
			assert.Equal(t, schema.ToolResultError, z.Status)
			assert.NotEmpty(t, z.Text())
		})
	}
}

func TestInvoke_ToolUseWithoutBlocks(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{textResponse(schema.StopToolUse, "oops")}}
	a := NewConverseAgent(p, Settings{})

	_, err := a.InvokeWithPrompt(context.Background(), "go")
	assert.ErrorIs(t, err, ErrNoToolUse)
}

func TestInvoke_MaxTokensContinues(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		textResponse(schema.StopMaxTokens, "partial"),
		textResponse(schema.StopEndTurn, "rest"),
	}}
	a := NewConverseAgent(p, Settings{})

	got, err := a.InvokeWithPrompt(context.Background(), "write a lot")
	require.NoError(t, err)
	assert.Equal(t, "rest", got)

	require.Len(t, p.requests, 2)
	history := a.Messages()
	require.Len(t, history, 4)
	text, ok := history[2].FirstText()
	require.True(t, ok)
	assert.Equal(t, schema.RoleUser, history[2].Role)
	assert.Equal(t, ContinuePrompt, text)
}

func TestInvoke_UnknownStopReasonKeepsHistory(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		textResponse(schema.StopEndTurn, "hello"),
		textResponse("guardrail_intervened", "blocked"),
		textResponse(schema.StopEndTurn, "again"),
	}}
	a := NewConverseAgent(p, Settings{})

	_, err := a.InvokeWithPrompt(context.Background(), "one")
	require.NoError(t, err)

	_, err = a.InvokeWithPrompt(context.Background(), "two")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownStopReason)
	assert.Len(t, a.Messages(), 4)

	got, err := a.InvokeWithPrompt(context.Background(), "three")
	require.NoError(t, err)
	assert.Equal(t, "again", got)
	require.Len(t, p.requests, 3)
	assert.Len(t, p.requests[2].Messages, 5)
}

func TestInvoke_ProviderErrorIsReturned(t *testing.T) {
	cause := errors.New("throttled")
	p := &scriptedProvider{errs: []error{cause}}
	a := NewConverseAgent(p, Settings{})

	_, err := a.InvokeWithPrompt(context.Background(), "hi")
	assert.ErrorIs(t, err, cause)
}

func TestInvoke_EmptyResponse(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{{StopReason: schema.StopEndTurn}}}
	a := NewConverseAgent(p, Settings{})

	_, err := a.InvokeWithPrompt(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestInvoke_MaxTurns(t *testing.T) {
	var runs int
	reg := tools.NewRegistry()
	reg.Register("ok-tool", func(context.Context, string, any) (schema.ToolOutput, error) {
		runs++
		return schema.TextResult{Text: "done"}, nil
	}, "", nil)

	p := &scriptedProvider{responses: []schema.ConverseResponse{
		toolResponse(schema.ToolUse{ID: "a", Name: "ok_tool", Input: map[string]any{}}),
		toolResponse(
			schema.ToolUse{ID: "b", Name: "ok_tool", Input: map[string]any{}},
			schema.ToolUse{ID: "c", Name: "ok_tool", Input: map[string]any{}},
		),
		textResponse(schema.StopEndTurn, "recovered"),
	}}
	a := NewConverseAgent(p, Settings{MaxTurns: 2})
	a.SetTools(reg)

	_, err := a.InvokeWithPrompt(context.Background(), "loop")
	require.ErrorIs(t, err, ErrDepthExceeded)
	assert.Len(t, p.requests, 2)
	assert.Equal(t, 1, runs, "tools of the last allowed turn must not run")

	got, err := a.InvokeWithPrompt(context.Background(), "try again")
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, 1, runs)

	replayed := p.requests[2].Messages
	require.Len(t, replayed, 5)
	for i, m := range replayed {
		want := schema.RoleUser
		if i%2 == 1 {
			want = schema.RoleAssistant
		}
		assert.Equal(t, want, m.Role, "message %d", i)
	}
	for i, m := range replayed {
		for _, tu := range m.ToolUses() {
			require.Less(t, i+1, len(replayed), "tool use %s is the last message", tu.ID)
			assert.True(t, hasResultFor(replayed[i+1], tu.ID), "tool use %s has no result in message %d", tu.ID, i+1)
		}
	}

	last := replayed[4].Content
	require.Len(t, last, 3)
	for i, id := range []string{"b", "c"} {
		res := last[i].ToolResult
		require.NotNil(t, res)
		assert.Equal(t, id, res.ToolUseID)
		assert.Equal(t, schema.ToolResultError, res.Status)
		assert.Contains(t, res.Text(), ErrDepthExceeded.Error())
	}
	assert.Equal(t, schema.BlockText, last[2].Kind())
}

func TestInvoke_MaxTurnsOnTokenLimit(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		textResponse(schema.StopMaxTokens, "part one"),
		textResponse(schema.StopMaxTokens, "part two"),
		textResponse(schema.StopEndTurn, "ok"),
	}}
	a := NewConverseAgent(p, Settings{MaxTurns: 2})

	_, err := a.InvokeWithPrompt(context.Background(), "write")
	require.ErrorIs(t, err, ErrDepthExceeded)

	_, err = a.InvokeWithPrompt(context.Background(), "shorter please")
	require.NoError(t, err)
	assert.Len(t, p.requests[2].Messages, 5)
	assert.Equal(t, schema.RoleUser, p.requests[2].Messages[4].Role)
}

func TestClearMessagesDropsAbandonedResults(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		toolResponse(schema.ToolUse{ID: "a", Name: "ok_tool", Input: map[string]any{}}),
		textResponse(schema.StopEndTurn, "fresh"),
	}}
	a := NewConverseAgent(p, Settings{MaxTurns: 1})
	a.SetTools(newTestRegistry(t))

	_, err := a.InvokeWithPrompt(context.Background(), "loop")
	require.ErrorIs(t, err, ErrDepthExceeded)

	a.ClearMessages()
	_, err = a.InvokeWithPrompt(context.Background(), "hello")
	require.NoError(t, err)

	require.Len(t, p.requests[1].Messages, 1)
	require.Len(t, p.requests[1].Messages[0].Content, 1)
	assert.Equal(t, schema.BlockText, p.requests[1].Messages[0].Content[0].Kind())
}

func hasResultFor(m schema.Message, toolUseID string) bool {
	for _, b := range m.Content {
		if b.ToolResult != nil && b.ToolResult.ToolUseID == toolUseID {
			return true
		}
	}
	return false
}

func TestInvoke_ClearedRegistryOmitsToolConfig(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		textResponse(schema.StopEndTurn, "a"),
		textResponse(schema.StopEndTurn, "b"),
	}}
	reg := newTestRegistry(t)
	a := NewConverseAgent(p, Settings{})
	a.SetTools(reg)

	_, err := a.InvokeWithPrompt(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, p.requests[0].ToolConfig)

	reg.Clear()
	_, err = a.InvokeWithPrompt(context.Background(), "2")
	require.NoError(t, err)
	assert.Nil(t, p.requests[1].ToolConfig)
}

func TestInvoke_ProgressHandler(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		toolResponse(schema.ToolUse{ID: "1", Name: "ok_tool", Input: map[string]any{"city": "Paris"}}),
		textResponse(schema.StopEndTurn, "sunny"),
	}}
	a := NewConverseAgent(p, Settings{})
	a.SetTools(newTestRegistry(t))

	var hints []string
	a.SetProgressHandler(func(s string) { hints = append(hints, s) })

	_, err := a.InvokeWithPrompt(context.Background(), "weather?")
	require.NoError(t, err)
	assert.Equal(t, []string{`ok_tool("Paris")`}, hints)
}

func TestInvoke_ToolTimeout(t *testing.T) {
	reg := tools.NewRegistry()
	reg.Register("slow", func(ctx context.Context, _ string, _ any) (schema.ToolOutput, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return schema.TextResult{Text: "late"}, nil
		}
	}, "", nil)

	p := &scriptedProvider{responses: []schema.ConverseResponse{
		toolResponse(schema.ToolUse{ID: "1", Name: "slow", Input: map[string]any{}}),
		textResponse(schema.StopEndTurn, "gave up"),
	}}
	a := NewConverseAgent(p, Settings{ToolTimeout: 10 * time.Millisecond})
	a.SetTools(reg)

	got, err := a.InvokeWithPrompt(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "gave up", got)

	res := a.Messages()[2].Content[0].ToolResult
	require.NotNil(t, res)
	assert.Equal(t, schema.ToolResultError, res.Status)
	assert.Contains(t, res.Text(), "deadline exceeded")
}

func TestClearMessages(t *testing.T) {
	p := &scriptedProvider{responses: []schema.ConverseResponse{
		textResponse(schema.StopEndTurn, "a"),
		textResponse(schema.StopEndTurn, "b"),
	}}
	a := NewConverseAgent(p, Settings{})

	_, err := a.InvokeWithPrompt(context.Background(), "1")
	require.NoError(t, err)
	a.ClearMessages()
	assert.Empty(t, a.Messages())

	_, err = a.InvokeWithPrompt(context.Background(), "2")
	require.NoError(t, err)
	assert.Len(t, p.requests[1].Messages, 1)
}
