package providers

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

type fakeConverseAPI struct {
	input *bedrockruntime.ConverseInput
	out   *bedrockruntime.ConverseOutput
}

func (f *fakeConverseAPI) Converse(_ context.Context, in *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	f.input = in
	return f.out, nil
}

func TestBedrockProvider_RequestConversion(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role:    types.ConversationRoleAssistant,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "hello"}},
		}},
		StopReason: types.StopReasonEndTurn,
	}}
	p := &BedrockProvider{api: api, defaultModel: "us.amazon.nova-pro-v1:0"}

	req := schema.ConverseRequest{
		System: []schema.SystemBlock{{Text: "sys"}},
		Messages: []schema.Message{
			schema.NewUserMessage(schema.NewTextBlock("hi")),
			schema.NewAssistantMessage(schema.NewToolUseBlock("tu-1", "get_time", map[string]any{"tz": "UTC"})),
			schema.NewUserMessage(schema.NewToolResultBlock(schema.ToolResult{
				ToolUseID: "tu-1",
				Content:   []schema.ToolResultContent{{Text: "noon"}},
				Status:    schema.ToolResultError,
			})),
		},
		ToolConfig: &schema.ToolConfig{
			Tools: []schema.ToolDefinition{{ToolSpec: schema.ToolSpec{
				Name:        "get_time",
				Description: "time",
				InputSchema: schema.ToolInputSchema{JSON: map[string]any{"type": "object"}},
			}}},
			ToolChoice: schema.AutoToolChoice(),
		},
		Inference: schema.InferenceConfig{MaxTokens: 8192, Temperature: 0.7, TopP: 0.999},
	}

	resp, err := p.Converse(context.Background(), req)
	require.NoError(t, err)

	in := api.input
	assert.Equal(t, "us.amazon.nova-pro-v1:0", aws.ToString(in.ModelId))
	require.Len(t, in.System, 1)
	assert.Equal(t, "sys", in.System[0].(*types.SystemContentBlockMemberText).Value)
	assert.Equal(t, int32(8192), aws.ToInt32(in.InferenceConfig.MaxTokens))
	assert.Nil(t, in.InferenceConfig.StopSequences)

	require.Len(t, in.Messages, 3)
	assert.Equal(t, types.ConversationRoleUser, in.Messages[0].Role)
	assert.Equal(t, "hi", in.Messages[0].Content[0].(*types.ContentBlockMemberText).Value)

	tu := in.Messages[1].Content[0].(*types.ContentBlockMemberToolUse).Value
	assert.Equal(t, "tu-1", aws.ToString(tu.ToolUseId))
	assert.Equal(t, "get_time", aws.ToString(tu.Name))
	raw, err := tu.Input.MarshalSmithyDocument()
	require.NoError(t, err)
	assert.JSONEq(t, `{"tz":"UTC"}`, string(raw))

	tr := in.Messages[2].Content[0].(*types.ContentBlockMemberToolResult).Value
	assert.Equal(t, "tu-1", aws.ToString(tr.ToolUseId))
	assert.Equal(t, types.ToolResultStatusError, tr.Status)
	assert.Equal(t, "noon", tr.Content[0].(*types.ToolResultContentBlockMemberText).Value)

	require.NotNil(t, in.ToolConfig)
	require.Len(t, in.ToolConfig.Tools, 1)
	spec := in.ToolConfig.Tools[0].(*types.ToolMemberToolSpec).Value
	assert.Equal(t, "get_time", aws.ToString(spec.Name))
	assert.IsType(t, &types.ToolChoiceMemberAuto{}, in.ToolConfig.ToolChoice)

	assert.Equal(t, schema.StopEndTurn, resp.StopReason)
	text, ok := resp.Output.Message.FirstText()
	require.True(t, ok)
	assert.Equal(t, "hello", text)
}

func TestBedrockProvider_OmitsEmptyToolConfig(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output:     &types.ConverseOutputMemberMessage{Value: types.Message{Role: types.ConversationRoleAssistant}},
		StopReason: types.StopReasonEndTurn,
	}}
	p := &BedrockProvider{api: api, defaultModel: "m"}

	_, err := p.Converse(context.Background(), schema.ConverseRequest{
		Messages: []schema.Message{schema.NewUserMessage(schema.NewTextBlock("x"))},
	})
	require.NoError(t, err)
	assert.Nil(t, api.input.ToolConfig)
}

func TestBedrockProvider_ToolUseResponse(t *testing.T) {
	api := &fakeConverseAPI{out: &bedrockruntime.ConverseOutput{
		Output: &types.ConverseOutputMemberMessage{Value: types.Message{
			Role: types.ConversationRoleAssistant,
			Content: []types.ContentBlock{
				&types.ContentBlockMemberText{Value: "calling"},
				&types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String("t1"),
					Name:      aws.String("get_weather"),
					Input:     document.NewLazyDocument(map[string]any{"city": "Lima", "days": 3}),
				}},
			},
		}},
		StopReason: types.StopReasonToolUse,
		Usage: &types.TokenUsage{
			InputTokens:  aws.Int32(12),
			OutputTokens: aws.Int32(4),
			TotalTokens:  aws.Int32(16),
		},
	}}
	p := &BedrockProvider{api: api, defaultModel: "m"}

	resp, err := p.Converse(context.Background(), schema.ConverseRequest{})
	require.NoError(t, err)

	assert.Equal(t, schema.StopToolUse, resp.StopReason)
	uses := resp.Output.Message.ToolUses()
	require.Len(t, uses, 1)
	assert.Equal(t, "t1", uses[0].ID)
	assert.Equal(t, map[string]any{"city": "Lima", "days": float64(3)}, uses[0].Input)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}
