package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/crystaldolphin/mcpconverse/internal/schema"
)

// converseAPI is the part of *bedrockruntime.Client the provider uses.
type converseAPI interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockOptions configures the Bedrock client. Credentials always come from
// the AWS default chain (env, shared config, instance role).
type BedrockOptions struct {
	Region       string
	Profile      string
	MaxRetries   int
	DefaultModel string
}

// BedrockProvider calls the Amazon Bedrock Converse API.
type BedrockProvider struct {
	api          converseAPI
	region       string
	defaultModel string
}

// NewBedrockProvider loads the AWS configuration and builds a runtime client.
func NewBedrockProvider(ctx context.Context, opts BedrockOptions) (*BedrockProvider, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.Profile != "" {
		loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(opts.Profile))
	}
	if opts.MaxRetries > 0 {
		loadOpts = append(loadOpts, awsconfig.WithRetryMaxAttempts(opts.MaxRetries))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	return &BedrockProvider{
		api:          bedrockruntime.NewFromConfig(cfg),
		region:       cfg.Region,
		defaultModel: opts.DefaultModel,
	}, nil
}

func (p *BedrockProvider) DefaultModel() string { return p.defaultModel }

// Region returns the AWS region requests are sent to.
func (p *BedrockProvider) Region() string { return p.region }

// Converse implements schema.LLMProvider.
func (p *BedrockProvider) Converse(ctx context.Context, req schema.ConverseRequest) (schema.ConverseResponse, error) {
	model := req.ModelID
	if model == "" {
		model = p.defaultModel
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(model),
		Messages:        toBedrockMessages(req.Messages),
		InferenceConfig: toBedrockInference(req.Inference),
	}
	for _, s := range req.System {
		input.System = append(input.System, &types.SystemContentBlockMemberText{Value: s.Text})
	}
	if req.ToolConfig != nil && len(req.ToolConfig.Tools) > 0 {
		input.ToolConfig = toBedrockToolConfig(req.ToolConfig)
	}

	out, err := p.api.Converse(ctx, input)
	if err != nil {
		return schema.ConverseResponse{}, fmt.Errorf("bedrock converse (%s): %w", model, err)
	}
	return fromBedrockOutput(out)
}

func toBedrockInference(cfg schema.InferenceConfig) *types.InferenceConfiguration {
	ic := &types.InferenceConfiguration{
		Temperature: aws.Float32(float32(cfg.Temperature)),
		TopP:        aws.Float32(float32(cfg.TopP)),
	}
	if cfg.MaxTokens > 0 {
		ic.MaxTokens = aws.Int32(int32(cfg.MaxTokens))
	}
	if len(cfg.StopSequences) > 0 {
		ic.StopSequences = cfg.StopSequences
	}
	return ic
}

func toBedrockMessages(messages []schema.Message) []types.Message {
	out := make([]types.Message, 0, len(messages))
	for _, m := range messages {
		bm := types.Message{Role: types.ConversationRole(m.Role)}
		for _, b := range m.Content {
			switch b.Kind() {
			case schema.BlockText:
				bm.Content = append(bm.Content, &types.ContentBlockMemberText{Value: *b.Text})
			case schema.BlockToolUse:
				input := b.ToolUse.Input
				if input == nil {
					input = map[string]any{}
				}
				bm.Content = append(bm.Content, &types.ContentBlockMemberToolUse{Value: types.ToolUseBlock{
					ToolUseId: aws.String(b.ToolUse.ID),
					Name:      aws.String(b.ToolUse.Name),
					Input:     document.NewLazyDocument(input),
				}})
			case schema.BlockToolResult:
				content := make([]types.ToolResultContentBlock, 0, len(b.ToolResult.Content))
				for _, c := range b.ToolResult.Content {
					content = append(content, &types.ToolResultContentBlockMemberText{Value: c.Text})
				}
				bm.Content = append(bm.Content, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(b.ToolResult.ToolUseID),
					Content:   content,
					Status:    types.ToolResultStatus(b.ToolResult.Status),
				}})
			}
		}
		out = append(out, bm)
	}
	return out
}

func toBedrockToolConfig(tc *schema.ToolConfig) *types.ToolConfiguration {
	tools := make([]types.Tool, 0, len(tc.Tools))
	for _, def := range tc.Tools {
		tools = append(tools, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(def.ToolSpec.Name),
			Description: aws.String(def.ToolSpec.Description),
			InputSchema: &types.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(def.ToolSpec.InputSchema.JSON)},
		}})
	}
	return &types.ToolConfiguration{
		Tools:      tools,
		ToolChoice: &types.ToolChoiceMemberAuto{Value: types.AutoToolChoice{}},
	}
}

func fromBedrockOutput(out *bedrockruntime.ConverseOutput) (schema.ConverseResponse, error) {
	resp := schema.ConverseResponse{StopReason: schema.StopReason(out.StopReason)}

	if out.Usage != nil {
		resp.Usage = &schema.Usage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}

	member, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return resp, nil
	}

	var blocks []schema.ContentBlock
	for _, cb := range member.Value.Content {
		switch v := cb.(type) {
		case *types.ContentBlockMemberText:
			blocks = append(blocks, schema.NewTextBlock(v.Value))
		case *types.ContentBlockMemberToolUse:
			input, err := decodeDocument(v.Value.Input)
			if err != nil {
				return schema.ConverseResponse{}, fmt.Errorf("decode tool input for %s: %w", aws.ToString(v.Value.Name), err)
			}
			blocks = append(blocks, schema.NewToolUseBlock(aws.ToString(v.Value.ToolUseId), aws.ToString(v.Value.Name), input))
		}
	}

	msg := schema.NewAssistantMessage(blocks...)
	resp.Output.Message = &msg
	return resp, nil
}

// decodeDocument turns a Smithy document into plain JSON values so that
// numbers stay numbers when handlers re-encode them.
func decodeDocument(doc document.Interface) (any, error) {
	if doc == nil {
		return map[string]any{}, nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	return v, nil
}
