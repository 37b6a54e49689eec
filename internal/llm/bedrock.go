package llm

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

var bedrockModels = map[string]string{
	"nova-lite": "us.amazon.nova-2-lite-v1:0",
	"haiku":     "us.anthropic.claude-haiku-4-5-20251001-v1:0",
	"sonnet":    "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
}

// ConverseAPI is the subset of the Bedrock runtime client the provider uses.
type ConverseAPI interface {
	Converse(ctx context.Context, in *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// BedrockProvider calls the Bedrock Converse API.
type BedrockProvider struct {
	client ConverseAPI
}

// NewBedrockProvider creates a provider from an AWS config.
func NewBedrockProvider(cfg aws.Config) *BedrockProvider {
	return &BedrockProvider{client: bedrockruntime.NewFromConfig(cfg)}
}

// NewBedrockProviderWithClient creates a provider around an existing client.
func NewBedrockProviderWithClient(c ConverseAPI) *BedrockProvider {
	return &BedrockProvider{client: c}
}

func (p *BedrockProvider) Name() string { return "bedrock" }

func (p *BedrockProvider) Complete(ctx context.Context, req Request) (Response, error) {
	modelID := bedrockModels[req.Model]
	if modelID == "" {
		modelID = req.Model
	}
	if modelID == "" {
		modelID = bedrockModels["nova-lite"]
	}

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(modelID),
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(int32(req.MaxTokens)),
			Temperature: aws.Float32(float32(req.Temperature)),
		},
	}
	if req.System != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}
	for _, m := range req.Messages {
		role := types.ConversationRoleUser
		if m.Role == RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		in.Messages = append(in.Messages, types.Message{
			Role:    role,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: m.Content}},
		})
	}

	resp, err := p.client.Converse(ctx, in)
	if err != nil {
		return Response{}, fmt.Errorf("bedrock converse %s: %w", modelID, err)
	}
	text := converseText(resp)
	if text == "" {
		return Response{}, fmt.Errorf("empty response from bedrock %s", modelID)
	}
	out := Response{Text: text, Model: modelID}
	if resp.Usage != nil {
		out.InputTokens = int(aws.ToInt32(resp.Usage.InputTokens))
		out.OutputTokens = int(aws.ToInt32(resp.Usage.OutputTokens))
	}
	return out, nil
}

func converseText(resp *bedrockruntime.ConverseOutput) string {
	if resp == nil || resp.Output == nil {
		return ""
	}
	msg, ok := resp.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			return tb.Value
		}
	}
	return ""
}
