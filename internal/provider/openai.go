package provider

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"sidecar/internal/plan"
	"sidecar/internal/prompt"
)

// OpenAI plans through the Chat Completions API in JSON mode.
type OpenAI struct {
	apiKey string
	// base overrides the API endpoint, used by tests.
	base string
}

// NewOpenAI builds the backend. An empty baseURL keeps the public
// endpoint.
func NewOpenAI(apiKey, baseURL string) *OpenAI {
	return &OpenAI{apiKey: apiKey, base: baseURL}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Plan(ctx context.Context, model string, req plan.Request) plan.RawResult {
	if o.apiKey == "" {
		return plan.Failure("openai_error:missing_api_key")
	}

	cfg := openai.DefaultConfig(o.apiKey)
	if o.base != "" {
		cfg.BaseURL = o.base
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.System()},
			{Role: openai.ChatMessageRoleUser, Content: prompt.UserJSON(req)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return plan.Failure("openai_error:" + err.Error())
	}

	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	obj, ok := plan.ExtractJSONBlock(text)
	if !ok {
		return plan.Failure("openai_error:could_not_parse_json: " + clip(text, 180))
	}
	return plan.Structured(obj)
}
