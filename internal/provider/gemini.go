package provider

import (
	"context"

	"google.golang.org/genai"

	"sidecar/internal/plan"
	"sidecar/internal/prompt"
)

// Gemini plans through the google genai SDK in JSON mode.
type Gemini struct {
	apiKey string
}

func NewGemini(apiKey string) *Gemini {
	return &Gemini{apiKey: apiKey}
}

func (g *Gemini) Name() string { return "gemini" }

func (g *Gemini) Plan(ctx context.Context, model string, req plan.Request) plan.RawResult {
	if g.apiKey == "" {
		return plan.Failure("gemini_error:missing_api_key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: g.apiKey})
	if err != nil {
		return plan.Failure("gemini_error:" + err.Error())
	}

	temperature := float32(0.2)
	resp, err := client.Models.GenerateContent(ctx, model,
		[]*genai.Content{genai.NewContentFromText(prompt.Hosted(req), genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      &temperature,
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return plan.Failure("gemini_error:" + err.Error())
	}

	text := resp.Text()
	obj, ok := plan.ExtractJSONBlock(text)
	if !ok {
		return plan.Failure("unparsable_llm_output", clip(markupSafe(text), 300))
	}
	return plan.Structured(obj)
}
