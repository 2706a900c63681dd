package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sidecar/internal/plan"
	"sidecar/internal/prompt"
)

const (
	anthropicDefaultBase    = "https://api.anthropic.com"
	anthropicDefaultVersion = "2023-06-01"
)

// Anthropic plans through the Messages API with a raw HTTP client.
type Anthropic struct {
	apiKey  string
	baseURL string
	version string
	client  *http.Client
}

// NewAnthropic builds the backend. Empty version and zero timeout get
// the defaults.
func NewAnthropic(apiKey, version string, timeout time.Duration) *Anthropic {
	if version == "" {
		version = anthropicDefaultVersion
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Anthropic{
		apiKey:  apiKey,
		baseURL: anthropicDefaultBase,
		version: version,
		client:  &http.Client{Timeout: timeout},
	}
}

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (a *Anthropic) Plan(ctx context.Context, model string, req plan.Request) plan.RawResult {
	if a.apiKey == "" {
		return plan.Failure("missing ANTHROPIC_API_KEY")
	}
	model = cleanTag(model)
	if model == "" {
		return plan.Failure("anthropic_error:empty_model")
	}

	payload, err := json.Marshal(anthropicRequest{
		Model:       model,
		MaxTokens:   800,
		Temperature: 0.2,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt.Hosted(req)}},
	})
	if err != nil {
		return plan.Failure("anthropic_request_error:" + err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return plan.Failure("anthropic_request_error:" + err.Error())
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", a.version)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return plan.Failure("anthropic_request_error:" + err.Error())
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return plan.Failure("anthropic_bad_json:" + err.Error())
	}

	if resp.StatusCode >= 400 {
		return plan.Failure(
			fmt.Sprintf("anthropic_error:%d", resp.StatusCode),
			markupSafe(clip(string(body), 200)),
		)
	}

	var decoded anthropicResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return plan.Failure("anthropic_bad_json:" + err.Error())
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	obj, ok := plan.ExtractJSONBlock(text.String())
	if !ok {
		return plan.Failure("unparsable_llm_output", clip(markupSafe(text.String()), 300))
	}
	return plan.Structured(obj)
}
