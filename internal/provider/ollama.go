package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"slices"
	"strings"
	"time"

	"sidecar/internal/logging"
	"sidecar/internal/plan"
	"sidecar/internal/prompt"
)

// DefaultOllamaBase is used when no endpoint is configured.
const DefaultOllamaBase = "http://127.0.0.1:11434"

// Ollama plans against a local Ollama server, starting the server and
// pulling missing models on demand. Calls never leave the host, so
// requests reach this backend unredacted.
type Ollama struct {
	base   string
	client *http.Client

	// Overridable process hooks, swapped out in tests.
	startServer func() error
	pullModel   func(tag string) string
}

// NewOllama builds the backend for the given base URL. A bare
// host:port gets an http scheme; an empty URL gets the default
// endpoint; a non-positive timeout gets the 120s default.
func NewOllama(baseURL string, timeout time.Duration) *Ollama {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		base:        normalizeBase(baseURL),
		client:      &http.Client{Timeout: timeout},
		startServer: startServerProcess,
		pullModel:   pullWithCLI,
	}
}

func (o *Ollama) Name() string { return "ollama" }

// Plan checks server and model availability, then runs one
// non-streaming generation and extracts the JSON plan from it.
func (o *Ollama) Plan(ctx context.Context, model string, req plan.Request) plan.RawResult {
	if msg := o.ensureServer(ctx); msg != "" {
		return plan.Failure(markupSafe(msg))
	}

	model = cleanTag(model)
	if model == "" {
		return plan.Failure("ollama_error:empty_model_tag")
	}

	var notes []string
	if !slices.Contains(o.installedModels(ctx), model) {
		notes = append(notes, fmt.Sprintf("ollama_model_missing:'%s'", model))
		logging.Provider("pulling missing model %s", model)
		if msg := o.pullModel(model); msg != "" {
			return plan.Failure(msg).WithNotes(notes...)
		}
	}

	text := prompt.Local(req)
	status, body, err := o.generate(ctx, model, text)
	if err != nil {
		return plan.Failure("ollama_request_error:" + err.Error()).WithNotes(notes...)
	}

	if status >= 400 {
		excerpt := compactBody(body)
		// A 400 "invalid model name" can follow a stale tags listing;
		// pull once and retry.
		if status == 400 && strings.Contains(strings.ToLower(excerpt), "invalid model name") {
			if msg := o.pullModel(model); msg != "" {
				return plan.Failure(msg).WithNotes(notes...)
			}
			status, body, err = o.generate(ctx, model, text)
			if err != nil {
				return plan.Failure("ollama_request_error:" + err.Error()).WithNotes(notes...)
			}
			excerpt = compactBody(body)
		}
		if status >= 400 {
			return plan.Failure(
				fmt.Sprintf("ollama_http_error:%d", status),
				markupSafe(excerpt),
			).WithNotes(notes...)
		}
	}

	var decoded struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return plan.Failure("ollama_bad_json:" + err.Error()).WithNotes(notes...)
	}

	obj, ok := plan.ExtractJSONBlock(decoded.Response)
	if !ok {
		return plan.Failure(
			"parse_error:response_not_json",
			markupSafe(clip(decoded.Response, 240)),
		).WithNotes(notes...)
	}
	return plan.Structured(obj).WithNotes(notes...)
}

// ensureServer reports "" when the server answers, starting it once
// when unreachable.
func (o *Ollama) ensureServer(ctx context.Context) string {
	resp, err := o.get(ctx, "/api/version")
	if err == nil {
		resp.Body.Close()
		if resp.StatusCode < 400 {
			return ""
		}
		return fmt.Sprintf("ollama_error:http_%d", resp.StatusCode)
	}
	if o.bootServer(ctx) {
		return ""
	}
	return "ollama_error:server_unreachable"
}

// bootServer spawns `ollama serve` and polls until the port binds.
func (o *Ollama) bootServer(ctx context.Context) bool {
	if err := o.startServer(); err != nil {
		return false
	}
	logging.Provider("started ollama serve, waiting for it to bind")
	for i := 0; i < 10; i++ {
		if ctx.Err() != nil {
			return false
		}
		resp, err := o.get(ctx, "/api/version")
		if err == nil {
			ok := resp.StatusCode < 400
			resp.Body.Close()
			if ok {
				return true
			}
			continue
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func (o *Ollama) installedModels(ctx context.Context) []string {
	resp, err := o.get(ctx, "/api/tags")
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil
	}
	var data struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil
	}
	var names []string
	for _, m := range data.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumCtx      int     `json:"num_ctx"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

// generate runs one non-streaming completion, returning the status
// code and raw body.
func (o *Ollama) generate(ctx context.Context, model, text string) (int, []byte, error) {
	resp, err := o.post(ctx, "/api/generate", generateRequest{
		Model:   model,
		Prompt:  text,
		Stream:  false,
		Options: generateOptions{Temperature: 0.2, TopP: 0.9, NumCtx: 4096},
	})
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

func (o *Ollama) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.base+path, nil)
	if err != nil {
		return nil, err
	}
	return o.client.Do(req)
}

func (o *Ollama) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return o.client.Do(req)
}

func normalizeBase(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return DefaultOllamaBase
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

func startServerProcess() error {
	return exec.Command("ollama", "serve").Start()
}

// pullWithCLI shells out to the ollama binary to fetch a model tag.
// Returns "" on success or a reason code.
func pullWithCLI(tag string) string {
	if tag == "" {
		return "ollama_pull_failed:empty_tag"
	}
	out, err := exec.Command("ollama", "pull", tag).CombinedOutput()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "ollama_pull_failed:binary_not_found"
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(out)); msg != "" {
				return "ollama_pull_failed:" + msg
			}
			return fmt.Sprintf("ollama_pull_failed:exit_%d", exitErr.ExitCode())
		}
		return "ollama_pull_failed:" + err.Error()
	}
	return ""
}

// compactBody re-marshals a JSON error body onto one line, falling
// back to the raw text.
func compactBody(body []byte) string {
	var v any
	if err := json.Unmarshal(body, &v); err == nil {
		if out, err := json.Marshal(v); err == nil {
			return string(out)
		}
	}
	return string(body)
}
