package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sidecar/internal/logging"
	"sidecar/internal/plan"
	"sidecar/internal/redact"
)

// Options configure a Gateway around a backend.
type Options struct {
	// Fallbacks are extra model tags tried in order after the primary.
	Fallbacks []string
	// Redact scrubs the request before it leaves the host. Set for
	// hosted backends, never for local ones.
	Redact bool
	// AllowCloud is the operator override to send requests unredacted.
	AllowCloud bool
	// Timeout bounds each backend call. Defaults to 60s.
	Timeout time.Duration
}

// Gateway fronts one backend: it applies the redaction policy, walks
// the model fallback chain, and bounds every call with a timeout.
type Gateway struct {
	backend Backend
	model   string
	opts    Options
}

// NewGateway wires a backend with its primary model and options.
func NewGateway(backend Backend, model string, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	return &Gateway{backend: backend, model: model, opts: opts}
}

// Plan runs the request through the backend's model chain. The first
// non-failure wins. A missing credential aborts the chain immediately.
// Exhaustion returns the last failure with the chain recorded as an
// extra reason.
func (g *Gateway) Plan(ctx context.Context, req plan.Request) plan.RawResult {
	trace := uuid.NewString()[:8]
	log := logging.WithRequestID(logging.CategoryProvider, trace)
	timer := logging.StartTimer(logging.CategoryProvider, "Plan")
	defer timer.Stop()

	if g.opts.Redact && !g.opts.AllowCloud {
		req = req.Rewrite(redact.Text)
		log.Debug("request redacted before egress")
	}

	chain := append([]string{g.model}, g.opts.Fallbacks...)
	var last plan.RawResult
	for _, model := range chain {
		callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
		res := g.backend.Plan(callCtx, model, req)
		cancel()

		if res.Kind != plan.RawFailure {
			log.Info("%s/%s produced a plan", g.backend.Name(), model)
			return res
		}
		log.Warn("%s/%s failed: %v", g.backend.Name(), model, res.Reasons)
		last = res
		if missingCredential(res) {
			return res
		}
	}

	if len(chain) > 1 {
		reasons := append(append([]string{}, last.Reasons...),
			fmt.Sprintf("model_chain_tried=%v", chain))
		return plan.RawResult{Kind: plan.RawFailure, Reasons: reasons, Notes: last.Notes}
	}
	return last
}

// missingCredential reports whether a failure is model-independent, in
// which case walking the rest of the chain is pointless.
func missingCredential(r plan.RawResult) bool {
	if r.Kind != plan.RawFailure {
		return false
	}
	for _, reason := range r.Reasons {
		switch reason {
		case "openai_error:missing_api_key",
			"missing ANTHROPIC_API_KEY",
			"gemini_error:missing_api_key":
			return true
		}
	}
	return false
}
