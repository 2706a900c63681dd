package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// clearEnv blanks every variable Load consults so tests see only what
// they set themselves. t.Setenv restores the originals on cleanup.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"AIC_PROVIDER", "AIC_PROFILE", "AIC_ALLOW_CLOUD",
		"AIC_LOCAL_MODEL", "AIC_OPENAI_MODEL", "AIC_ANTHROPIC_MODEL", "AIC_GEMINI_MODEL",
		"AIC_OPENAI_FALLBACKS", "AIC_RAG_DB", "AIC_LOG_PATH", "AIC_AUDIT_PATH",
		"AIC_OLLAMA_TIMEOUT", "AIC_ANTHROPIC_TIMEOUT", "AIC_UI_PERCENT",
		"OLLAMA_URL", "OLLAMA_HOST",
		"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_VERSION",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != "local" {
		t.Errorf("expected Provider=local, got %s", cfg.Provider)
	}
	if cfg.Profile != "prod-safe" {
		t.Errorf("expected Profile=prod-safe, got %s", cfg.Profile)
	}
	if cfg.AllowCloud {
		t.Error("expected AllowCloud=false by default")
	}

	ctf, ok := cfg.Profiles["ctf"]
	if !ok {
		t.Fatal("expected a ctf profile")
	}
	if !ctf.AllowExploit || ctf.NoiseBudget != "high" {
		t.Errorf("unexpected ctf profile: %+v", ctf)
	}
	if prod := cfg.Profiles["prod-safe"]; prod.AllowExploit {
		t.Error("prod-safe must not allow exploits")
	}

	if got := len(cfg.Providers); got != 4 {
		t.Fatalf("expected 4 providers, got %d", got)
	}
	local := cfg.Providers["local"]
	if local.Type != "ollama" || local.Model != "llama3.2:1b" {
		t.Errorf("unexpected local provider: %+v", local)
	}
	if local.Redact {
		t.Error("local provider must never redact")
	}
	for _, name := range []string{"openai", "anthropic", "gemini"} {
		if !cfg.Providers[name].Redact {
			t.Errorf("provider %s should redact by default", name)
		}
	}
	if len(cfg.Providers["openai"].Fallbacks) == 0 {
		t.Error("openai provider should ship a fallback chain")
	}

	if cfg.RAG.K != 4 || cfg.RAG.DB != "~/.sidecar/rag.sqlite" {
		t.Errorf("unexpected rag config: %+v", cfg.RAG)
	}
	if cfg.Logging.AuditLog != "~/.sidecar/audit.jsonl" {
		t.Errorf("unexpected audit log path: %s", cfg.Logging.AuditLog)
	}
	if cfg.UI.Percent != "60" {
		t.Errorf("unexpected ui percent: %s", cfg.UI.Percent)
	}
}

func TestLoad_WritesDefaultsOnFirstRun(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "local" {
		t.Errorf("expected default provider, got %s", cfg.Provider)
	}

	written := filepath.Join(home, ".sidecar", "config.yaml")
	if _, err := os.Stat(written); err != nil {
		t.Fatalf("expected defaults written to %s: %v", written, err)
	}

	// Second load round-trips the file it just wrote.
	again, err := Load()
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if again.RAG.K != cfg.RAG.K || again.Provider != cfg.Provider {
		t.Errorf("reloaded config diverged: %+v vs %+v", again, cfg)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, "provider: anthropic\nrag:\n  k: 9\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("expected provider=anthropic, got %s", cfg.Provider)
	}
	if cfg.RAG.K != 9 {
		t.Errorf("expected rag.k=9, got %d", cfg.RAG.K)
	}
	// Fields absent from the file keep their defaults.
	if cfg.RAG.DB != "~/.sidecar/rag.sqlite" {
		t.Errorf("rag.db default lost: %s", cfg.RAG.DB)
	}
	if cfg.Providers["local"].Model != "llama3.2:1b" {
		t.Errorf("default providers lost: %+v", cfg.Providers)
	}
}

func TestLoad_ProviderEntryReplacedWholesale(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, "providers:\n  openai:\n    type: openai\n    model: my-model\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	// A provider listed in the file replaces the default entry entirely;
	// the ones it does not mention survive.
	oa := cfg.Providers["openai"]
	if oa.Model != "my-model" {
		t.Errorf("expected model=my-model, got %s", oa.Model)
	}
	if oa.Redact || len(oa.Fallbacks) != 0 {
		t.Errorf("file entry should replace defaults wholesale: %+v", oa)
	}
	if cfg.Providers["anthropic"].Model == "" {
		t.Error("providers absent from the file should keep defaults")
	}
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	writeConfig(t, home, "provider: \"unterminated\n")

	if _, err := Load(); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)

	t.Setenv("AIC_PROVIDER", " openai ")
	t.Setenv("AIC_PROFILE", "ctf")
	t.Setenv("AIC_ALLOW_CLOUD", "true")
	t.Setenv("AIC_LOCAL_MODEL", "qwen2.5:3b")
	t.Setenv("OLLAMA_URL", "http://10.0.0.2:11434")
	t.Setenv("AIC_OLLAMA_TIMEOUT", "45s")
	t.Setenv("AIC_OPENAI_MODEL", "gpt-5")
	t.Setenv("AIC_OPENAI_FALLBACKS", "gpt-5-mini, gpt-4o ,")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("AIC_ANTHROPIC_MODEL", "claude-test")
	t.Setenv("ANTHROPIC_API_KEY", "ant-env")
	t.Setenv("ANTHROPIC_VERSION", "2024-01-01")
	t.Setenv("AIC_ANTHROPIC_TIMEOUT", "30s")
	t.Setenv("AIC_GEMINI_MODEL", "gemini-test")
	t.Setenv("GEMINI_API_KEY", "gem-env")
	t.Setenv("AIC_RAG_DB", "/tmp/rag.sqlite")
	t.Setenv("AIC_LOG_PATH", "/tmp/session.jsonl")
	t.Setenv("AIC_AUDIT_PATH", "/tmp/audit.jsonl")
	t.Setenv("AIC_UI_PERCENT", "40")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.Provider != "openai" {
		t.Errorf("expected provider=openai (trimmed), got %q", cfg.Provider)
	}
	if cfg.Profile != "ctf" || !cfg.AllowCloud {
		t.Errorf("profile/allow_cloud overrides lost: %s %v", cfg.Profile, cfg.AllowCloud)
	}

	local := cfg.Providers["local"]
	if local.Model != "qwen2.5:3b" || local.BaseURL != "http://10.0.0.2:11434" || local.Timeout != "45s" {
		t.Errorf("local overrides lost: %+v", local)
	}
	if local.Type != "ollama" {
		t.Errorf("override clobbered untouched fields: %+v", local)
	}

	oa := cfg.Providers["openai"]
	if oa.Model != "gpt-5" || oa.APIKey != "sk-env" {
		t.Errorf("openai overrides lost: %+v", oa)
	}
	if len(oa.Fallbacks) != 2 || oa.Fallbacks[0] != "gpt-5-mini" || oa.Fallbacks[1] != "gpt-4o" {
		t.Errorf("fallback list not split/trimmed: %v", oa.Fallbacks)
	}

	ant := cfg.Providers["anthropic"]
	if ant.Model != "claude-test" || ant.APIKey != "ant-env" || ant.Version != "2024-01-01" || ant.Timeout != "30s" {
		t.Errorf("anthropic overrides lost: %+v", ant)
	}

	gem := cfg.Providers["gemini"]
	if gem.Model != "gemini-test" || gem.APIKey != "gem-env" {
		t.Errorf("gemini overrides lost: %+v", gem)
	}

	if cfg.RAG.DB != "/tmp/rag.sqlite" {
		t.Errorf("rag db override lost: %s", cfg.RAG.DB)
	}
	if cfg.Logging.SessionLog != "/tmp/session.jsonl" || cfg.Logging.AuditLog != "/tmp/audit.jsonl" {
		t.Errorf("log path overrides lost: %+v", cfg.Logging)
	}
	if cfg.UI.Percent != "40" {
		t.Errorf("ui percent override lost: %s", cfg.UI.Percent)
	}
}

func TestConfig_OllamaHostFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_HOST", "http://host:11434")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()
	if got := cfg.Providers["local"].BaseURL; got != "http://host:11434" {
		t.Errorf("OLLAMA_HOST not honored: %s", got)
	}

	t.Setenv("OLLAMA_URL", "http://url:11434")
	cfg = DefaultConfig()
	cfg.applyEnvOverrides()
	if got := cfg.Providers["local"].BaseURL; got != "http://url:11434" {
		t.Errorf("OLLAMA_URL should beat OLLAMA_HOST: %s", got)
	}
}

func TestConfig_SaveLoadRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.Provider = "anthropic"
	cfg.mutateProvider("anthropic", func(p *ProviderConfig) { p.APIKey = "sk-test" })

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := loadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Provider != "anthropic" {
		t.Errorf("expected provider=anthropic, got %s", loaded.Provider)
	}
	if loaded.Providers["anthropic"].APIKey != "sk-test" {
		t.Errorf("api key lost in round trip: %+v", loaded.Providers["anthropic"])
	}
	if len(loaded.Providers["openai"].Fallbacks) != 2 {
		t.Errorf("fallbacks lost in round trip: %+v", loaded.Providers["openai"])
	}
}

func TestTruthy(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{" Yes ", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"on", false},
	} {
		if got := truthy(tc.in); got != tc.want {
			t.Errorf("truthy(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSplitList(t *testing.T) {
	if got := splitList("a, b ,,c"); len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitList = %v", got)
	}
	if got := splitList(" , "); got != nil {
		t.Errorf("expected nil for blank list, got %v", got)
	}
}

func TestProviderTimeoutOr(t *testing.T) {
	if got := (ProviderConfig{Timeout: "90s"}).TimeoutOr(time.Minute); got != 90*time.Second {
		t.Errorf("TimeoutOr = %v", got)
	}
	if got := (ProviderConfig{}).TimeoutOr(time.Minute); got != time.Minute {
		t.Errorf("empty timeout should fall back, got %v", got)
	}
	if got := (ProviderConfig{Timeout: "soon"}).TimeoutOr(time.Minute); got != time.Minute {
		t.Errorf("bad timeout should fall back, got %v", got)
	}
	if got := (ProviderConfig{Timeout: "-5s"}).TimeoutOr(time.Minute); got != time.Minute {
		t.Errorf("negative timeout should fall back, got %v", got)
	}
}

func TestActiveSelections(t *testing.T) {
	cfg := DefaultConfig()

	if p := cfg.ActiveProfile(); p.NoiseBudget != "low" {
		t.Errorf("unexpected active profile: %+v", p)
	}
	if _, ok := cfg.ActiveProvider(); !ok {
		t.Error("default provider should resolve")
	}

	cfg.Provider = "nope"
	if _, ok := cfg.ActiveProvider(); ok {
		t.Error("unknown provider should not resolve")
	}
}

func TestExpandUser(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got := ExpandUser("~/.sidecar/rag.sqlite"); got != filepath.Join(home, ".sidecar", "rag.sqlite") {
		t.Errorf("ExpandUser = %s", got)
	}
	if got := ExpandUser("~"); got != home {
		t.Errorf("ExpandUser(~) = %s", got)
	}
	if got := ExpandUser("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path should pass through, got %s", got)
	}
	if got := ExpandUser("~user/x"); got != "~user/x" {
		t.Errorf("~user form should pass through, got %s", got)
	}
}

func writeConfig(t *testing.T, home, body string) {
	t.Helper()
	dir := filepath.Join(home, ".sidecar")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
}
