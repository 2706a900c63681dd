// Package config builds the immutable runtime configuration for sidecar.
//
// Configuration is resolved exactly once at startup: LoadEnv seeds the
// process environment from ~/.sidecar/.env, then Load reads
// ~/.sidecar/config.yaml (writing defaults back on first run) and folds
// the AIC_* environment overrides into the returned Config. Nothing else
// in the program reads the process environment after that.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	// Active selections. Flags on the CLI beat these; these beat the
	// compiled-in defaults.
	Provider   string `yaml:"provider"`
	Profile    string `yaml:"profile"`
	AllowCloud bool   `yaml:"allow_cloud"`

	Profiles  map[string]ProfileConfig  `yaml:"profiles"`
	Providers map[string]ProviderConfig `yaml:"providers"`

	RAG     RAGConfig     `yaml:"rag"`
	Logging LoggingConfig `yaml:"logging"`
	UI      UIConfig      `yaml:"ui"`
}

// ProfileConfig shapes how aggressive the plans are allowed to be.
type ProfileConfig struct {
	NoiseBudget         string `yaml:"noise_budget"`
	AllowExploit        bool   `yaml:"allow_exploit"`
	PreferMachineOutput bool   `yaml:"prefer_machine_output"`
}

// ProviderConfig configures one planning backend.
type ProviderConfig struct {
	Type      string   `yaml:"type"` // ollama, openai, anthropic, gemini
	Model     string   `yaml:"model"`
	BaseURL   string   `yaml:"base_url,omitempty"`
	APIKey    string   `yaml:"api_key,omitempty"`
	Version   string   `yaml:"version,omitempty"` // anthropic API version header
	Redact    bool     `yaml:"redact,omitempty"`
	Fallbacks []string `yaml:"fallbacks,omitempty"`
	Timeout   string   `yaml:"timeout,omitempty"`
}

// RAGConfig configures the knowledge store.
type RAGConfig struct {
	DB string `yaml:"db"`
	K  int    `yaml:"k"`
}

// LoggingConfig configures the session tail, audit trail, and the debug
// log tree. The debug/categories/level fields are re-read from the same
// file by the logging package at Initialize time.
type LoggingConfig struct {
	SessionLog string          `yaml:"session_log"`
	AuditLog   string          `yaml:"audit_log"`
	Debug      bool            `yaml:"debug"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level,omitempty"`
	JSONFormat bool            `yaml:"json_format,omitempty"`
}

// UIConfig configures the tmux layout spawned by `sidecar up`.
type UIConfig struct {
	Percent string `yaml:"percent"` // bottom UI pane height, percent
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() *Config {
	return &Config{
		Provider:   "local",
		Profile:    "prod-safe",
		AllowCloud: false,

		Profiles: map[string]ProfileConfig{
			"prod-safe": {
				NoiseBudget:         "low",
				AllowExploit:        false,
				PreferMachineOutput: true,
			},
			"ctf": {
				NoiseBudget:         "high",
				AllowExploit:        true,
				PreferMachineOutput: true,
			},
		},

		Providers: map[string]ProviderConfig{
			"local": {
				Type:    "ollama",
				Model:   "llama3.2:1b",
				BaseURL: "http://127.0.0.1:11434",
				Timeout: "120s",
			},
			"openai": {
				Type:      "openai",
				Model:     "gpt-5-nano",
				Redact:    true,
				Fallbacks: []string{"gpt-5-mini", "gpt-4.1-mini"},
			},
			"anthropic": {
				Type:    "anthropic",
				Model:   "claude-3-7-sonnet-20250219",
				Redact:  true,
				Version: "2023-06-01",
				Timeout: "60s",
			},
			"gemini": {
				Type:   "gemini",
				Model:  "gemini-2.0-flash",
				Redact: true,
			},
		},

		RAG: RAGConfig{
			DB: "~/.sidecar/rag.sqlite",
			K:  4,
		},

		Logging: LoggingConfig{
			SessionLog: "~/.sidecar/session.jsonl",
			AuditLog:   "~/.sidecar/audit.jsonl",
			Debug:      false,
			Categories: map[string]bool{},
		},

		UI: UIConfig{Percent: "60"},
	}
}

// Dir returns the sidecar home directory (~/.sidecar), with the tilde
// expanded.
func Dir() string {
	return ExpandUser("~/.sidecar")
}

// Path returns the config file path inside Dir.
func Path() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Load reads ~/.sidecar/config.yaml on top of the defaults and applies
// environment overrides. A missing file is not an error: the defaults
// are written back so the operator has something to edit.
//
// Call LoadEnv first if values from ~/.sidecar/.env should be visible
// to the overrides.
func Load() (*Config, error) {
	return loadFile(Path())
}

func loadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if werr := cfg.Save(path); werr != nil {
				return nil, fmt.Errorf("write default config: %w", werr)
			}
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// applyEnvOverrides folds the environment into the config. This is the
// only place the process environment is consulted.
func (c *Config) applyEnvOverrides() {
	if v := strings.TrimSpace(os.Getenv("AIC_PROVIDER")); v != "" {
		c.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("AIC_PROFILE")); v != "" {
		c.Profile = v
	}
	if v := os.Getenv("AIC_ALLOW_CLOUD"); v != "" {
		c.AllowCloud = truthy(v)
	}

	if v := os.Getenv("AIC_LOCAL_MODEL"); v != "" {
		c.mutateProvider("local", func(p *ProviderConfig) { p.Model = v })
	}
	if v := firstEnv("OLLAMA_URL", "OLLAMA_HOST"); v != "" {
		c.mutateProvider("local", func(p *ProviderConfig) { p.BaseURL = v })
	}
	if v := os.Getenv("AIC_OLLAMA_TIMEOUT"); v != "" {
		c.mutateProvider("local", func(p *ProviderConfig) { p.Timeout = v })
	}

	if v := os.Getenv("AIC_OPENAI_MODEL"); v != "" {
		c.mutateProvider("openai", func(p *ProviderConfig) { p.Model = v })
	}
	if v := os.Getenv("AIC_OPENAI_FALLBACKS"); v != "" {
		c.mutateProvider("openai", func(p *ProviderConfig) { p.Fallbacks = splitList(v) })
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.mutateProvider("openai", func(p *ProviderConfig) { p.APIKey = v })
	}

	if v := os.Getenv("AIC_ANTHROPIC_MODEL"); v != "" {
		c.mutateProvider("anthropic", func(p *ProviderConfig) { p.Model = v })
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.mutateProvider("anthropic", func(p *ProviderConfig) { p.APIKey = v })
	}
	if v := os.Getenv("ANTHROPIC_VERSION"); v != "" {
		c.mutateProvider("anthropic", func(p *ProviderConfig) { p.Version = v })
	}
	if v := os.Getenv("AIC_ANTHROPIC_TIMEOUT"); v != "" {
		c.mutateProvider("anthropic", func(p *ProviderConfig) { p.Timeout = v })
	}

	if v := os.Getenv("AIC_GEMINI_MODEL"); v != "" {
		c.mutateProvider("gemini", func(p *ProviderConfig) { p.Model = v })
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.mutateProvider("gemini", func(p *ProviderConfig) { p.APIKey = v })
	}

	if v := os.Getenv("AIC_RAG_DB"); v != "" {
		c.RAG.DB = v
	}
	if v := os.Getenv("AIC_LOG_PATH"); v != "" {
		c.Logging.SessionLog = v
	}
	if v := os.Getenv("AIC_AUDIT_PATH"); v != "" {
		c.Logging.AuditLog = v
	}
	if v := os.Getenv("AIC_UI_PERCENT"); v != "" {
		c.UI.Percent = v
	}
}

// mutateProvider applies fn to the named provider entry. Map entries
// are value structs, so this is the read-modify-write spelled out once.
func (c *Config) mutateProvider(name string, fn func(p *ProviderConfig)) {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	p := c.Providers[name]
	fn(&p)
	c.Providers[name] = p
}

// TimeoutOr parses the provider timeout, falling back when it is unset
// or unparsable.
func (p ProviderConfig) TimeoutOr(fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ActiveProfile returns the selected profile, or a zero profile when
// the selection names nothing in the map.
func (c *Config) ActiveProfile() ProfileConfig {
	return c.Profiles[c.Profile]
}

// ActiveProvider returns the selected provider entry.
func (c *Config) ActiveProvider() (ProviderConfig, bool) {
	p, ok := c.Providers[c.Provider]
	return p, ok
}

// ExpandUser expands a leading ~ to the user's home directory.
func ExpandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return home
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
