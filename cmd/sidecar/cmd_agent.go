package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sidecar/internal/agent"
	"sidecar/internal/config"
	"sidecar/internal/provider"
	"sidecar/internal/retrieval"
	"sidecar/internal/session"
)

var (
	agentProvider   string
	agentProfile    string
	agentDryRun     bool
	agentAllowCloud bool
	agentSession    string
	agentAudit      string
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the background planning agent",
	Long: `Tails the session log and produces a plan per command event.
Provider and profile resolve flags-first, then AIC_* environment
variables (hydrated from ~/.sidecar/.env), then config defaults.`,
	RunE: runAgent,
}

func init() {
	agentCmd.Flags().StringVar(&agentProvider, "provider", "", "Planning backend: local, openai, anthropic, gemini")
	agentCmd.Flags().StringVar(&agentProfile, "profile", "", "Engagement profile: prod-safe, ctf")
	agentCmd.Flags().BoolVar(&agentDryRun, "dry-run", false, "Skip model calls, still extract and audit")
	agentCmd.Flags().BoolVar(&agentAllowCloud, "allow-cloud", false, "Permit sending non-redacted detail to cloud providers")
	agentCmd.Flags().StringVar(&agentSession, "session", "", "Session log path (default from config)")
	agentCmd.Flags().StringVar(&agentAudit, "audit", "", "Audit log path (default from config)")
}

func runAgent(cmd *cobra.Command, args []string) error {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags beat env beat defaults.
	if agentProvider != "" {
		cfg.Provider = agentProvider
	}
	if agentProfile != "" {
		cfg.Profile = agentProfile
	}
	if agentAllowCloud {
		cfg.AllowCloud = true
	}

	pcfg, ok := cfg.ActiveProvider()
	if !ok {
		return fmt.Errorf("unknown provider %q", cfg.Provider)
	}

	sessionPath := agentSession
	if sessionPath == "" {
		sessionPath = cfg.Logging.SessionLog
	}
	sessionPath = config.ExpandUser(sessionPath)

	auditPath := agentAudit
	if auditPath == "" {
		auditPath = cfg.Logging.AuditLog
	}
	auditPath = config.ExpandUser(auditPath)

	if err := touch(sessionPath); err != nil {
		return fmt.Errorf("prepare session log: %w", err)
	}

	auditLog, err := agent.OpenAuditLog(auditPath)
	if err != nil {
		return err
	}
	defer auditLog.Close()

	var planner agent.Planner
	if !agentDryRun {
		backend, err := buildBackend(pcfg)
		if err != nil {
			return err
		}
		planner = provider.NewGateway(backend, pcfg.Model, provider.Options{
			Fallbacks:  pcfg.Fallbacks,
			Redact:     pcfg.Redact,
			AllowCloud: cfg.AllowCloud,
			Timeout:    pcfg.TimeoutOr(60 * time.Second),
		})
	}

	store, err := retrieval.Open(config.ExpandUser(cfg.RAG.DB))
	if err != nil {
		logger.Warn("knowledge store unavailable, planning without snippets", zap.Error(err))
		store = nil
	} else {
		defer store.Close()
	}

	watcher, err := session.NewWatcher(sessionPath)
	if err != nil {
		logger.Warn("file watcher unavailable, falling back to polling", zap.Error(err))
		watcher = nil
	}

	cmd.Printf("watching %s | provider=%s profile=%s model=%s dry_run=%v\n",
		sessionPath, cfg.Provider, cfg.Profile, pcfg.Model, agentDryRun)
	logger.Info("agent starting",
		zap.String("provider", cfg.Provider),
		zap.String("profile", cfg.Profile),
		zap.String("model", pcfg.Model),
		zap.Bool("dry_run", agentDryRun),
		zap.Bool("allow_cloud", cfg.AllowCloud))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := agent.New(agent.Options{
		Profile:    cfg.Profile,
		DryRun:     agentDryRun,
		SessionLog: sessionPath,
		Audit:      auditLog,
		Store:      store,
		Planner:    planner,
		Watcher:    watcher,
		Out:        cmd.OutOrStdout(),
	})
	return a.Run(ctx)
}

// buildBackend maps a provider entry to its backend implementation.
func buildBackend(pcfg config.ProviderConfig) (provider.Backend, error) {
	switch pcfg.Type {
	case "ollama":
		return provider.NewOllama(pcfg.BaseURL, pcfg.TimeoutOr(120*time.Second)), nil
	case "openai":
		return provider.NewOpenAI(pcfg.APIKey, pcfg.BaseURL), nil
	case "anthropic":
		return provider.NewAnthropic(pcfg.APIKey, pcfg.Version, pcfg.TimeoutOr(60*time.Second)), nil
	case "gemini":
		return provider.NewGemini(pcfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", pcfg.Type)
	}
}

// touch makes sure a log file exists so tailing and watching have
// something to attach to.
func touch(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
