package main

import (
	"github.com/spf13/cobra"

	"sidecar/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Show the effective configuration and credential presence",
	RunE:  runDoctor,
}

func runDoctor(cmd *cobra.Command, args []string) error {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	model := ""
	if pcfg, ok := cfg.ActiveProvider(); ok {
		model = pcfg.Model
	}

	cmd.Printf("provider=%s\n", cfg.Provider)
	cmd.Printf("profile=%s\n", cfg.Profile)
	cmd.Printf("allow_cloud=%v\n", cfg.AllowCloud)
	cmd.Printf("model=%s\n", model)
	cmd.Printf("OPENAI_API_KEY set? %s\n", present(cfg.Providers["openai"].APIKey))
	cmd.Printf("ANTHROPIC_API_KEY set? %s\n", present(cfg.Providers["anthropic"].APIKey))
	cmd.Printf("GEMINI_API_KEY set? %s\n", present(cfg.Providers["gemini"].APIKey))
	cmd.Printf("ollama=%s\n", cfg.Providers["local"].BaseURL)
	cmd.Printf("session_log=%s\n", config.ExpandUser(cfg.Logging.SessionLog))
	cmd.Printf("audit_log=%s\n", config.ExpandUser(cfg.Logging.AuditLog))
	cmd.Printf("rag_db=%s\n", config.ExpandUser(cfg.RAG.DB))
	return nil
}

// present reports whether a secret is configured without echoing it.
func present(v string) string {
	if v != "" {
		return "yes"
	}
	return "no"
}
