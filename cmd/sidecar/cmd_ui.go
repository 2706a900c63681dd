package main

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"sidecar/cmd/sidecar/ui"
	"sidecar/internal/config"
)

var uiAudit string

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Terminal viewer for the audit trail",
	RunE:  runUI,
}

func init() {
	uiCmd.Flags().StringVar(&uiAudit, "audit", "", "Path to audit.jsonl (required)")
	_ = uiCmd.MarkFlagRequired("audit")
}

func runUI(cmd *cobra.Command, args []string) error {
	model := ui.New(config.ExpandUser(uiAudit))
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
