package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"sidecar/internal/config"
)

const tmuxSession = "sidecar"

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Launch the tmux layout: pentest shell, agent, and viewer",
	RunE:  runUp,
}

func runUp(cmd *cobra.Command, args []string) error {
	fileEnv := config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	auditPath := config.ExpandUser(cfg.Logging.AuditLog)
	allowFlag := ""
	if cfg.AllowCloud {
		allowFlag = " --allow-cloud"
	}

	exe, err := os.Executable()
	if err != nil {
		exe = "sidecar"
	}

	tmuxPath, err := exec.LookPath("tmux")
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "[!] tmux is not installed. Run these in two terminals:")
		fmt.Fprintf(cmd.ErrOrStderr(), "    %s agent --provider %s --profile %s%s\n", exe, cfg.Provider, cfg.Profile, allowFlag)
		fmt.Fprintf(cmd.ErrOrStderr(), "    %s ui --audit %s\n", exe, auditPath)
		return fmt.Errorf("tmux not found")
	}

	// Reset any stale session.
	tmux("kill-session", "-t", tmuxSession)
	tmux("start-server")

	// Make the .env visible to every pane.
	for k, v := range fileEnv {
		tmux("setenv", "-g", k, v)
	}

	// Ergonomics.
	tmux("set-option", "-g", "mouse", "on")
	tmux("set-option", "-g", "set-clipboard", "on")
	tmux("set-window-option", "-g", "mode-keys", "vi")

	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/bash"
	}

	// Window with the pentest shell in the initial (top-left) pane.
	tmux("new-session", "-d", "-s", tmuxSession, "-n", "ops", shell)
	pentestID := tmuxOut("display-message", "-p", "-t", tmuxSession+":ops.0", "#{pane_id}")

	// Vertical split from the shell: new pane is the bottom UI.
	tmux("select-pane", "-t", pentestID)
	tmux("split-window", "-v", "-p", cfg.UI.Percent, "-t", pentestID, shell)
	uiID := tmuxOut("display-message", "-p", "#{pane_id}")

	// Horizontal split from the shell: new pane is the agent, top-right.
	tmux("select-pane", "-t", pentestID)
	tmux("split-window", "-h", "-p", "50", "-t", pentestID, shell)
	agentID := tmuxOut("display-message", "-p", "#{pane_id}")

	// Pane titles for the status line.
	tmux("select-pane", "-t", pentestID)
	tmux("select-pane", "-T", "pentest-shell")
	tmux("select-pane", "-t", agentID)
	tmux("select-pane", "-T", "agent")
	tmux("select-pane", "-t", uiID)
	tmux("select-pane", "-T", "ui")

	tmux("send-keys", "-t", uiID, fmt.Sprintf("%s ui --audit %s", exe, auditPath), "Enter")
	tmux("send-keys", "-t", agentID,
		fmt.Sprintf("%s agent --provider %s --profile %s%s", exe, cfg.Provider, cfg.Profile, allowFlag), "Enter")

	tmux("select-pane", "-t", pentestID)

	// Replace this process with the attached client, like execvp.
	attach := []string{"tmux", "attach", "-t", tmuxSession}
	if err := syscall.Exec(tmuxPath, attach, os.Environ()); err != nil {
		c := exec.Command(tmuxPath, attach[1:]...)
		c.Stdin, c.Stdout, c.Stderr = os.Stdin, os.Stdout, os.Stderr
		return c.Run()
	}
	return nil
}

// tmux runs a tmux command, ignoring failures the way a shell script
// with `|| true` would. Layout steps are best effort.
func tmux(args ...string) {
	c := exec.Command("tmux", args...)
	_ = c.Run()
}

// tmuxOut runs a tmux command and returns its trimmed stdout.
func tmuxOut(args ...string) string {
	out, err := exec.Command("tmux", args...).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
