package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"sidecar/internal/config"
	"sidecar/internal/logging"
)

var (
	// Global flags
	verbose bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "sidecar",
	Short: "sidecar - passive planning copilot for pentest shells",
	Long: `sidecar watches a shell session log, extracts facts from every
command and its output, retrieves methodology snippets, and asks a
local or hosted model for the next moves. Suggestions are written to an
append-only audit trail and rendered in a terminal viewer; nothing is
ever executed on the operator's behalf.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if err := logging.Initialize(config.Dir()); err != nil {
			logger.Warn("debug logging unavailable", zap.Error(err))
		}
		if verbose {
			logging.SetDebugMode(true)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(uiCmd)
	rootCmd.AddCommand(ragCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(upCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
