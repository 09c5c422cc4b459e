// Package root wires the CLI commands together.
package root

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	debugMode bool
	logFormat string
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multiagent",
		Short: "Multi-agent customer support chat",
		Long: `multiagent runs teams of LLM agents that triage customer support
conversations, hand off between specialists and answer FAQs through
hosted Azure AI agents.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogging()
		},
	}

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI until ctx is done.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func setupLogging() {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
