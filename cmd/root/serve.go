package root

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/metrics"
	"github.com/rohitshetty84/multiagent/pkg/server"
	"github.com/rohitshetty84/multiagent/pkg/session"
)

type serveFlags struct {
	listenAddr string
	agentsDir  string
	sessionDB  string
	envFiles   []string
}

func newServeCmd() *cobra.Command {
	var flags serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve agent teams over HTTP",
		Example: `  # Serve every agents file in a directory
  multiagent serve --agents-dir ./examples

  # Listen on a Unix socket
  multiagent serve --agents-dir ./examples --listen unix:///var/run/multiagent.sock`,
		Args: cobra.NoArgs,
		RunE: flags.runServeCommand,
	}

	cmd.Flags().StringVarP(&flags.listenAddr, "listen", "l", ":8080", "Address to listen on (host:port or unix:///path/to/socket)")
	cmd.Flags().StringVar(&flags.agentsDir, "agents-dir", ".", "Directory containing agents files")
	cmd.Flags().StringVar(&flags.sessionDB, "session-db", "sessions.db", "Path to the SQLite session database")
	cmd.Flags().StringSliceVar(&flags.envFiles, "env-from-file", nil, "Set environment variables from file")

	return cmd
}

func (f *serveFlags) runServeCommand(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	sources, err := config.ResolveSources(f.agentsDir)
	if err != nil {
		return fmt.Errorf("resolving agents directory: %w", err)
	}

	store, err := session.NewSQLiteSessionStore(f.sessionDB)
	if err != nil {
		return fmt.Errorf("opening session database: %w", err)
	}
	defer store.Close()

	env, err := environment.Default(f.envFiles...)
	if err != nil {
		return err
	}
	runConfig := &config.RuntimeConfig{
		DefaultEnvProvider: env,
		EnvFiles:           f.envFiles,
	}

	srv, err := server.New(store, runConfig, sources,
		server.WithRecorder(metrics.NewPrometheusRecorder(nil)))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Reload teams when an agents file changes on disk.
	watcher, err := config.NewWatcher()
	if err != nil {
		slog.Warn("Agents hot reload disabled", "error", err)
	} else {
		defer watcher.Close()
		if err := watcher.Watch(f.agentsDir); err != nil {
			slog.Warn("Agents hot reload disabled", "error", err)
		} else {
			watcher.Start(ctx)
			go func() {
				for range watcher.Events() {
					srv.InvalidateTeams(ctx)
				}
			}()
		}
	}

	ln, err := server.Listen(ctx, f.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", f.listenAddr, err)
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	slog.Info("Listening", "addr", ln.Addr().String())
	return srv.Serve(ctx, ln)
}
