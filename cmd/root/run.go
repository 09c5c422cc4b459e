package root

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohitshetty84/multiagent/pkg/app"
	"github.com/rohitshetty84/multiagent/pkg/config"
	"github.com/rohitshetty84/multiagent/pkg/environment"
	"github.com/rohitshetty84/multiagent/pkg/runtime"
	"github.com/rohitshetty84/multiagent/pkg/session"
	"github.com/rohitshetty84/multiagent/pkg/teamloader"
	"github.com/rohitshetty84/multiagent/pkg/tui"
)

type runFlags struct {
	sessionDB      string
	sessionID      string
	envFiles       []string
	firstMessage   string
	attachmentPath string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <agents-file>",
		Short: "Chat with an agent team in the terminal",
		Example: `  # Chat with the customer support team
  multiagent run ./examples/customer_support.yaml

  # Resume a stored session
  multiagent run ./examples/customer_support.yaml --session-db sessions.db --session-id <id>`,
		Args: cobra.ExactArgs(1),
		RunE: flags.runRunCommand,
	}

	cmd.Flags().StringVar(&flags.sessionDB, "session-db", "", "Path to the SQLite session database")
	cmd.Flags().StringVar(&flags.sessionID, "session-id", "", "Resume an existing session by ID")
	cmd.Flags().StringSliceVar(&flags.envFiles, "env-from-file", nil, "Set environment variables from file")
	cmd.Flags().StringVarP(&flags.firstMessage, "message", "m", "", "Send a first message when the chat opens")
	cmd.Flags().StringVar(&flags.attachmentPath, "attach", "", "Attach an image file to the first message")

	return cmd
}

func (f *runFlags) runRunCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	agentsFile := args[0]

	cfg, err := config.Load(agentsFile)
	if err != nil {
		return fmt.Errorf("loading agents file: %w", err)
	}

	env, err := environment.Default(f.envFiles...)
	if err != nil {
		return err
	}
	runConfig := &config.RuntimeConfig{
		DefaultEnvProvider: env,
		EnvFiles:           f.envFiles,
	}

	result, err := teamloader.Load(ctx, cfg, runConfig)
	if err != nil {
		return fmt.Errorf("loading team: %w", err)
	}
	if err := result.Team.StartToolSets(ctx); err != nil {
		return fmt.Errorf("starting toolsets: %w", err)
	}
	defer func() {
		_ = result.Team.StopToolSets(ctx)
	}()

	var store session.Store
	if f.sessionDB != "" {
		store, err = session.NewSQLiteSessionStore(f.sessionDB)
		if err != nil {
			return fmt.Errorf("opening session database: %w", err)
		}
	} else {
		store = session.NewInMemorySessionStore()
	}
	defer store.Close()

	sess := session.New()
	if f.sessionID != "" {
		sess, err = store.GetSession(ctx, f.sessionID)
		if err != nil {
			return fmt.Errorf("resuming session %s: %w", f.sessionID, err)
		}
	}

	var opts []runtime.Opt
	if result.AgentService != nil {
		opts = append(opts, runtime.WithThreadStore(result.AgentService))
	}
	rt, err := runtime.New(result.Team, opts...)
	if err != nil {
		return err
	}

	firstMessage := f.firstMessage
	if f.attachmentPath != "" {
		firstMessage += "\n[uploaded image] " + f.attachmentPath
	}

	a := app.New(filepath.Base(agentsFile), rt, sess, firstMessage, store)
	return tui.Run(ctx, a)
}
