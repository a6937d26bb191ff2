package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex/metrics"
	"github.com/nonibytes/cellindex/internal/cli/commands"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/config"
	"github.com/nonibytes/cellindex/internal/logger"
)

// NewRootCommand builds the command tree. Output goes to stdout and errors
// to stderr as set on the returned command.
func NewRootCommand() *cobra.Command {
	g := &cliopt.GlobalOptions{}

	root := &cobra.Command{
		Use:           "cellindex",
		Short:         "Secondary indexes over structured rows, stored in SQLite or PostgreSQL",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.ConfigPath, cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logger.New(logger.Config{Level: cfg.Log.Level, Encoding: cfg.Log.Encoding})
			if err != nil {
				return err
			}
			g.Config = cfg
			g.Logger = log
			if cfg.MetricsFile != "" {
				g.Registry = prometheus.NewRegistry()
				if g.Metrics, err = metrics.New(g.Registry); err != nil {
					return err
				}
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			_ = g.Logger.Sync()
			if g.Registry == nil {
				return nil
			}
			return prometheus.WriteToTextfile(g.Config.MetricsFile, g.Registry)
		},
	}
	cliopt.BindGlobalFlags(root.PersistentFlags(), g)

	root.AddCommand(
		commands.NewIndexCommand(g),
		commands.NewPutCommand(g),
		commands.NewGetCommand(g),
		commands.NewDeleteCommand(g),
		commands.NewSearchCommand(g),
		commands.NewExplainCommand(g),
		commands.NewDiscoverCommand(g),
		commands.NewStatsCommand(g),
		commands.NewSyncCommand(g),
	)
	return root
}

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	return run(argv, os.Stdin, os.Stdout, os.Stderr)
}

func run(argv []string, stdin io.Reader, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(argv)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}
