package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewExplainCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var where, rank string
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Show the plan and SQL for a condition without running it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			cond, err := parseWhere(where)
			if err != nil {
				return err
			}
			if cond == nil {
				return fmt.Errorf("missing --where")
			}
			rm, err := ParseRankMode(rank)
			if err != nil {
				return err
			}
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			ex, err := ix.Explain(cmd.Context(), cond, rm)
			if err != nil {
				return err
			}
			if cliutil.ParseOutputFormat(g.Config.Format) == cliutil.FormatJSON {
				return cliutil.PrintJSON(cmd.OutOrStdout(), ex)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Query: %s\n\nPlan:\n", ex.Query)
			for _, s := range ex.Steps {
				fmt.Fprintf(w, "  %s\n", s)
			}
			fmt.Fprintf(w, "\nSQL:\n%s\n\nArgs: %v\n", ex.SQL, ex.Args)
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON condition or @file")
	cmd.Flags().StringVar(&rank, "rank", "default", "rank: default|recency|none|field:<name>[:desc]")
	return cmd
}
