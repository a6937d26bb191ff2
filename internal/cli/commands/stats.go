package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewStatsCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var field, where string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count, min, max, average and median of a number or date field",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			cond, err := parseWhere(where)
			if err != nil {
				return err
			}
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			st, err := ix.Stats(cmd.Context(), field, cond)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cliutil.ParseOutputFormat(g.Config.Format) == cliutil.FormatJSON {
				return cliutil.PrintJSON(w, st)
			}
			fmt.Fprintf(w, "field:  %s\ncount:  %d\n", st.Field, st.Count)
			for _, v := range []struct {
				label string
				val   *float64
			}{{"min", st.Min}, {"max", st.Max}, {"avg", st.Avg}, {"median", st.Median}} {
				if v.val != nil {
					fmt.Fprintf(w, "%-7s %g\n", v.label+":", *v.val)
				}
			}
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVar(&field, "field", "", "number or date field")
	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON condition or @file")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
