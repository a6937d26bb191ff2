package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewGetCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Print a stored row by key or key object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			key, err := resolveKey(ix, args[0])
			if err != nil {
				return err
			}
			item, err := ix.Get(cmd.Context(), key)
			if err != nil {
				return err
			}
			out := itemJSON{
				Key:       item.Key,
				Data:      item.Data,
				CreatedAt: item.Meta.CreatedAtMS,
				UpdatedAt: item.Meta.UpdatedAtMS,
			}
			if cliutil.ParseOutputFormat(g.Config.Format) == cliutil.FormatKeys {
				fmt.Fprintln(cmd.OutOrStdout(), out.Key)
				return nil
			}
			return cliutil.PrintJSON(cmd.OutOrStdout(), out)
		},
	}
	requireIndex(cmd)
	return cmd
}
