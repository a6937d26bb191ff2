package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewDeleteCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "delete [KEY...]",
		Short: "Delete rows by key, or every row matching --where",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (where == "") {
				return fmt.Errorf("give either keys or --where")
			}
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()

			if where != "" {
				cond, err := parseWhere(where)
				if err != nil {
					return err
				}
				keys, err := ix.DeleteWhere(cmd.Context(), cond)
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(cmd.OutOrStdout(), k)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "deleted %d\n", len(keys))
				return nil
			}

			if len(args) == 1 {
				key, err := resolveKey(ix, args[0])
				if err != nil {
					return err
				}
				ok, err := ix.Delete(cmd.Context(), key)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("not found: %s", key)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted 1")
				return nil
			}

			batch := cellindex.NewBatch()
			for _, arg := range args {
				key, err := resolveKey(ix, arg)
				if err != nil {
					return err
				}
				if err := batch.Delete(key); err != nil {
					return err
				}
			}
			n, err := ix.Batch(cmd.Context(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", n)
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON condition or @file")
	return cmd
}
