package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewDiscoverCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Explore which fields hold values and what those values are",
	}
	cmd.AddCommand(newDiscoverFieldsCommand(g), newDiscoverValuesCommand(g))
	return cmd
}

func newDiscoverFieldsCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fields",
		Short: "List indexed fields with document counts and example values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			fields, err := ix.DiscoverFields(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			switch cliutil.ParseOutputFormat(g.Config.Format) {
			case cliutil.FormatJSON:
				return cliutil.PrintJSON(w, fields)
			case cliutil.FormatKeys:
				for _, f := range fields {
					fmt.Fprintln(w, f.Field)
				}
				return nil
			}
			for _, f := range fields {
				unique := ""
				if f.Unique != nil {
					unique = fmt.Sprintf(", %d unique", *f.Unique)
				}
				fmt.Fprintf(w, "%s (%s, %s): %d rows%s\n", f.Field, f.Mapper, f.Type, f.DocCount, unique)
				if len(f.Examples) > 0 {
					fmt.Fprintf(w, "  %s\n", strings.Join(f.Examples, ", "))
				}
			}
			return nil
		},
	}
	requireIndex(cmd)
	return cmd
}

func newDiscoverValuesCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var field, where string
	var top int
	cmd := &cobra.Command{
		Use:   "values",
		Short: "List the most frequent values of a keyword field",
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
			values, err := ix.DiscoverValues(cmd.Context(), field, cond, top)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if cliutil.ParseOutputFormat(g.Config.Format) == cliutil.FormatJSON {
				return cliutil.PrintJSON(w, values)
			}
			for _, v := range values {
				fmt.Fprintf(w, "%s\t%d\n", v.Value, v.Count)
			}
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVar(&field, "field", "", "keyword field")
	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON condition or @file restricting the counted rows")
	cmd.Flags().IntVar(&top, "top", 20, "number of values")
	_ = cmd.MarkFlagRequired("field")
	return cmd
}
