package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/nonibytes/cellindex/cellindex/schema"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
	"github.com/nonibytes/cellindex/internal/config"
)

func NewIndexCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Create, inspect and maintain indexes",
	}
	cmd.AddCommand(
		newIndexCreateCommand(g),
		newIndexSchemaCommand(g),
		newIndexShowCommand(g),
		newIndexOptimizeCommand(g),
	)
	return cmd
}

func newIndexCreateCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var tablePath, schemaPath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an index from a table document and a schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			table, err := config.LoadTable(tablePath)
			if err != nil {
				return err
			}
			spec, err := config.LoadSchema(schemaPath)
			if err != nil {
				return err
			}
			adapter, err := cliutil.Adapter(g, name)
			if err != nil {
				return err
			}
			ix, err := cellindex.Create(cmd.Context(), adapter, spec, table, cliutil.IndexOptions(g))
			if err != nil {
				return err
			}
			defer ix.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", name, adapter.IndexID())
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVar(&tablePath, "table", "", "table document (yaml or json)")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema json file")
	_ = cmd.MarkFlagRequired("table")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func newIndexSchemaCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var schemaPath string
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Replace the schema of an index; existing rows keep their encoding until reindexed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			spec, err := config.LoadSchema(schemaPath)
			if err != nil {
				return err
			}
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			if err := ix.ApplySchema(cmd.Context(), spec); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema json file")
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

type indexShow struct {
	ID     string        `json:"id"`
	Table  row.TableSpec `json:"table"`
	Schema schema.Spec   `json:"schema"`
}

func newIndexShowCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the table and schema of an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			return cliutil.PrintJSON(cmd.OutOrStdout(), indexShow{
				ID:     ix.Adapter().IndexID(),
				Table:  ix.Table().Spec(),
				Schema: ix.Schema().Spec(),
			})
		},
	}
	requireIndex(cmd)
	return cmd
}

func newIndexOptimizeCommand(g *cliopt.GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Prune unused dictionary entries and let the database reclaim space",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()
			if err := ix.Optimize(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "optimized")
			return nil
		},
	}
	requireIndex(cmd)
	return cmd
}
