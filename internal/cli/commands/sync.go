package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/row"
	pgsource "github.com/nonibytes/cellindex/cellindex/rowsource/postgres"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
	"github.com/nonibytes/cellindex/internal/config"
)

func NewSyncCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var sourceDSN, sourceSchema, table, schemaPath string
	var batchSize int
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Index every row of a PostgreSQL table",
		Long: "Reads the table definition from information_schema and indexes all of its rows.\n" +
			"With --schema a new index is created for the table first; otherwise the index must exist.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			name, _ := cmd.Flags().GetString("index")

			src, err := pgsource.Connect(ctx, sourceDSN, sourceSchema, g.Logger)
			if err != nil {
				return err
			}
			defer src.Close(ctx)

			tbl, err := src.Table(ctx, table)
			if err != nil {
				return err
			}

			var ix *cellindex.Index
			if schemaPath != "" {
				spec, err := config.LoadSchema(schemaPath)
				if err != nil {
					return err
				}
				adapter, err := cliutil.Adapter(g, name)
				if err != nil {
					return err
				}
				if ix, err = cellindex.Create(ctx, adapter, spec, tbl, cliutil.IndexOptions(g)); err != nil {
					return err
				}
			} else if ix, err = cliutil.OpenIndex(ctx, g, name); err != nil {
				return err
			}
			defer ix.Close()

			total := 0
			err = src.Scan(ctx, ix.Table(), batchSize, func(rows []row.Row) error {
				n, err := ix.IndexRows(ctx, rows)
				total += n
				g.Logger.Debug("batch indexed", zap.Int("rows", n), zap.Int("total", total))
				return err
			})
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d rows of %s\n", total, table)
			return err
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVar(&sourceDSN, "source-dsn", "", "DSN of the PostgreSQL database to read")
	cmd.Flags().StringVar(&sourceSchema, "source-schema", "public", "schema holding the table")
	cmd.Flags().StringVar(&table, "table", "", "table to index")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "schema json file; creates the index")
	cmd.Flags().IntVar(&batchSize, "batch-size", pgsource.DefaultBatchSize, "rows per transaction")
	_ = cmd.MarkFlagRequired("source-dsn")
	_ = cmd.MarkFlagRequired("table")
	return cmd
}
