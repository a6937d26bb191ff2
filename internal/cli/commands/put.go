package commands

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

const maxLineSize = 16 << 20

func NewPutCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var file string
	var batchSize int
	cmd := &cobra.Command{
		Use:   "put [ROW_JSON]",
		Short: "Index one row given as argument, or JSON lines from --file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			ix, err := cliutil.OpenIndex(cmd.Context(), g, name)
			if err != nil {
				return err
			}
			defer ix.Close()

			if len(args) == 1 {
				r, err := ix.RowFromJSON([]byte(args[0]))
				if err != nil {
					return err
				}
				enc, err := ix.IndexRow(cmd.Context(), r)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %s\n", r.Key())
				if len(enc.Invalid) > 0 {
					fmt.Fprintf(cmd.ErrOrStderr(), "ignored invalid values for: %v\n", enc.Invalid)
				}
				return nil
			}

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			total, err := importLines(cmd, ix, in, batchSize)
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d\n", total)
			return err
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON lines file (default stdin)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 500, "rows per transaction")
	return cmd
}

// importLines indexes rows in transactions of batchSize. A failing batch
// stops the import; earlier batches stay committed.
func importLines(cmd *cobra.Command, ix *cellindex.Index, in io.Reader, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	total, line := 0, 0
	rows := make([]row.Row, 0, batchSize)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		n, err := ix.IndexRows(cmd.Context(), rows)
		if err != nil {
			return err
		}
		total += n
		rows = rows[:0]
		return nil
	}
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		r, err := ix.RowFromJSON(b)
		if err != nil {
			return total, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, r)
		if len(rows) == batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, err
	}
	return total, flush()
}
