package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/query"
	"github.com/nonibytes/cellindex/internal/cliopt"
	"github.com/nonibytes/cellindex/internal/cliutil"
)

func NewSearchCommand(g *cliopt.GlobalOptions) *cobra.Command {
	var where, after, rank, show string
	var limit, offset int
	var explain bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search an index with a JSON condition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("index")
			cond, err := parseWhere(where)
			if err != nil {
				return err
			}
			if cond == nil {
				cond = query.All{}
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

			start := time.Now()
			page, err := ix.Search(cmd.Context(), cond, cellindex.SearchOptions{
				Rank:    rm,
				Limit:   limit,
				After:   after,
				Offset:  offset,
				Show:    ParseShow(show),
				Explain: explain,
			})
			if err != nil {
				return err
			}
			return printSearch(cmd.OutOrStdout(), cliutil.ParseOutputFormat(g.Config.Format), page, time.Since(start))
		},
	}
	requireIndex(cmd)
	cmd.Flags().StringVarP(&where, "where", "w", "", "JSON condition or @file (default: all rows)")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip when no cursor is given")
	cmd.Flags().StringVar(&after, "after", "", "cursor from a previous page")
	cmd.Flags().StringVar(&rank, "rank", "default", "rank: default|recency|none|field:<name>[:desc]")
	cmd.Flags().StringVar(&show, "show", "", "columns to print: all|col1,col2")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the generated SQL")
	return cmd
}

type pageJSON struct {
	Hits         []itemJSON `json:"hits"`
	Total        int        `json:"total"`
	NextCursor   string     `json:"next_cursor,omitempty"`
	ExplainSQL   string     `json:"explain_sql,omitempty"`
	ExplainSteps []string   `json:"explain_steps,omitempty"`
}

func printSearch(w io.Writer, format cliutil.OutputFormat, page cellindex.SearchResultPage, dur time.Duration) error {
	switch format {
	case cliutil.FormatJSON:
		out := pageJSON{
			Hits:         make([]itemJSON, 0, len(page.Hits)),
			Total:        page.Total,
			NextCursor:   page.NextCursor,
			ExplainSQL:   page.ExplainSQL,
			ExplainSteps: page.ExplainSteps,
		}
		for _, h := range page.Hits {
			score := h.Score
			out.Hits = append(out.Hits, itemJSON{
				Key:       h.Key,
				Score:     &score,
				Data:      h.Data,
				CreatedAt: h.Meta.CreatedAtMS,
				UpdatedAt: h.Meta.UpdatedAtMS,
			})
		}
		return cliutil.PrintJSON(w, out)
	case cliutil.FormatKeys:
		for _, h := range page.Hits {
			fmt.Fprintln(w, h.Key)
		}
		return nil
	}

	fmt.Fprintf(w, "Found %d of %d rows in %dms\n", len(page.Hits), page.Total, dur.Milliseconds())
	for _, h := range page.Hits {
		if len(h.Data) > 0 {
			fmt.Fprintf(w, "- %s (%.2f) %s\n", h.Key, h.Score, h.Data)
		} else {
			fmt.Fprintf(w, "- %s (%.2f)\n", h.Key, h.Score)
		}
	}
	if page.NextCursor != "" {
		fmt.Fprintf(w, "\nnext: %s\n", page.NextCursor)
	}
	if len(page.ExplainSteps) > 0 {
		fmt.Fprintln(w, "\nExplanation:")
		for _, s := range page.ExplainSteps {
			fmt.Fprintf(w, "  %s\n", s)
		}
	}
	if page.ExplainSQL != "" {
		fmt.Fprintf(w, "\nQuery:\n%s\n", page.ExplainSQL)
	}
	return nil
}
