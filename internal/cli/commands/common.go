package commands

import (
	"fmt"
	"os"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/query"
)

// parseWhere decodes a JSON condition given inline or as @file. An empty
// string yields nil, which callers treat as "no filter".
func parseWhere(s string) (query.Condition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	data := []byte(s)
	if strings.HasPrefix(s, "@") {
		b, err := os.ReadFile(s[1:])
		if err != nil {
			return nil, err
		}
		data = b
	}
	return query.Decode(data)
}

// ParseRankMode parses default|recency|none|field:<name>[:desc].
func ParseRankMode(s string) (cellindex.RankMode, error) {
	switch s {
	case "", "default":
		return cellindex.RankMode{Kind: cellindex.RankDefault}, nil
	case "recency":
		return cellindex.RankMode{Kind: cellindex.RankRecency}, nil
	case "none":
		return cellindex.RankMode{Kind: cellindex.RankNone}, nil
	}
	rest, ok := strings.CutPrefix(s, "field:")
	if !ok || rest == "" {
		return cellindex.RankMode{}, fmt.Errorf("invalid rank %q (default|recency|none|field:<name>[:desc])", s)
	}
	mode := cellindex.RankMode{Kind: cellindex.RankField, Field: rest}
	if name, dir, found := strings.Cut(rest, ":"); found {
		switch dir {
		case "desc":
			mode.Desc = true
		case "asc":
		default:
			return cellindex.RankMode{}, fmt.Errorf("invalid rank direction %q", dir)
		}
		mode.Field = name
	}
	return mode, nil
}

// ParseShow parses all|none|f1,f2.
func ParseShow(s string) cellindex.OutputFieldSelector {
	switch s {
	case "", "none":
		return cellindex.OutputFieldSelector{Kind: cellindex.ShowNone}
	case "all":
		return cellindex.OutputFieldSelector{Kind: cellindex.ShowAll}
	}
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return cellindex.OutputFieldSelector{Kind: cellindex.ShowFields, Fields: fields}
}

// resolveKey accepts either an encoded key or a JSON object holding the
// primary key columns.
func resolveKey(ix *cellindex.Index, arg string) (string, error) {
	if !strings.HasPrefix(strings.TrimSpace(arg), "{") {
		return arg, nil
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(arg), &values); err != nil {
		return "", fmt.Errorf("invalid key object: %w", err)
	}
	return ix.Key(values)
}

func requireIndex(cmd *cobra.Command) {
	cmd.Flags().StringP("index", "i", "", "index name")
	_ = cmd.MarkFlagRequired("index")
}

type itemJSON struct {
	Key       string          `json:"key"`
	Score     *float64        `json:"score,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	CreatedAt int64           `json:"created_at_ms"`
	UpdatedAt int64           `json:"updated_at_ms"`
}
