package cliutil

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/postgres"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlite"
	"github.com/nonibytes/cellindex/internal/cliopt"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatKeys   OutputFormat = "keys"
	FormatJSON   OutputFormat = "json"
)

func ParseOutputFormat(s string) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatKeys, FormatJSON:
		return OutputFormat(s)
	default:
		return FormatPretty
	}
}

func PrintJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

// ResolveIndexRef transforms the user-provided --index value into a
// backend-specific reference: a database file for sqlite, a schema name for
// postgres.
func ResolveIndexRef(g *cliopt.GlobalOptions, index string) string {
	switch g.Config.Backend {
	case "sqlite":
		if strings.Contains(index, string(filepath.Separator)) || strings.HasSuffix(index, ".db") {
			return index
		}
		return filepath.Join(g.Config.SQLite.Dir, index+".db")
	default:
		return index
	}
}

// Adapter returns the storage adapter for the named index.
func Adapter(g *cliopt.GlobalOptions, index string) (storage.Adapter, error) {
	if index == "" {
		return nil, fmt.Errorf("missing --index")
	}
	ref := ResolveIndexRef(g, index)
	switch g.Config.Backend {
	case "sqlite":
		return sqlite.NewWithDriver(ref, g.Config.SQLite.Driver), nil
	case "postgres":
		if g.Config.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres backend needs --pg-dsn")
		}
		return postgres.New(g.Config.Postgres.DSN, ref), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", g.Config.Backend)
	}
}

// IndexOptions derives the index options from the loaded configuration.
func IndexOptions(g *cliopt.GlobalOptions) cellindex.IndexOptions {
	opts := cellindex.DefaultIndexOptions()
	opts.Logger = g.Logger
	opts.Metrics = g.Metrics
	c := g.Config.Index
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	if c.MinPrefixLen > 0 {
		opts.MinPrefixLen = c.MinPrefixLen
	}
	if c.MaxTerms > 0 {
		opts.MaxTerms = c.MaxTerms
	}
	if c.MaxDepth > 0 {
		opts.MaxDepth = c.MaxDepth
	}
	return opts
}

// OpenIndex opens an existing index.
func OpenIndex(ctx context.Context, g *cliopt.GlobalOptions, index string) (*cellindex.Index, error) {
	adapter, err := Adapter(g, index)
	if err != nil {
		return nil, err
	}
	return cellindex.Open(ctx, adapter, IndexOptions(g))
}
