// Package postgres stores an index in a dedicated PostgreSQL schema through
// pgx's database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

type Adapter struct {
	DSN    string
	Schema string // used as dedicated schema via search_path
}

func New(dsn, schema string) *Adapter {
	return &Adapter{DSN: dsn, Schema: schema}
}

func (a *Adapter) Backend() storage.Backend { return storage.BackendPostgres }

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle { return sqlbuilder.PlaceholderDollar }

func (a *Adapter) IndexID() string { return "postgres:" + a.Schema }

func (a *Adapter) Close() error { return nil }

func (a *Adapter) SQL() storage.SQL { return SQLTemplates }

var schemaNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func quoteIdent(ident string) string {
	// ident is validated to contain no quotes; safe to wrap
	return `"` + ident + `"`
}

func (a *Adapter) validSchema() error {
	if a.Schema == "" || !schemaNameRe.MatchString(a.Schema) {
		return fmt.Errorf("invalid postgres schema name %q (must match %s)", a.Schema, schemaNameRe.String())
	}
	return nil
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	if err := a.validSchema(); err != nil {
		return nil, err
	}

	// Make sure the schema exists before pinning search_path to it.
	cfg0, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	db0 := stdlib.OpenDB(*cfg0)
	_, err = db0.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoteIdent(a.Schema))
	_ = db0.Close()
	if err != nil {
		return nil, err
	}

	cfg, err := pgx.ParseConfig(a.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = make(map[string]string)
	}
	cfg.RuntimeParams["search_path"] = fmt.Sprintf("%s,public", quoteIdent(a.Schema))

	db := stdlib.OpenDB(*cfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) CreateIndex(ctx context.Context, db *sql.DB, meta storage.IndexMeta) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	sqlt := a.SQL()
	for _, kv := range [][2]string{
		{storage.MetaMagic, storage.Magic},
		{storage.MetaVersion, storage.Version},
		{storage.MetaSchema, string(meta.SchemaJSON)},
		{storage.MetaTable, string(meta.TableJSON)},
	} {
		if _, err := db.ExecContext(ctx, sqlt.SetMeta, kv[0], kv[1]); err != nil {
			return fmt.Errorf("set %s: %w", kv[0], err)
		}
	}
	return nil
}

func (a *Adapter) OpenIndex(ctx context.Context, db *sql.DB) (storage.IndexMeta, error) {
	return storage.ReadMeta(ctx, db, a.SQL())
}

func (a *Adapter) SaveSchema(ctx context.Context, db *sql.DB, schemaJSON []byte) error {
	_, err := db.ExecContext(ctx, a.SQL().SetMeta, storage.MetaSchema, string(schemaJSON))
	return err
}

func (a *Adapter) Optimize(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "DELETE FROM kw_dict WHERE doc_freq = 0"); err != nil {
		return err
	}
	// Best-effort: ANALYZE
	_, _ = db.ExecContext(ctx, "ANALYZE")
	return nil
}
