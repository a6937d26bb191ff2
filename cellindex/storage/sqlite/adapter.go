// Package sqlite stores an index in a single SQLite database file. The
// default driver is modernc.org/sqlite ("sqlite"); github.com/mattn/go-sqlite3
// ("sqlite3") can be selected with NewWithDriver. Callers import the driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

type Adapter struct {
	Path       string
	DriverName string
}

func New(path string) *Adapter {
	return &Adapter{Path: path, DriverName: DriverModernc}
}

func NewWithDriver(path, driver string) *Adapter {
	if driver == "" {
		driver = DriverModernc
	}
	return &Adapter{Path: path, DriverName: driver}
}

func (a *Adapter) Backend() storage.Backend {
	return storage.BackendSQLite
}

func (a *Adapter) PlaceholderStyle() sqlbuilder.PlaceholderStyle {
	return sqlbuilder.PlaceholderQuestion
}

func (a *Adapter) IndexID() string {
	return a.Path
}

// dsn appends per-connection pragmas in the syntax of the selected driver.
func (a *Adapter) dsn() string {
	params := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if a.DriverName == DriverMattn {
		params = "_busy_timeout=5000&_foreign_keys=on"
	}
	if strings.Contains(a.Path, "?") {
		return a.Path + "&" + params
	}
	return a.Path + "?" + params
}

func (a *Adapter) Connect(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(a.DriverName, a.dsn())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) SQL() storage.SQL {
	return SQLTemplates
}

func (a *Adapter) CreateIndex(ctx context.Context, db *sql.DB, meta storage.IndexMeta) error {
	if _, err := db.ExecContext(ctx, ddlBase); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA journal_mode=WAL;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

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
	_, _ = db.ExecContext(ctx, "PRAGMA optimize")
	_, _ = db.ExecContext(ctx, "VACUUM")
	return nil
}
