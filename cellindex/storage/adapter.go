// Package storage describes the SQL backends an index can live in. The
// table layout is shared; each backend supplies its own DDL, placeholder
// style and statement templates.
package storage

import (
	"context"
	"database/sql"

	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// Meta keys stored in the meta table.
const (
	MetaMagic   = "cellindex_magic"
	MetaVersion = "cellindex_version"
	MetaSchema  = "schema_json"
	MetaTable   = "table_json"

	Magic   = "cellindex"
	Version = "1"
)

// Adapter abstracts database-specific operations
type Adapter interface {
	Backend() Backend
	PlaceholderStyle() sqlbuilder.PlaceholderStyle
	IndexID() string

	Connect(ctx context.Context) (*sql.DB, error)
	Close() error

	// CreateIndex creates the tables and records the schema and table
	// documents.
	CreateIndex(ctx context.Context, db *sql.DB, meta IndexMeta) error
	// OpenIndex checks the magic and returns the stored documents.
	OpenIndex(ctx context.Context, db *sql.DB) (IndexMeta, error)
	// SaveSchema replaces the stored schema document.
	SaveSchema(ctx context.Context, db *sql.DB, schemaJSON []byte) error
	Optimize(ctx context.Context, db *sql.DB) error

	SQL() SQL
}

// IndexMeta is what an index persists about itself.
type IndexMeta struct {
	SchemaJSON []byte
	TableJSON  []byte
}

// SQL holds prepared SQL templates for common operations
type SQL struct {
	GetMeta string
	SetMeta string

	FindItemIDByKey string
	GetItemByKey    string
	// UpsertItem inserts or replaces the stored row data for a key and
	// returns id, created_at. Arguments: key, data_json, now_ms.
	UpsertItem string

	GetValueIDsByItem string
	IncrementDocFreq  string
	DecrementDocFreq  string

	DeletePresentByItem  string
	DeletePostingsByItem string
	DeleteNumberByItem   string
	DeleteDateByItem     string
	DeleteBoolByItem     string
	DeleteRangeByItem    string
	DeleteItemsByID      string

	InsertOrIgnoreKwDict    string
	GetKwDictID             string
	InsertOrIgnoreKwPosting string

	InsertFieldPresent string
	InsertFieldNumber  string
	InsertFieldDate    string
	InsertFieldBool    string
	InsertFieldRange   string
}

// Builder allocates placeholders while SQL text is assembled
type Builder interface {
	Arg(v any) string
	List(values ...any) string
	Args() []any
	Len() int
}
