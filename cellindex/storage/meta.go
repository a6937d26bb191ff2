package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotAnIndex is returned when a database carries no index meta data.
var ErrNotAnIndex = errors.New("not a cellindex database")

// ReadMeta checks the magic and loads the stored documents. A missing table
// document is allowed.
func ReadMeta(ctx context.Context, db *sql.DB, sqlt SQL) (IndexMeta, error) {
	var magic string
	if err := db.QueryRowContext(ctx, sqlt.GetMeta, MetaMagic).Scan(&magic); err != nil {
		return IndexMeta{}, fmt.Errorf("%w: %v", ErrNotAnIndex, err)
	}
	if magic != Magic {
		return IndexMeta{}, ErrNotAnIndex
	}
	var meta IndexMeta
	var schemaJSON string
	if err := db.QueryRowContext(ctx, sqlt.GetMeta, MetaSchema).Scan(&schemaJSON); err != nil {
		return IndexMeta{}, fmt.Errorf("read schema: %w", err)
	}
	meta.SchemaJSON = []byte(schemaJSON)

	var tableJSON sql.NullString
	err := db.QueryRowContext(ctx, sqlt.GetMeta, MetaTable).Scan(&tableJSON)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return IndexMeta{}, fmt.Errorf("read table: %w", err)
	}
	if tableJSON.Valid {
		meta.TableJSON = []byte(tableJSON.String)
	}
	return meta, nil
}
