// Package postgres reads the rows of a PostgreSQL table so they can be
// indexed. The primary key becomes the row key: its first column is the
// partition key and the others are clustering columns.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex/row"
)

// DefaultBatchSize is the number of rows Scan hands over at once
const DefaultBatchSize = 500

// Source reads tables of one PostgreSQL schema.
type Source struct {
	conn   *pgx.Conn
	schema string
	log    *zap.Logger
}

// Connect opens a connection to dsn. An empty schema means public.
func Connect(ctx context.Context, dsn, schema string, log *zap.Logger) (*Source, error) {
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	return &Source{conn: conn, schema: schema, log: log.With(zap.String("schema", schema))}, nil
}

func (s *Source) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}

type columnInfo struct {
	Name    string `db:"column_name"`
	UDTName string `db:"udt_name"`
	KeyPos  *int32 `db:"key_pos"`
}

const columnsSQL = `
	SELECT c.column_name::text AS column_name, c.udt_name::text AS udt_name, k.ordinal_position::int4 AS key_pos
	FROM information_schema.columns c
	LEFT JOIN information_schema.table_constraints tc
		ON tc.table_schema = c.table_schema AND tc.table_name = c.table_name AND tc.constraint_type = 'PRIMARY KEY'
	LEFT JOIN information_schema.key_column_usage k
		ON k.constraint_name = tc.constraint_name AND k.table_schema = c.table_schema
		AND k.table_name = c.table_name AND k.column_name = c.column_name
	WHERE c.table_schema = $1 AND c.table_name = $2
	ORDER BY c.ordinal_position`

const attributesSQL = `
	SELECT attribute_name::text AS attribute_name, attribute_udt_name::text AS attribute_udt_name
	FROM information_schema.attributes
	WHERE udt_schema = $1 AND udt_name = $2
	ORDER BY ordinal_position`

// Table reads the definition of table from information_schema. Columns of
// unsupported types are left out, unless they are part of the primary key.
func (s *Source) Table(ctx context.Context, table string) (row.Table, error) {
	rows, err := s.conn.Query(ctx, columnsSQL, s.schema, table)
	if err != nil {
		return row.Table{}, fmt.Errorf("query columns: %w", err)
	}
	cols, err := pgx.CollectRows(rows, pgx.RowToStructByName[columnInfo])
	if err != nil {
		return row.Table{}, fmt.Errorf("read columns: %w", err)
	}
	if len(cols) == 0 {
		return row.Table{}, fmt.Errorf("table %s.%s not found", s.schema, table)
	}
	return buildTable(table, cols, s.composite(ctx), s.log)
}

func buildTable(name string, cols []columnInfo, composites compositeLookup, log *zap.Logger) (row.Table, error) {
	t := row.Table{Name: name}
	keyed := false
	for _, c := range cols {
		typ, err := mapType(c.UDTName, composites)
		if err != nil {
			if c.KeyPos != nil {
				return row.Table{}, fmt.Errorf("key column %s: %w", c.Name, err)
			}
			log.Warn("column not readable, skipped", zap.String("column", c.Name), zap.Error(err))
			continue
		}
		kind := row.Regular
		if c.KeyPos != nil {
			kind = row.Clustering
			if *c.KeyPos == 1 {
				kind = row.PartitionKey
				keyed = true
			}
		}
		t.Columns = append(t.Columns, row.ColumnDef{Name: c.Name, Type: typ, Kind: kind})
	}
	if !keyed {
		return row.Table{}, fmt.Errorf("table %s has no primary key", name)
	}
	if err := t.Validate(); err != nil {
		return row.Table{}, err
	}
	return t, nil
}

func (s *Source) composite(ctx context.Context) compositeLookup {
	return func(udtName string) ([]attribute, bool, error) {
		rows, err := s.conn.Query(ctx, attributesSQL, s.schema, udtName)
		if err != nil {
			return nil, false, fmt.Errorf("query attributes of %s: %w", udtName, err)
		}
		attrs, err := pgx.CollectRows(rows, pgx.RowToStructByName[attribute])
		if err != nil {
			return nil, false, fmt.Errorf("read attributes of %s: %w", udtName, err)
		}
		return attrs, len(attrs) > 0, nil
	}
}

// registerTypes loads the composite types used by table, so pgx decodes
// them into maps keyed by attribute name.
func (s *Source) registerTypes(ctx context.Context, table row.Table) error {
	seen := make(map[string]bool)
	var walk func(t row.Type, array bool) error
	walk = func(t row.Type, array bool) error {
		switch t.Kind {
		case row.List, row.Set:
			return walk(*t.Elem, true)
		case row.Map:
			return walk(*t.Value, false)
		case row.UDT:
			for _, f := range t.Fields {
				if err := walk(f.Type, false); err != nil {
					return err
				}
			}
			names := []string{t.Name}
			if array {
				names = append(names, "_"+t.Name)
			}
			for _, n := range names {
				if seen[n] {
					continue
				}
				seen[n] = true
				dt, err := s.conn.LoadType(ctx, pgx.Identifier{s.schema, n}.Sanitize())
				if err != nil {
					return fmt.Errorf("load type %s: %w", n, err)
				}
				s.conn.TypeMap().RegisterType(dt)
			}
		}
		return nil
	}
	for _, c := range table.Columns {
		if err := walk(c.Type, false); err != nil {
			return err
		}
	}
	return nil
}

// Scan reads every row of table and hands them to fn in batches of at most
// batchSize rows. It stops at the first error fn returns.
func (s *Source) Scan(ctx context.Context, table row.Table, batchSize int, fn func([]row.Row) error) error {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if err := s.registerTypes(ctx, table); err != nil {
		return err
	}

	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = pgx.Identifier{c.Name}.Sanitize()
	}
	querySQL := fmt.Sprintf("SELECT %s FROM %s", joinComma(names), pgx.Identifier{s.schema, table.Name}.Sanitize())

	rows, err := s.conn.Query(ctx, querySQL)
	if err != nil {
		return fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	batch := make([]row.Row, 0, batchSize)
	total := 0
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return fmt.Errorf("row values: %w", err)
		}
		r, err := toRow(table, values)
		if err != nil {
			return err
		}
		batch = append(batch, r)
		if len(batch) == batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			total += len(batch)
			batch = make([]row.Row, 0, batchSize)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate rows: %w", err)
	}
	if len(batch) > 0 {
		if err := fn(batch); err != nil {
			return err
		}
		total += len(batch)
	}
	s.log.Info("table scanned", zap.String("table", table.Name), zap.Int("rows", total))
	return nil
}

func toRow(table row.Table, values []any) (row.Row, error) {
	byName := make(map[string]any, len(values))
	for i, c := range table.Columns {
		v, err := normalize(c.Type, values[i])
		if err != nil {
			return row.Row{}, fmt.Errorf("column %s: %w", c.Name, err)
		}
		byName[c.Name] = v
	}
	return row.FromMap(table, byName)
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
