package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

// ValueCount represents a keyword value with its document frequency
type ValueCount struct {
	Value string
	Count uint64
}

// FieldInfo describes how an indexed field is mapped
type FieldInfo struct {
	Mapper string
	Type   string
	Values engine.ValueKind
}

// FieldResolver maps an indexed field name to its mapper. Fields the
// resolver does not know are left out of discovery.
type FieldResolver func(field string) (FieldInfo, bool)

// FieldOverview provides information about an indexed field
type FieldOverview struct {
	Field    string
	FieldInfo
	DocCount uint64
	Unique   *uint64
	Examples []string
}

// DiscoverValues returns the most frequent keyword values of field. With a
// filter, only matching items are counted and builder must be the builder
// the filter was compiled with.
func DiscoverValues(ctx context.Context, db *sql.DB, builder *sqlbuilder.Builder, field string, filter *planner.CompileOutput, top int) ([]ValueCount, error) {
	if top <= 0 {
		top = DefaultLimit
	}

	var querySQL string
	if filter == nil {
		querySQL = fmt.Sprintf(`
			SELECT d.value, d.doc_freq
			FROM kw_dict d
			WHERE d.field = %s AND d.doc_freq > 0
			ORDER BY d.doc_freq DESC, d.value ASC
			LIMIT %s
		`, builder.Arg(field), builder.Arg(int64(top)))
	} else {
		querySQL = fmt.Sprintf(`
			%sSELECT d.value, COUNT(DISTINCT p.item_id) AS cnt
			FROM kw_dict d
			JOIN kw_postings p ON p.value_id = d.id
			JOIN filtered f ON f.item_id = p.item_id
			WHERE d.field = %s
			GROUP BY d.value
			ORDER BY cnt DESC, d.value ASC
			LIMIT %s
		`, filter.WithClause(filter.FilterCTE()), builder.Arg(field), builder.Arg(int64(top)))
	}

	rows, err := db.QueryContext(ctx, querySQL, builder.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer rows.Close()

	var result []ValueCount
	for rows.Next() {
		var vc ValueCount
		if err := rows.Scan(&vc.Value, &vc.Count); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		result = append(result, vc)
	}
	return result, rows.Err()
}

// DiscoverFields returns an overview of every field holding values
func DiscoverFields(ctx context.Context, db *sql.DB, style sqlbuilder.PlaceholderStyle, resolve FieldResolver) ([]FieldOverview, error) {
	rows, err := db.QueryContext(ctx, "SELECT field, COUNT(*) FROM field_present GROUP BY field ORDER BY field")
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	var result []FieldOverview
	for rows.Next() {
		var fo FieldOverview
		if err := rows.Scan(&fo.Field, &fo.DocCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan field: %w", err)
		}
		info, ok := resolve(fo.Field)
		if !ok {
			continue
		}
		fo.FieldInfo = info
		result = append(result, fo)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}

	for i := range result {
		if err := describeField(ctx, db, style, &result[i]); err != nil {
			return nil, fmt.Errorf("describe %s: %w", result[i].Field, err)
		}
	}
	return result, nil
}

func describeField(ctx context.Context, db *sql.DB, style sqlbuilder.PlaceholderStyle, fo *FieldOverview) error {
	b := sqlbuilder.New(style)
	p1 := b.Arg(fo.Field)

	switch fo.Values {
	case engine.KeywordValues:
		var unique uint64
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM kw_dict WHERE field = %s AND doc_freq > 0", p1),
			b.Args()...,
		).Scan(&unique); err != nil {
			return fmt.Errorf("count unique: %w", err)
		}
		fo.Unique = &unique

		exRows, err := db.QueryContext(ctx,
			fmt.Sprintf("SELECT value FROM kw_dict WHERE field = %s AND doc_freq > 0 ORDER BY doc_freq DESC, value ASC LIMIT 5", p1),
			b.Args()...,
		)
		if err != nil {
			return fmt.Errorf("get examples: %w", err)
		}
		defer exRows.Close()
		for exRows.Next() {
			var val string
			if err := exRows.Scan(&val); err != nil {
				return fmt.Errorf("scan example: %w", err)
			}
			fo.Examples = append(fo.Examples, val)
		}
		return exRows.Err()

	case engine.NumberValues:
		var minVal, maxVal sql.NullFloat64
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT MIN(value), MAX(value) FROM field_number WHERE field = %s", p1),
			b.Args()...,
		).Scan(&minVal, &maxVal); err != nil {
			return err
		}
		if minVal.Valid {
			fo.Examples = append(fo.Examples, fmt.Sprintf("min: %g", minVal.Float64))
		}
		if maxVal.Valid {
			fo.Examples = append(fo.Examples, fmt.Sprintf("max: %g", maxVal.Float64))
		}

	case engine.DateValues:
		var minVal, maxVal sql.NullInt64
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT MIN(value), MAX(value) FROM field_date WHERE field = %s", p1),
			b.Args()...,
		).Scan(&minVal, &maxVal); err != nil {
			return err
		}
		if minVal.Valid {
			fo.Examples = append(fo.Examples, fmt.Sprintf("min: %d", minVal.Int64))
		}
		if maxVal.Valid {
			fo.Examples = append(fo.Examples, fmt.Sprintf("max: %d", maxVal.Int64))
		}

	case engine.BoolValues:
		var trueCount, falseCount int64
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COALESCE(SUM(CASE WHEN value = 1 THEN 1 ELSE 0 END), 0), "+
				"COALESCE(SUM(CASE WHEN value = 0 THEN 1 ELSE 0 END), 0) FROM field_bool WHERE field = %s", p1),
			b.Args()...,
		).Scan(&trueCount, &falseCount); err != nil {
			return err
		}
		fo.Examples = append(fo.Examples, fmt.Sprintf("true: %d, false: %d", trueCount, falseCount))

	case engine.RangeValues:
		var intervals int64
		if err := db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM field_range WHERE field = %s", p1),
			b.Args()...,
		).Scan(&intervals); err != nil {
			return err
		}
		fo.Examples = append(fo.Examples, fmt.Sprintf("intervals: %d", intervals))
	}
	return nil
}
