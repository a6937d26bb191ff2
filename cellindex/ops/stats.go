package ops

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

// StatsResult contains statistics for a field
type StatsResult struct {
	Field  string
	Count  uint64
	Min    *float64
	Max    *float64
	Avg    *float64
	Median *float64
}

// Stats computes statistics over the values of field stored in table
// (field_number or field_date). With a filter, only matching items are
// counted and builder must be the builder the filter was compiled with.
func Stats(ctx context.Context, db *sql.DB, builder *sqlbuilder.Builder, table, field string, filter *planner.CompileOutput) (*StatsResult, error) {
	if table != "field_number" && table != "field_date" {
		return nil, fmt.Errorf("stats are only available for number and date fields, not %s", table)
	}
	base := builder.Len()
	from, with := statsSource(table, filter)

	b := builder.Fork(base)
	querySQL := fmt.Sprintf(`%sSELECT COUNT(*), MIN(t.value), MAX(t.value), AVG(t.value)
		FROM %s
		WHERE t.field = %s`, with, from, b.Arg(field))

	result := &StatsResult{Field: field}
	var minVal, maxVal, avgVal sql.NullFloat64
	if err := db.QueryRowContext(ctx, querySQL, b.Args()...).Scan(&result.Count, &minVal, &maxVal, &avgVal); err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	if minVal.Valid {
		result.Min = &minVal.Float64
	}
	if maxVal.Valid {
		result.Max = &maxVal.Float64
	}
	if avgVal.Valid {
		result.Avg = &avgVal.Float64
	}

	if result.Count > 0 {
		median, err := medianOf(ctx, db, builder.Fork(base), from, with, field, result.Count)
		if err != nil {
			return nil, fmt.Errorf("query median: %w", err)
		}
		result.Median = median
	}
	return result, nil
}

func statsSource(table string, filter *planner.CompileOutput) (from, with string) {
	if filter == nil {
		return table + " t", ""
	}
	return table + " t JOIN filtered f ON f.item_id = t.item_id", filter.WithClause(filter.FilterCTE())
}

// medianOf averages the two middle values when count is even.
func medianOf(ctx context.Context, db *sql.DB, fork *sqlbuilder.Builder, from, with, field string, count uint64) (*float64, error) {
	offset := (count - 1) / 2
	n := int64(1)
	if count%2 == 0 {
		n = 2
	}
	querySQL := fmt.Sprintf(`%sSELECT t.value FROM %s
		WHERE t.field = %s
		ORDER BY t.value
		LIMIT %s OFFSET %s`, with, from, fork.Arg(field), fork.Arg(n), fork.Arg(int64(offset)))

	rows, err := db.QueryContext(ctx, querySQL, fork.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sum float64
	var got int64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		sum += v
		got++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if got == 0 {
		return nil, nil
	}
	median := sum / float64(got)
	return &median, nil
}
