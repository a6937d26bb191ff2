// Package ops executes index operations against an open database: writes of
// encoded documents, deletes, searches and aggregations.
package ops

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/storage"
)

// ExecutePut stores doc under doc.Key, replacing every index row a previous
// version of the row left behind.
func ExecutePut(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, doc *engine.Document, nowMS int64) (itemID int64, createdAtMS int64, err error) {
	if doc.Key == "" {
		return 0, 0, fmt.Errorf("document has no key")
	}

	// 1. Upsert items row
	if err := tx.QueryRowContext(ctx, sqlt.UpsertItem, doc.Key, string(doc.DataJSON), nowMS).Scan(&itemID, &createdAtMS); err != nil {
		return 0, 0, fmt.Errorf("upsert item: %w", err)
	}

	// 2. Load old keyword value_ids for doc_freq maintenance
	oldValueIDs, err := loadOldValueIDs(ctx, tx, sqlt, itemID)
	if err != nil {
		return 0, 0, fmt.Errorf("load old value_ids: %w", err)
	}

	// 3. Delete old index rows
	if err := deleteIndexRows(ctx, tx, sqlt, itemID); err != nil {
		return 0, 0, fmt.Errorf("delete old index rows: %w", err)
	}

	// 4. Insert field_present rows
	for _, field := range doc.Present() {
		if _, err := tx.ExecContext(ctx, sqlt.InsertFieldPresent, itemID, field); err != nil {
			return 0, 0, fmt.Errorf("insert field_present: %w", err)
		}
	}

	// 5. Insert keywords with doc_freq maintenance
	newValueIDs := make(map[int64]bool)
	for _, field := range sortedKeys(doc.Keywords) {
		for _, value := range doc.Keywords[field] {
			valueID, err := insertKeyword(ctx, tx, sqlt, field, value)
			if err != nil {
				return 0, 0, fmt.Errorf("insert keyword: %w", err)
			}
			if newValueIDs[valueID] {
				continue
			}
			newValueIDs[valueID] = true

			if _, err := tx.ExecContext(ctx, sqlt.InsertOrIgnoreKwPosting, field, valueID, itemID); err != nil {
				return 0, 0, fmt.Errorf("insert posting: %w", err)
			}
			// Increment doc_freq only if this value_id was not previously associated
			if !oldValueIDs[valueID] {
				if _, err := tx.ExecContext(ctx, sqlt.IncrementDocFreq, valueID); err != nil {
					return 0, 0, fmt.Errorf("increment doc_freq: %w", err)
				}
			}
		}
	}

	// 6. Decrement doc_freq for removed value_ids
	for valueID := range oldValueIDs {
		if !newValueIDs[valueID] {
			if _, err := tx.ExecContext(ctx, sqlt.DecrementDocFreq, valueID); err != nil {
				return 0, 0, fmt.Errorf("decrement doc_freq: %w", err)
			}
		}
	}

	// 7. Insert typed values
	for _, field := range sortedKeys(doc.Numbers) {
		for _, v := range doc.Numbers[field] {
			if _, err := tx.ExecContext(ctx, sqlt.InsertFieldNumber, itemID, field, v); err != nil {
				return 0, 0, fmt.Errorf("insert number: %w", err)
			}
		}
	}
	for _, field := range sortedKeys(doc.Dates) {
		for _, v := range doc.Dates[field] {
			if _, err := tx.ExecContext(ctx, sqlt.InsertFieldDate, itemID, field, v); err != nil {
				return 0, 0, fmt.Errorf("insert date: %w", err)
			}
		}
	}
	for _, field := range sortedKeys(doc.Bools) {
		for _, v := range doc.Bools[field] {
			intVal := 0
			if v {
				intVal = 1
			}
			if _, err := tx.ExecContext(ctx, sqlt.InsertFieldBool, itemID, field, intVal); err != nil {
				return 0, 0, fmt.Errorf("insert bool: %w", err)
			}
		}
	}
	for _, field := range sortedKeys(doc.Ranges) {
		for _, iv := range doc.Ranges[field] {
			if _, err := tx.ExecContext(ctx, sqlt.InsertFieldRange, itemID, field, iv.Lo, iv.Hi); err != nil {
				return 0, 0, fmt.Errorf("insert range: %w", err)
			}
		}
	}

	return itemID, createdAtMS, nil
}

func loadOldValueIDs(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, itemID int64) (map[int64]bool, error) {
	result := make(map[int64]bool)
	rows, err := tx.QueryContext(ctx, sqlt.GetValueIDsByItem, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var valueID int64
		if err := rows.Scan(&valueID); err != nil {
			return nil, err
		}
		result[valueID] = true
	}
	return result, rows.Err()
}

func deleteIndexRows(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, itemID int64) error {
	queries := []struct {
		sql  string
		name string
	}{
		{sqlt.DeletePostingsByItem, "postings"},
		{sqlt.DeleteNumberByItem, "numbers"},
		{sqlt.DeleteDateByItem, "dates"},
		{sqlt.DeleteBoolByItem, "bools"},
		{sqlt.DeleteRangeByItem, "ranges"},
		{sqlt.DeletePresentByItem, "present"},
	}
	for _, q := range queries {
		if _, err := tx.ExecContext(ctx, q.sql, itemID); err != nil {
			return fmt.Errorf("delete %s: %w", q.name, err)
		}
	}
	return nil
}

func insertKeyword(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, field, value string) (int64, error) {
	if _, err := tx.ExecContext(ctx, sqlt.InsertOrIgnoreKwDict, field, value); err != nil {
		return 0, err
	}
	var valueID int64
	if err := tx.QueryRowContext(ctx, sqlt.GetKwDictID, field, value).Scan(&valueID); err != nil {
		return 0, err
	}
	return valueID, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
