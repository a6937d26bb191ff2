package ops

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/storage"
)

// DeleteByItemID deletes an item and all its index entries by item ID
func DeleteByItemID(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, itemID int64) error {
	valueIDs, err := loadOldValueIDs(ctx, tx, sqlt, itemID)
	if err != nil {
		return fmt.Errorf("load value_ids: %w", err)
	}
	for valueID := range valueIDs {
		if _, err := tx.ExecContext(ctx, sqlt.DecrementDocFreq, valueID); err != nil {
			return fmt.Errorf("decrement doc_freq: %w", err)
		}
	}
	if err := deleteIndexRows(ctx, tx, sqlt, itemID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, sqlt.DeleteItemsByID, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// DeleteByKey deletes the row stored under key inside tx. It reports
// whether the row existed.
func DeleteByKey(ctx context.Context, tx *sql.Tx, sqlt storage.SQL, key string) (bool, error) {
	var itemID int64
	err := tx.QueryRowContext(ctx, sqlt.FindItemIDByKey, key).Scan(&itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find item: %w", err)
	}
	if err := DeleteByItemID(ctx, tx, sqlt, itemID); err != nil {
		return false, err
	}
	return true, nil
}

// DeleteWhere deletes all items matching a compiled query and returns their
// keys.
func DeleteWhere(ctx context.Context, db *sql.DB, sqlt storage.SQL, compiled *planner.CompileOutput, args []any) ([]string, error) {
	selectSQL := fmt.Sprintf("%sSELECT i.id, i.row_key FROM items i JOIN %s r ON r.item_id = i.id ORDER BY i.id",
		compiled.WithClause(), compiled.ResultCTE)

	rows, err := db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	var itemIDs []int64
	var keys []string
	for rows.Next() {
		var id int64
		var key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan item: %w", err)
		}
		itemIDs = append(itemIDs, id)
		keys = append(keys, key)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	if len(itemIDs) == 0 {
		return nil, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, itemID := range itemIDs {
		if err := DeleteByItemID(ctx, tx, sqlt, itemID); err != nil {
			return nil, fmt.Errorf("delete item %d: %w", itemID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return keys, nil
}
