package sqlite

import "github.com/nonibytes/cellindex/cellindex/storage"

var SQLTemplates = storage.SQL{
	GetMeta:         "SELECT value FROM meta WHERE key = ?1",
	SetMeta:         "INSERT INTO meta(key,value) VALUES(?1,?2) ON CONFLICT(key) DO UPDATE SET value=excluded.value",
	FindItemIDByKey: "SELECT id FROM items WHERE row_key = ?1",
	GetItemByKey:    "SELECT id, data_json, created_at, updated_at FROM items WHERE row_key = ?1",
	UpsertItem: `INSERT INTO items(row_key, data_json, created_at, updated_at)
		VALUES(?1, ?2, ?3, ?3)
		ON CONFLICT(row_key) DO UPDATE SET data_json=excluded.data_json, updated_at=excluded.updated_at
		RETURNING id, created_at`,
	GetValueIDsByItem:       "SELECT value_id FROM kw_postings WHERE item_id = ?1",
	DecrementDocFreq:        "UPDATE kw_dict SET doc_freq = CASE WHEN doc_freq > 0 THEN doc_freq - 1 ELSE 0 END WHERE id = ?1",
	IncrementDocFreq:        "UPDATE kw_dict SET doc_freq = doc_freq + 1 WHERE id = ?1",
	DeletePresentByItem:     "DELETE FROM field_present WHERE item_id = ?1",
	DeletePostingsByItem:    "DELETE FROM kw_postings WHERE item_id = ?1",
	DeleteNumberByItem:      "DELETE FROM field_number WHERE item_id = ?1",
	DeleteDateByItem:        "DELETE FROM field_date WHERE item_id = ?1",
	DeleteBoolByItem:        "DELETE FROM field_bool WHERE item_id = ?1",
	DeleteRangeByItem:       "DELETE FROM field_range WHERE item_id = ?1",
	DeleteItemsByID:         "DELETE FROM items WHERE id = ?1",
	InsertOrIgnoreKwDict:    "INSERT OR IGNORE INTO kw_dict(field, value, doc_freq) VALUES(?1, ?2, 0)",
	GetKwDictID:             "SELECT id FROM kw_dict WHERE field = ?1 AND value = ?2",
	InsertOrIgnoreKwPosting: "INSERT OR IGNORE INTO kw_postings(field, value_id, item_id) VALUES(?1, ?2, ?3)",
	InsertFieldPresent:      "INSERT OR IGNORE INTO field_present(item_id, field) VALUES(?1, ?2)",
	InsertFieldNumber:       "INSERT OR IGNORE INTO field_number(item_id, field, value) VALUES(?1, ?2, ?3)",
	InsertFieldDate:         "INSERT OR IGNORE INTO field_date(item_id, field, value) VALUES(?1, ?2, ?3)",
	InsertFieldBool:         "INSERT OR IGNORE INTO field_bool(item_id, field, value) VALUES(?1, ?2, ?3)",
	InsertFieldRange:        "INSERT OR IGNORE INTO field_range(item_id, field, lo, hi) VALUES(?1, ?2, ?3, ?4)",
}
