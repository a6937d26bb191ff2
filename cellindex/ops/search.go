package ops

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/storage"
)

// DefaultLimit is the page size used when none is given
const DefaultLimit = 20

// SearchOptions configures a search operation
type SearchOptions struct {
	Rank  planner.RankMode
	Limit int
	// After is a cursor token from a previous page, Offset is used when it
	// is empty.
	After  string
	Offset int
	// QueryHash identifies the query for cursor validation.
	QueryHash string
	Show      OutputFieldSelector
	Explain   bool
}

// OutputFieldSelector specifies which columns of the stored row to return
type OutputFieldSelector struct {
	Kind   OutputFieldKind
	Fields []string
}

// OutputFieldKind is the type of output selection
type OutputFieldKind int

const (
	ShowNone OutputFieldKind = iota
	ShowAll
	ShowFields
)

// SearchResult is the result of a search operation
type SearchResult struct {
	Hits         []SearchHit
	Total        int
	NextCursor   string
	HasMore      bool
	ExplainSQL   string
	ExplainSteps []string
}

// SearchHit is one matching row
type SearchHit struct {
	Key         string
	Score       float64
	Data        json.RawMessage // shaped by OutputFieldSelector, nil for ShowNone
	CreatedAtMS int64
	UpdatedAtMS int64
}

type searchRow struct {
	ItemID    int64
	Key       string
	DataJSON  string
	CreatedAt int64
	UpdatedAt int64
	Score     sql.NullFloat64
}

// Search executes a compiled query. builder must be the builder the query
// was compiled with.
func Search(ctx context.Context, db *sql.DB, compiled *planner.CompileOutput, builder storage.Builder, opts SearchOptions) (*SearchResult, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := opts.Offset
	if opts.After != "" {
		pos, err := DecodeCursor(opts.After, opts.QueryHash)
		if err != nil {
			return nil, err
		}
		offset = pos.Offset
	}
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}

	countArgs := builder.Args()[:compiled.ArgCount]
	var total int
	if err := db.QueryRowContext(ctx, planner.BuildCountSQL(compiled), countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count matches: %w", err)
	}

	searchSQL, err := planner.BuildSearchSQL(compiled, opts.Rank, limit+1, offset, builder)
	if err != nil {
		return nil, fmt.Errorf("build search SQL: %w", err)
	}

	rows, err := db.QueryContext(ctx, searchSQL, builder.Args()...)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	defer rows.Close()

	var searchRows []searchRow
	for rows.Next() {
		var row searchRow
		if err := rows.Scan(&row.ItemID, &row.Key, &row.DataJSON, &row.CreatedAt, &row.UpdatedAt, &row.Score); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		searchRows = append(searchRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	hasMore := len(searchRows) > limit
	if hasMore {
		searchRows = searchRows[:limit]
	}

	result := &SearchResult{
		Total:   total,
		HasMore: hasMore,
		Hits:    make([]SearchHit, 0, len(searchRows)),
	}
	if opts.Explain {
		result.ExplainSQL = searchSQL
		result.ExplainSteps = compiled.ExplainSteps
	}

	for _, row := range searchRows {
		data, err := shapeOutput(row, opts.Show)
		if err != nil {
			return nil, fmt.Errorf("shape output: %w", err)
		}
		result.Hits = append(result.Hits, SearchHit{
			Key:         row.Key,
			Score:       row.Score.Float64,
			Data:        data,
			CreatedAtMS: row.CreatedAt,
			UpdatedAtMS: row.UpdatedAt,
		})
	}

	if hasMore {
		next, err := EncodeCursor(CursorPosition{Offset: offset + limit, Hash: opts.QueryHash})
		if err != nil {
			return nil, err
		}
		result.NextCursor = next
	}
	return result, nil
}

// shapeOutput shapes a search row for output based on field selector.
// Nested and map entry names select the whole cell they belong to.
func shapeOutput(row searchRow, show OutputFieldSelector) (json.RawMessage, error) {
	switch show.Kind {
	case ShowAll:
		return json.RawMessage(row.DataJSON), nil

	case ShowFields:
		var doc map[string]any
		if err := json.Unmarshal([]byte(row.DataJSON), &doc); err != nil {
			return nil, err
		}
		output := make(map[string]any, len(show.Fields))
		for _, field := range show.Fields {
			cell := column.CellNameOf(field)
			if val, ok := doc[cell]; ok {
				output[cell] = val
			}
		}
		return json.Marshal(output)

	default:
		return nil, nil
	}
}
