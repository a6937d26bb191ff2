package planner

import (
	"fmt"
	"strings"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/storage"
)

// RankMode specifies how results should be ranked
type RankMode struct {
	Kind RankKind
	// Field, Values and Desc are only used when Kind == RankField. Values
	// names the posting table Field lives in.
	Field  string
	Values engine.ValueKind
	Desc   bool
}

// RankKind is the type of ranking
type RankKind int

const (
	// RankDefault orders by descending score
	RankDefault RankKind = iota
	RankRecency
	// RankField orders by the smallest value of a field (the largest when
	// descending). Items without a value come last.
	RankField
	RankNone
)

// WithClause renders the compiled CTEs plus extra ones as a WITH prefix.
func (o *CompileOutput) WithClause(extra ...CTE) string {
	all := append(append([]CTE(nil), o.CTEs...), extra...)
	if len(all) == 0 {
		return ""
	}
	parts := make([]string, len(all))
	for i, cte := range all {
		parts[i] = fmt.Sprintf("%s AS (%s)", cte.Name, cte.SQL)
	}
	return "WITH " + strings.Join(parts, ", ") + " "
}

// FilterCTE is a CTE named filtered selecting the matching item ids, for
// queries aggregating over a filtered item set.
func (o *CompileOutput) FilterCTE() CTE {
	return CTE{Name: "filtered", SQL: "SELECT item_id FROM " + o.ResultCTE}
}

// BuildCountSQL counts the matching items. It takes the first ArgCount
// builder arguments.
func BuildCountSQL(compiled *CompileOutput) string {
	return fmt.Sprintf("%sSELECT COUNT(*) FROM %s", compiled.WithClause(), compiled.ResultCTE)
}

// rankFieldCTE selects one representative value per item.
func rankFieldCTE(rank RankMode, builder storage.Builder) (CTE, error) {
	agg := "MIN"
	if rank.Desc {
		agg = "MAX"
	}
	phField := builder.Arg(rank.Field)
	var sql string
	switch rank.Values {
	case engine.KeywordValues:
		sql = fmt.Sprintf("SELECT p.item_id AS item_id, %s(d.value) AS rank_value FROM kw_postings p "+
			"JOIN kw_dict d ON d.id = p.value_id WHERE d.field = %s GROUP BY p.item_id", agg, phField)
	case engine.NumberValues, engine.DateValues, engine.BoolValues:
		table, _ := ValueTable(rank.Values)
		sql = fmt.Sprintf("SELECT item_id, %s(value) AS rank_value FROM %s WHERE field = %s GROUP BY item_id",
			agg, table, phField)
	default:
		return CTE{}, fmt.Errorf("cannot rank by %s field %s", rank.Values, rank.Field)
	}
	return CTE{Name: "rank_field", SQL: sql}, nil
}

// BuildSearchSQL builds the final search SQL. Arguments for the rank field
// and the page are allocated after the compiled ones.
func BuildSearchSQL(compiled *CompileOutput, rank RankMode, limitPlusOne, offset int, builder storage.Builder) (string, error) {
	var extra []CTE
	var rankJoin, orderClause string

	switch rank.Kind {
	case RankDefault:
		orderClause = "ORDER BY r.score DESC, i.id ASC"
	case RankRecency:
		orderClause = "ORDER BY i.updated_at DESC, i.id ASC"
	case RankField:
		cte, err := rankFieldCTE(rank, builder)
		if err != nil {
			return "", err
		}
		extra = append(extra, cte)
		rankJoin = "LEFT JOIN rank_field rf ON rf.item_id = i.id"
		dir := "ASC"
		if rank.Desc {
			dir = "DESC"
		}
		orderClause = fmt.Sprintf("ORDER BY CASE WHEN rf.rank_value IS NULL THEN 1 ELSE 0 END, rf.rank_value %s, i.id ASC", dir)
	case RankNone:
		orderClause = "ORDER BY i.id ASC"
	default:
		return "", fmt.Errorf("unknown rank kind %d", rank.Kind)
	}

	phLimit := builder.Arg(int64(limitPlusOne))
	phOffset := builder.Arg(int64(offset))

	sql := fmt.Sprintf(`%s
SELECT i.id, i.row_key, CAST(i.data_json AS TEXT), i.created_at, i.updated_at, r.score
FROM items i
JOIN %s r ON r.item_id = i.id
%s
%s
LIMIT %s OFFSET %s`,
		compiled.WithClause(extra...),
		compiled.ResultCTE,
		rankJoin,
		orderClause,
		phLimit,
		phOffset,
	)
	return sql, nil
}
