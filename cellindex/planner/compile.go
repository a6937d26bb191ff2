// Package planner compiles engine queries into SQL over the posting tables.
// Every compiled node is a CTE yielding (item_id, score) with one row per
// matching item.
package planner

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/storage"
)

// CompileOutput is the result of compiling a query
type CompileOutput struct {
	CTEs         []CTE
	ResultCTE    string
	ExplainSteps []string
	// ArgCount is the number of builder arguments the CTEs consume.
	ArgCount int
}

// CTE represents a Common Table Expression
type CTE struct {
	Name string
	SQL  string
}

// Compiler compiles engine queries to CTEs
type Compiler struct {
	builder      storage.Builder
	ctes         []CTE
	explainSteps []string
	cteCounter   int
}

// scoreOne is the score of a leaf match.
const scoreOne = "CAST(1.0 AS DOUBLE PRECISION)"

// Compile compiles q into CTEs, allocating arguments on builder
func Compile(builder storage.Builder, q engine.Query) (*CompileOutput, error) {
	c := &Compiler{builder: builder}

	resultCTE, err := c.compile(q)
	if err != nil {
		return nil, err
	}

	return &CompileOutput{
		CTEs:         c.ctes,
		ResultCTE:    resultCTE,
		ExplainSteps: c.explainSteps,
		ArgCount:     builder.Len(),
	}, nil
}

func (c *Compiler) nextCTEName() string {
	name := fmt.Sprintf("cte_%d", c.cteCounter)
	c.cteCounter++
	return name
}

func (c *Compiler) emit(sql, step string) string {
	name := c.nextCTEName()
	c.ctes = append(c.ctes, CTE{Name: name, SQL: sql})
	c.explainSteps = append(c.explainSteps, fmt.Sprintf("%s: %s", name, step))
	return name
}

func (c *Compiler) compile(q engine.Query) (string, error) {
	switch q := q.(type) {
	case engine.MatchAll:
		return c.matchAll(), nil
	case engine.Term:
		return c.keyword(q), nil
	case engine.Terms:
		if len(q.Values) == 0 {
			return "", fmt.Errorf("terms query on %s has no values", q.Field)
		}
		values := make([]any, len(q.Values))
		for i, v := range q.Values {
			values[i] = v
		}
		return c.keywordIn(q, values), nil
	case engine.Prefix:
		return c.prefix(q), nil
	case engine.NumberRange:
		return c.numberRange(q), nil
	case engine.DateRange:
		return c.dateRange(q), nil
	case engine.BoolTerm:
		return c.boolTerm(q), nil
	case engine.Exists:
		phField := c.builder.Arg(q.Field)
		sql := fmt.Sprintf("SELECT DISTINCT item_id, %s AS score FROM field_present WHERE field = %s", scoreOne, phField)
		return c.emit(sql, fmt.Sprintf("EXISTS %s", q.Field)), nil
	case engine.IntervalRange:
		return c.interval(q)
	case engine.Bool:
		return c.boolean(q)
	case nil:
		return "", fmt.Errorf("nil query")
	}
	return "", fmt.Errorf("unknown query type: %T", q)
}

func (c *Compiler) matchAll() string {
	sql := fmt.Sprintf("SELECT id AS item_id, %s AS score FROM items", scoreOne)
	return c.emit(sql, "ALL")
}

// Placeholders are allocated in the order they appear in the SQL text.
func (c *Compiler) keyword(q engine.Term) string {
	phField := c.builder.Arg(q.Field)
	phVal := c.builder.Arg(q.Value)
	sql := fmt.Sprintf("SELECT DISTINCT p.item_id AS item_id, %s AS score FROM kw_dict d "+
		"JOIN kw_postings p ON p.value_id = d.id WHERE d.field = %s AND d.value = %s", scoreOne, phField, phVal)
	return c.emit(sql, fmt.Sprintf("KEYWORD %s", q))
}

func (c *Compiler) keywordIn(q engine.Terms, values []any) string {
	phField := c.builder.Arg(q.Field)
	phValues := c.builder.List(values...)
	sql := fmt.Sprintf("SELECT DISTINCT p.item_id AS item_id, %s AS score FROM kw_dict d "+
		"JOIN kw_postings p ON p.value_id = d.id WHERE d.field = %s AND d.value IN (%s)", scoreOne, phField, phValues)
	return c.emit(sql, fmt.Sprintf("KEYWORDS %s", q))
}

// prefix compares the leading characters instead of using LIKE, which is
// case-insensitive in SQLite.
func (c *Compiler) prefix(q engine.Prefix) string {
	phField := c.builder.Arg(q.Field)
	phLen := c.builder.Arg(int64(utf8.RuneCountInString(q.Prefix)))
	phPrefix := c.builder.Arg(q.Prefix)
	sql := fmt.Sprintf("SELECT DISTINCT p.item_id AS item_id, %s AS score FROM kw_dict d "+
		"JOIN kw_postings p ON p.value_id = d.id WHERE d.field = %s AND substr(d.value, 1, %s) = %s",
		scoreOne, phField, phLen, phPrefix)
	return c.emit(sql, fmt.Sprintf("PREFIX %s", q))
}

func (c *Compiler) numberRange(q engine.NumberRange) string {
	phField := c.builder.Arg(q.Field)
	conds := []string{"field = " + phField}
	if q.Lo != nil {
		conds = append(conds, fmt.Sprintf("value %s %s", lowerOp(q.IncludeLo), c.builder.Arg(*q.Lo)))
	}
	if q.Hi != nil {
		conds = append(conds, fmt.Sprintf("value %s %s", upperOp(q.IncludeHi), c.builder.Arg(*q.Hi)))
	}
	sql := fmt.Sprintf("SELECT DISTINCT item_id, %s AS score FROM field_number WHERE %s",
		scoreOne, strings.Join(conds, " AND "))
	return c.emit(sql, fmt.Sprintf("NUMBER %s", q))
}

func (c *Compiler) dateRange(q engine.DateRange) string {
	phField := c.builder.Arg(q.Field)
	conds := []string{"field = " + phField}
	if q.Lo != nil {
		conds = append(conds, fmt.Sprintf("value %s %s", lowerOp(q.IncludeLo), c.builder.Arg(*q.Lo)))
	}
	if q.Hi != nil {
		conds = append(conds, fmt.Sprintf("value %s %s", upperOp(q.IncludeHi), c.builder.Arg(*q.Hi)))
	}
	sql := fmt.Sprintf("SELECT DISTINCT item_id, %s AS score FROM field_date WHERE %s",
		scoreOne, strings.Join(conds, " AND "))
	return c.emit(sql, fmt.Sprintf("DATE %s", q))
}

func (c *Compiler) boolTerm(q engine.BoolTerm) string {
	phField := c.builder.Arg(q.Field)
	intVal := int64(0)
	if q.Value {
		intVal = 1
	}
	phVal := c.builder.Arg(intVal)
	sql := fmt.Sprintf("SELECT DISTINCT item_id, %s AS score FROM field_bool WHERE field = %s AND value = %s",
		scoreOne, phField, phVal)
	return c.emit(sql, fmt.Sprintf("BOOL %s", q))
}

// interval emits the comparison of engine.SpatialOp.Matches over the
// stored [lo, hi] pairs.
func (c *Compiler) interval(q engine.IntervalRange) (string, error) {
	if q.Lo > q.Hi {
		return "", fmt.Errorf("interval query on %s has lower bound %d after upper bound %d", q.Field, q.Lo, q.Hi)
	}
	phField := c.builder.Arg(q.Field)
	var cond string
	switch q.Op {
	case engine.Intersects:
		cond = fmt.Sprintf("lo <= %s AND hi >= %s", c.builder.Arg(q.Hi), c.builder.Arg(q.Lo))
	case engine.IsWithin:
		cond = fmt.Sprintf("lo <= %s AND hi >= %s", c.builder.Arg(q.Lo), c.builder.Arg(q.Hi))
	case engine.Contains, "":
		cond = fmt.Sprintf("lo >= %s AND hi <= %s", c.builder.Arg(q.Lo), c.builder.Arg(q.Hi))
	default:
		return "", fmt.Errorf("unknown spatial operation %q", q.Op)
	}
	sql := fmt.Sprintf("SELECT DISTINCT item_id, %s AS score FROM field_range WHERE field = %s AND %s",
		scoreOne, phField, cond)
	return c.emit(sql, fmt.Sprintf("RANGE %s", q)), nil
}

func (c *Compiler) compileAll(qs []engine.Query) ([]string, error) {
	names := make([]string, 0, len(qs))
	for _, q := range qs {
		name, err := c.compile(q)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// boolean scores a match as the sum of its matching clause scores, times
// the boost.
func (c *Compiler) boolean(q engine.Bool) (string, error) {
	must, err := c.compileAll(q.Must)
	if err != nil {
		return "", err
	}
	should, err := c.compileAll(q.Should)
	if err != nil {
		return "", err
	}
	mustNot, err := c.compileAll(q.MustNot)
	if err != nil {
		return "", err
	}

	var base string
	switch {
	case len(must) > 0:
		base = c.conjunction(must)
		if len(should) > 0 {
			base = c.optional(base, c.disjunction(should))
		}
	case len(should) > 0:
		base = c.disjunction(should)
	default:
		base = c.matchAll()
	}
	if len(mustNot) > 0 {
		base = c.exclude(base, mustNot)
	}
	if q.Boost != 0 && q.Boost != 1 {
		phBoost := c.builder.Arg(q.Boost)
		sql := fmt.Sprintf("SELECT item_id, score * %s AS score FROM %s", phBoost, base)
		base = c.emit(sql, fmt.Sprintf("BOOST %s ^%g", base, q.Boost))
	}
	return base, nil
}

func (c *Compiler) conjunction(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	scores := make([]string, len(names))
	var from strings.Builder
	for i, n := range names {
		scores[i] = fmt.Sprintf("t%d.score", i)
		if i == 0 {
			fmt.Fprintf(&from, "%s t0", n)
			continue
		}
		fmt.Fprintf(&from, " JOIN %s t%d ON t%d.item_id = t0.item_id", n, i, i)
	}
	sql := fmt.Sprintf("SELECT t0.item_id AS item_id, (%s) AS score FROM %s", strings.Join(scores, " + "), from.String())
	return c.emit(sql, "AND "+strings.Join(names, " "))
}

func (c *Compiler) disjunction(names []string) string {
	if len(names) == 1 {
		return names[0]
	}
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("SELECT item_id, score FROM %s", n)
	}
	sql := fmt.Sprintf("SELECT item_id, SUM(score) AS score FROM (%s) u GROUP BY item_id",
		strings.Join(parts, " UNION ALL "))
	return c.emit(sql, "OR "+strings.Join(names, " "))
}

// optional adds the score of opt to the rows of base without filtering them.
func (c *Compiler) optional(base, opt string) string {
	sql := fmt.Sprintf("SELECT b.item_id AS item_id, b.score + COALESCE(o.score, 0) AS score "+
		"FROM %s b LEFT JOIN %s o ON o.item_id = b.item_id", base, opt)
	return c.emit(sql, fmt.Sprintf("SHOULD %s %s", base, opt))
}

func (c *Compiler) exclude(base string, names []string) string {
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("SELECT item_id FROM %s", n)
	}
	sql := fmt.Sprintf("SELECT item_id, score FROM %s WHERE item_id NOT IN (%s)", base, strings.Join(parts, " UNION "))
	return c.emit(sql, fmt.Sprintf("NOT %s EXCEPT %s", base, strings.Join(names, " ")))
}
