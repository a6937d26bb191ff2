package engine

import (
	"fmt"
	"strings"
)

// Query is a node of the search query tree.
type Query interface {
	isQuery()
	String() string
}

// MatchAll matches every indexed row.
type MatchAll struct{}

// Term matches rows holding the exact keyword value in Field.
type Term struct {
	Field string
	Value string
}

// Terms matches rows holding any of the keyword values in Field.
type Terms struct {
	Field  string
	Values []string
}

// Prefix matches keyword values starting with Prefix.
type Prefix struct {
	Field  string
	Prefix string
}

// NumberRange matches numeric values within the bounds. A nil bound is open.
type NumberRange struct {
	Field     string
	Lo, Hi    *float64
	IncludeLo bool
	IncludeHi bool
}

// DateRange matches epoch ms values within the bounds. A nil bound is open.
type DateRange struct {
	Field     string
	Lo, Hi    *int64
	IncludeLo bool
	IncludeHi bool
}

type BoolTerm struct {
	Field string
	Value bool
}

// Exists matches rows having any value in Field.
type Exists struct {
	Field string
}

// IntervalRange compares the closed intervals of a range sub-index with
// [Lo, Hi] using Op.
type IntervalRange struct {
	Field string
	Lo    int64
	Hi    int64
	Op    SpatialOp
}

// Bool composes clauses. Must clauses are all required, at least one Should
// clause is required when Must is empty, MustNot clauses exclude. Boost
// multiplies the score of the composite; zero means one.
type Bool struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Boost   float64
}

func (MatchAll) isQuery()      {}
func (Term) isQuery()          {}
func (Terms) isQuery()         {}
func (Prefix) isQuery()        {}
func (NumberRange) isQuery()   {}
func (DateRange) isQuery()     {}
func (BoolTerm) isQuery()      {}
func (Exists) isQuery()        {}
func (IntervalRange) isQuery() {}
func (Bool) isQuery()          {}

// And requires every clause.
func And(clauses ...Query) Bool { return Bool{Must: clauses} }

// Or requires at least one clause.
func Or(clauses ...Query) Bool { return Bool{Should: clauses} }

// Boosted wraps q so its score is multiplied by boost. A boost of zero or one
// returns q unchanged.
func Boosted(q Query, boost float64) Query {
	if boost == 0 || boost == 1 {
		return q
	}
	if b, ok := q.(Bool); ok && (b.Boost == 0 || b.Boost == 1) {
		b.Boost = boost
		return b
	}
	return Bool{Must: []Query{q}, Boost: boost}
}

func (MatchAll) String() string { return "*:*" }

func (q Term) String() string { return fmt.Sprintf("%s:%q", q.Field, q.Value) }

func (q Terms) String() string {
	return fmt.Sprintf("%s:[%s]", q.Field, strings.Join(q.Values, ","))
}

func (q Prefix) String() string { return fmt.Sprintf("%s:%s*", q.Field, q.Prefix) }

func (q NumberRange) String() string {
	lo, hi := "*", "*"
	if q.Lo != nil {
		lo = fmt.Sprintf("%g", *q.Lo)
	}
	if q.Hi != nil {
		hi = fmt.Sprintf("%g", *q.Hi)
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.Field, openBracket(q.IncludeLo), lo, hi, closeBracket(q.IncludeHi))
}

func (q DateRange) String() string {
	lo, hi := "*", "*"
	if q.Lo != nil {
		lo = fmt.Sprintf("%d", *q.Lo)
	}
	if q.Hi != nil {
		hi = fmt.Sprintf("%d", *q.Hi)
	}
	return fmt.Sprintf("%s:%s%s TO %s%s", q.Field, openBracket(q.IncludeLo), lo, hi, closeBracket(q.IncludeHi))
}

func (q BoolTerm) String() string { return fmt.Sprintf("%s:%t", q.Field, q.Value) }

func (q Exists) String() string { return fmt.Sprintf("_exists_:%s", q.Field) }

func (q IntervalRange) String() string {
	return fmt.Sprintf("%s:%s([%d,%d])", q.Field, q.Op, q.Lo, q.Hi)
}

func (q Bool) String() string {
	var parts []string
	for _, c := range q.Must {
		parts = append(parts, "+"+c.String())
	}
	for _, c := range q.Should {
		parts = append(parts, c.String())
	}
	for _, c := range q.MustNot {
		parts = append(parts, "-"+c.String())
	}
	s := "(" + strings.Join(parts, " ") + ")"
	if q.Boost != 0 && q.Boost != 1 {
		s += fmt.Sprintf("^%g", q.Boost)
	}
	return s
}

func openBracket(inclusive bool) string {
	if inclusive {
		return "["
	}
	return "{"
}

func closeBracket(inclusive bool) string {
	if inclusive {
		return "]"
	}
	return "}"
}
