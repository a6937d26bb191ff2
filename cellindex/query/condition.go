// Package query holds the predicate language of the index: a closed set of
// conditions, their JSON form, and their translation into engine queries
// against a schema.
package query

// Condition is a search predicate. The set of conditions is closed; Build
// matches it exhaustively.
type Condition interface {
	// Type returns the JSON discriminator of the condition
	Type() string
	isCondition()
}

// All matches every indexed row
type All struct {
	Boost float64
}

// Match matches rows where the field holds value
type Match struct {
	Field string
	Value any
	Boost float64
}

// Contains matches rows where the field holds any of values
type Contains struct {
	Field  string
	Values []any
	Boost  float64
}

// Range matches rows with a field value between Lower and Upper. A nil bound
// is open.
type Range struct {
	Field        string
	Lower        any
	Upper        any
	IncludeLower bool
	IncludeUpper bool
	Boost        float64
}

// Prefix matches rows with a field value starting with Value
type Prefix struct {
	Field string
	Value string
	Boost float64
}

// Exists matches rows holding at least one value for the field
type Exists struct {
	Field string
	Boost float64
}

// Boolean combines conditions: every Must, at least one Should when there is
// no Must, and no Not.
type Boolean struct {
	Must   []Condition
	Should []Condition
	Not    []Condition
	Boost  float64
}

// Bitemporal matches rows whose stored valid and transaction time intervals
// relate to the given ones by Operation. Missing bounds are open.
type Bitemporal struct {
	Field     string
	VtFrom    any
	VtTo      any
	TtFrom    any
	TtTo      any
	Operation string
	Boost     float64
}

const (
	TypeAll        = "all"
	TypeMatch      = "match"
	TypeContains   = "contains"
	TypeRange      = "range"
	TypePrefix     = "prefix"
	TypeExists     = "exists"
	TypeBoolean    = "boolean"
	TypeBitemporal = "bitemporal"
)

func (All) Type() string        { return TypeAll }
func (Match) Type() string      { return TypeMatch }
func (Contains) Type() string   { return TypeContains }
func (Range) Type() string      { return TypeRange }
func (Prefix) Type() string     { return TypePrefix }
func (Exists) Type() string     { return TypeExists }
func (Boolean) Type() string    { return TypeBoolean }
func (Bitemporal) Type() string { return TypeBitemporal }

func (All) isCondition()        {}
func (Match) isCondition()      {}
func (Contains) isCondition()   {}
func (Range) isCondition()      {}
func (Prefix) isCondition()     {}
func (Exists) isCondition()     {}
func (Boolean) isCondition()    {}
func (Bitemporal) isCondition() {}
