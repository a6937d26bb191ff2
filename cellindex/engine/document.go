// Package engine holds the search-engine side model: the flat document a row
// is encoded into and the query tree the planner compiles to SQL.
package engine

import "sort"

// ValueKind names the posting table a field's values are stored in.
type ValueKind string

const (
	KeywordValues ValueKind = "keyword"
	NumberValues  ValueKind = "number"
	DateValues    ValueKind = "date"
	BoolValues    ValueKind = "bool"
	RangeValues   ValueKind = "range"
)

// Interval is a closed range stored in a range sub-index.
type Interval struct {
	Lo int64
	Hi int64
}

// Document is the flat, field-addressed form of one indexed row.
type Document struct {
	Key      string
	DataJSON []byte

	Keywords map[string][]string
	Numbers  map[string][]float64
	Dates    map[string][]int64 // epoch ms
	Bools    map[string][]bool
	Ranges   map[string][]Interval

	present map[string]bool
}

// NewDocument returns an empty document for the row stored under key.
func NewDocument(key string, dataJSON []byte) *Document {
	return &Document{
		Key:      key,
		DataJSON: dataJSON,
		Keywords: make(map[string][]string),
		Numbers:  make(map[string][]float64),
		Dates:    make(map[string][]int64),
		Bools:    make(map[string][]bool),
		Ranges:   make(map[string][]Interval),
		present:  make(map[string]bool),
	}
}

func (d *Document) AddKeyword(field, value string) {
	d.Keywords[field] = append(d.Keywords[field], value)
	d.present[field] = true
}

func (d *Document) AddNumber(field string, value float64) {
	d.Numbers[field] = append(d.Numbers[field], value)
	d.present[field] = true
}

func (d *Document) AddDate(field string, epochMS int64) {
	d.Dates[field] = append(d.Dates[field], epochMS)
	d.present[field] = true
}

func (d *Document) AddBool(field string, value bool) {
	for _, v := range d.Bools[field] {
		if v == value {
			d.present[field] = true
			return
		}
	}
	d.Bools[field] = append(d.Bools[field], value)
	d.present[field] = true
}

// AddRange appends the closed interval [lo, hi] to a range sub-index.
func (d *Document) AddRange(field string, lo, hi int64) {
	d.Ranges[field] = append(d.Ranges[field], Interval{Lo: lo, Hi: hi})
	d.present[field] = true
}

// Present returns the fields holding at least one value, sorted.
func (d *Document) Present() []string {
	out := make([]string, 0, len(d.present))
	for f := range d.present {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// IsEmpty reports whether no field has been added.
func (d *Document) IsEmpty() bool { return len(d.present) == 0 }
