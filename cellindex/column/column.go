package column

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/row"
)

// Column is one decomposed value of a stored cell: a typed value plus the
// name it is indexed under. Columns are immutable.
type Column struct {
	cell       string
	fullName   string
	mapperName string
	mapKey     string
	value      any
	typ        row.Type
	multi      bool
}

func (c Column) CellName() string   { return c.cell }
func (c Column) FullName() string   { return c.fullName }
func (c Column) MapperName() string { return c.mapperName }
func (c Column) Value() any         { return c.value }
func (c Column) Type() row.Type     { return c.typ }

// IsMultiValued reports whether the originating cell is a non-frozen collection.
func (c Column) IsMultiValued() bool { return c.multi }

// HasMapKey reports whether the column was produced by a map entry.
func (c Column) HasMapKey() bool { return c.mapKey != "" }

func (c Column) String() string {
	return fmt.Sprintf("%s=%v", c.fullName, c.value)
}

// Builder positions a column inside a cell. Builders are values; every
// method returns a new builder and leaves the receiver untouched.
type Builder struct {
	cell    string
	nested  []string
	mapKeys []string
	multi   bool
}

// NewBuilder starts a column of the named cell.
func NewBuilder(cell string) Builder {
	return Builder{cell: cell}
}

// Nested descends into a field of a user-defined type.
func (b Builder) Nested(segment string) Builder {
	b.nested = append(append([]string(nil), b.nested...), segment)
	return b
}

// MapKey descends into the entry of a map stored under key.
func (b Builder) MapKey(key string) Builder {
	b.mapKeys = append(append([]string(nil), b.mapKeys...), key)
	return b
}

// MultiValued marks the columns as coming from a non-frozen collection.
func (b Builder) MultiValued(multi bool) Builder {
	b.multi = multi
	return b
}

// Build returns the column holding value of type typ at the builder position.
func (b Builder) Build(typ row.Type, value any) Column {
	mapper := ComposeName(b.cell, b.nested, nil)
	var key string
	if n := len(b.mapKeys); n > 0 {
		key = b.mapKeys[n-1]
	}
	return Column{
		cell:       b.cell,
		fullName:   ComposeName(b.cell, b.nested, b.mapKeys),
		mapperName: mapper,
		mapKey:     key,
		value:      value,
		typ:        typ,
		multi:      b.multi,
	}
}
