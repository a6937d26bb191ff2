package row

import (
	"fmt"
	"strings"
)

// ColumnKind is the role of a column in its table.
type ColumnKind string

const (
	PartitionKey ColumnKind = "partition_key"
	Clustering   ColumnKind = "clustering"
	Regular      ColumnKind = "regular"
	Static       ColumnKind = "static"
)

// ColumnDef is the metadata of one table column.
type ColumnDef struct {
	Name string
	Type Type
	Kind ColumnKind
}

// Table is the metadata of the indexed table.
type Table struct {
	Name    string
	Columns []ColumnDef
}

// Column looks a column up by name.
func (t Table) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}

// KeyColumns returns the partition key columns followed by the clustering
// columns, each group in declaration order.
func (t Table) KeyColumns() []ColumnDef {
	var keys []ColumnDef
	for _, kind := range []ColumnKind{PartitionKey, Clustering} {
		for _, c := range t.Columns {
			if c.Kind == kind {
				keys = append(keys, c)
			}
		}
	}
	return keys
}

// LeafType follows a dotted path (cell name plus nested UDT field names)
// through the table's types. Collections are transparent: a path segment
// after a list, set or map applies to its element or value type. The
// returned type has its collection layers stripped.
func (t Table) LeafType(path string) (ColumnDef, Type, error) {
	segments := strings.Split(path, ".")
	col, ok := t.Column(segments[0])
	if !ok {
		return ColumnDef{}, Type{}, fmt.Errorf("no column %q in table %s", segments[0], t.Name)
	}
	typ := col.Type.Unwrap()
	for i, seg := range segments[1:] {
		if typ.Kind != UDT {
			return col, Type{}, fmt.Errorf("%s is %s, which has no field %q",
				strings.Join(segments[:i+1], "."), typ, seg)
		}
		ft, ok := typ.Field(seg)
		if !ok {
			return col, Type{}, fmt.Errorf("type %s has no field %q", typ, seg)
		}
		typ = ft.Unwrap()
	}
	return col, typ, nil
}

// Validate checks the table has a partition key and unique column names.
func (t Table) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("table name is required")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	hasPartition := false
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("table %s has a column without name", t.Name)
		}
		if strings.ContainsAny(c.Name, ".$") {
			return fmt.Errorf("column name %q must not contain '.' or '$'", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate column %q in table %s", c.Name, t.Name)
		}
		seen[c.Name] = true
		switch c.Kind {
		case PartitionKey:
			hasPartition = true
		case Clustering, Regular, Static:
		default:
			return fmt.Errorf("column %q has unknown kind %q", c.Name, c.Kind)
		}
	}
	if !hasPartition {
		return fmt.Errorf("table %s has no partition key column", t.Name)
	}
	return nil
}

// TableSpec is the declarative form of a Table, as read from a table document.
type TableSpec struct {
	Name    string       `json:"name" mapstructure:"name"`
	Types   []TypeSpec   `json:"types,omitempty" mapstructure:"types"`
	Columns []ColumnSpec `json:"columns" mapstructure:"columns"`
}

// TypeSpec declares a user-defined type.
type TypeSpec struct {
	Name   string      `json:"name" mapstructure:"name"`
	Fields []FieldSpec `json:"fields" mapstructure:"fields"`
}

type FieldSpec struct {
	Name string `json:"name" mapstructure:"name"`
	Type string `json:"type" mapstructure:"type"`
}

type ColumnSpec struct {
	Name string     `json:"name" mapstructure:"name"`
	Type string     `json:"type" mapstructure:"type"`
	Kind ColumnKind `json:"kind,omitempty" mapstructure:"kind"`
}

// Build resolves the declared types and returns the validated Table.
// User-defined types may reference types declared before them.
func (s TableSpec) Build() (Table, error) {
	udts := make(map[string]Type, len(s.Types))
	for _, ts := range s.Types {
		name := strings.ToLower(ts.Name)
		if name == "" {
			return Table{}, fmt.Errorf("type without name")
		}
		if _, dup := udts[name]; dup {
			return Table{}, fmt.Errorf("duplicate type %q", ts.Name)
		}
		fields := make([]Field, 0, len(ts.Fields))
		for _, fs := range ts.Fields {
			ft, err := ParseType(fs.Type, udts)
			if err != nil {
				return Table{}, fmt.Errorf("type %s field %s: %w", ts.Name, fs.Name, err)
			}
			fields = append(fields, Field{Name: fs.Name, Type: ft})
		}
		udts[name] = UDTOf(name, fields...)
	}

	table := Table{Name: s.Name}
	for _, cs := range s.Columns {
		ct, err := ParseType(cs.Type, udts)
		if err != nil {
			return Table{}, fmt.Errorf("column %s: %w", cs.Name, err)
		}
		kind := cs.Kind
		if kind == "" {
			kind = Regular
		}
		table.Columns = append(table.Columns, ColumnDef{Name: cs.Name, Type: ct, Kind: kind})
	}
	if err := table.Validate(); err != nil {
		return Table{}, err
	}
	return table, nil
}

// Spec returns the declarative form of t.
func (t Table) Spec() TableSpec {
	spec := TableSpec{Name: t.Name}
	seen := make(map[string]bool)
	var collect func(Type)
	collect = func(typ Type) {
		switch {
		case typ.Kind == UDT:
			for _, f := range typ.Fields {
				collect(f.Type)
			}
			if !seen[typ.Name] {
				seen[typ.Name] = true
				ts := TypeSpec{Name: typ.Name}
				for _, f := range typ.Fields {
					ts.Fields = append(ts.Fields, FieldSpec{Name: f.Name, Type: f.Type.String()})
				}
				spec.Types = append(spec.Types, ts)
			}
		case typ.Kind == Map:
			collect(*typ.Key)
			collect(*typ.Value)
		case typ.IsCollection():
			collect(*typ.Elem)
		}
	}
	for _, c := range t.Columns {
		collect(c.Type)
		spec.Columns = append(spec.Columns, ColumnSpec{Name: c.Name, Type: c.Type.String(), Kind: c.Kind})
	}
	return spec
}
