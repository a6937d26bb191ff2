package column

import (
	"fmt"
	"reflect"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/row"
)

// FromRow decomposes every cell of r, key cells first.
func FromRow(r row.Row) (*Columns, error) {
	out := &Columns{}
	for _, cell := range r.All() {
		cols, err := FromCell(cell)
		if err != nil {
			return nil, err
		}
		out.AddAll(cols)
	}
	return out, nil
}

// FromCell decomposes one stored cell. UDT values descend in declared field
// order, map entries in key order and list or set elements yield one column
// each under the same name. Nil values produce no column.
func FromCell(cell row.Cell) (*Columns, error) {
	out := &Columns{}
	b := NewBuilder(cell.Name).MultiValued(cell.Type.IsMultiCell())
	if err := decompose(out, b, cell.Type, cell.Value); err != nil {
		return nil, err
	}
	return out, nil
}

func decompose(out *Columns, b Builder, typ row.Type, v any) error {
	if v == nil {
		return nil
	}
	switch typ.Kind {
	case row.List, row.Set:
		elems, ok := asSlice(v)
		if !ok {
			return mismatch(b, typ, v)
		}
		for _, e := range elems {
			if err := decompose(out, b, *typ.Elem, e); err != nil {
				return err
			}
		}
		return nil

	case row.Map:
		keys, formatted, ok := row.SortedKeys(*typ.Key, v)
		if !ok {
			return mismatch(b, typ, v)
		}
		for i, k := range keys {
			if err := decompose(out, b.MapKey(formatted[i]), *typ.Value, row.MapValue(v, k)); err != nil {
				return err
			}
		}
		return nil

	case row.UDT:
		fields, ok := v.(map[string]any)
		if !ok {
			return mismatch(b, typ, v)
		}
		for _, f := range typ.Fields {
			if err := decompose(out, b.Nested(f.Name), f.Type, fields[f.Name]); err != nil {
				return err
			}
		}
		return nil
	}

	switch v.(type) {
	case []any, map[string]any, map[any]any:
		return mismatch(b, typ, v)
	}
	out.Add(b.Build(typ, v))
	return nil
}

func asSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func mismatch(b Builder, typ row.Type, v any) error {
	name := ComposeName(b.cell, b.nested, b.mapKeys)
	return cierrors.DataError(name, fmt.Errorf("value of type %T does not fit %s", v, typ))
}
