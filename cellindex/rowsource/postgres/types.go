package postgres

import (
	"fmt"
	"net/netip"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/nonibytes/cellindex/cellindex/row"
)

// scalarTypes maps pg_type names, as found in information_schema udt_name
// columns, to row kinds.
var scalarTypes = map[string]row.Kind{
	"text":        row.Text,
	"varchar":     row.Varchar,
	"bpchar":      row.Text,
	"name":        row.Text,
	"citext":      row.Text,
	"int2":        row.SmallInt,
	"int4":        row.Int,
	"int8":        row.BigInt,
	"float4":      row.Float,
	"float8":      row.Double,
	"numeric":     row.Decimal,
	"bool":        row.Boolean,
	"timestamp":   row.Timestamp,
	"timestamptz": row.Timestamp,
	"date":        row.Date,
	"uuid":        row.UUID,
	"inet":        row.Inet,
	"bytea":       row.Blob,
}

// jsonType is how json and jsonb columns are indexed: one text entry per
// top-level key.
var jsonType = row.MapOf(row.Scalar(row.Text), row.Scalar(row.Text))

// compositeLookup returns the attributes of a composite type, or ok=false
// when udtName is not one (enums and domains, for instance).
type compositeLookup func(udtName string) (attrs []attribute, ok bool, err error)

type attribute struct {
	Name    string `db:"attribute_name"`
	UDTName string `db:"attribute_udt_name"`
}

// mapType resolves a pg_type name to a row type. Array types are the element
// name prefixed with an underscore. Composite types are frozen UDTs.
func mapType(udtName string, composites compositeLookup) (row.Type, error) {
	if elem, ok := strings.CutPrefix(udtName, "_"); ok {
		et, err := mapType(elem, composites)
		if err != nil {
			return row.Type{}, err
		}
		if et.Kind == row.UDT {
			et = et.Freeze()
		}
		return row.ListOf(et), nil
	}
	if k, ok := scalarTypes[udtName]; ok {
		return row.Scalar(k), nil
	}
	switch udtName {
	case "json", "jsonb":
		return jsonType, nil
	}
	if composites == nil {
		return row.Type{}, fmt.Errorf("unsupported type %s", udtName)
	}
	attrs, ok, err := composites(udtName)
	if err != nil {
		return row.Type{}, err
	}
	if !ok {
		// enums and text domains arrive as strings
		return row.Scalar(row.Text), nil
	}
	fields := make([]row.Field, 0, len(attrs))
	for _, a := range attrs {
		ft, err := mapType(a.UDTName, composites)
		if err != nil {
			return row.Type{}, fmt.Errorf("%s.%s: %w", udtName, a.Name, err)
		}
		fields = append(fields, row.Field{Name: a.Name, Type: ft})
	}
	return row.UDTOf(udtName, fields...).Freeze(), nil
}

// normalize converts a value decoded by pgx into the conventions of
// row.Row for typ.
func normalize(typ row.Type, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typ.Kind {
	case row.List, row.Set:
		elems, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array for %s, got %T", typ, v)
		}
		out := make([]any, 0, len(elems))
		for _, e := range elems {
			ne, err := normalize(*typ.Elem, e)
			if err != nil {
				return nil, err
			}
			if ne != nil {
				out = append(out, ne)
			}
		}
		return out, nil

	case row.Map:
		obj, ok := v.(map[string]any)
		if !ok {
			// json arrays and scalars have no keys to index
			return nil, nil
		}
		out := make(map[string]any, len(obj))
		for k, e := range obj {
			switch x := e.(type) {
			case nil:
			case string:
				out[k] = x
			default:
				b, err := json.Marshal(x)
				if err != nil {
					return nil, err
				}
				out[k] = string(b)
			}
		}
		return out, nil

	case row.UDT:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected composite for %s, got %T", typ, v)
		}
		out := make(map[string]any, len(obj))
		for _, f := range typ.Fields {
			nv, err := normalize(f.Type, obj[f.Name])
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Name, err)
			}
			if nv != nil {
				out[f.Name] = nv
			}
		}
		return out, nil
	}

	switch x := v.(type) {
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case netip.Prefix:
		if x.IsSingleIP() {
			return x.Addr().String(), nil
		}
		return x.String(), nil
	case netip.Addr:
		return x.String(), nil
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil {
			return nil, err
		}
		if !f.Valid {
			return nil, nil
		}
		return f.Float64, nil
	}
	return v, nil
}
