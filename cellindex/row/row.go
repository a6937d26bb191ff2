package row

import (
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

// Cell is one stored value of a row together with its column identity.
type Cell struct {
	Name  string
	Type  Type
	Value any
}

// IsMultiValued reports whether the cell holds a non-frozen collection.
func (c Cell) IsMultiValued() bool { return c.Type.IsMultiCell() }

// Row is a stored row as handed over by the row store.
//
// Value conventions: UDT values are map[string]any keyed by field name, map
// values are map[string]any or map[any]any, list and set values are []any.
type Row struct {
	Partition  []Cell
	Clustering []Cell
	Cells      []Cell
}

// All returns the key cells followed by the regular cells.
func (r Row) All() []Cell {
	out := make([]Cell, 0, len(r.Partition)+len(r.Clustering)+len(r.Cells))
	out = append(out, r.Partition...)
	out = append(out, r.Clustering...)
	return append(out, r.Cells...)
}

// Key renders the primary key as a JSON array of formatted key values.
func (r Row) Key() string {
	parts := make([]string, 0, len(r.Partition)+len(r.Clustering))
	for _, c := range r.Partition {
		parts = append(parts, FormatValue(c.Type, c.Value))
	}
	for _, c := range r.Clustering {
		parts = append(parts, FormatValue(c.Type, c.Value))
	}
	return KeyOf(parts...)
}

// KeyOf renders already formatted key values the way Row.Key does.
func KeyOf(parts ...string) string {
	if parts == nil {
		parts = []string{}
	}
	b, _ := json.Marshal(parts)
	return string(b)
}

// Data returns the row as a map suitable for JSON encoding.
func (r Row) Data() map[string]any {
	out := make(map[string]any, len(r.Partition)+len(r.Clustering)+len(r.Cells))
	for _, c := range r.All() {
		out[c.Name] = jsonValue(c.Value)
	}
	return out
}

// FromMap builds a row for table from column-name keyed values, such as a
// decoded JSON object. Every partition key column must be present; unknown
// names are rejected.
func FromMap(table Table, values map[string]any) (Row, error) {
	var r Row
	for name := range values {
		if _, ok := table.Column(name); !ok {
			return Row{}, fmt.Errorf("unknown column %q", name)
		}
	}
	for _, def := range table.Columns {
		v, present := values[def.Name]
		if def.Kind == PartitionKey || def.Kind == Clustering {
			if !present || v == nil {
				return Row{}, fmt.Errorf("missing key column %q", def.Name)
			}
		}
		if !present || v == nil {
			continue
		}
		cell := Cell{Name: def.Name, Type: def.Type, Value: v}
		switch def.Kind {
		case PartitionKey:
			r.Partition = append(r.Partition, cell)
		case Clustering:
			r.Clustering = append(r.Clustering, cell)
		default:
			r.Cells = append(r.Cells, cell)
		}
	}
	return r, nil
}

// KeyFromMap renders the primary key of table from column-name keyed values.
func KeyFromMap(table Table, values map[string]any) (string, error) {
	var parts []string
	for _, def := range table.KeyColumns() {
		v, ok := values[def.Name]
		if !ok || v == nil {
			return "", fmt.Errorf("missing key column %q", def.Name)
		}
		parts = append(parts, FormatValue(def.Type, v))
	}
	return KeyOf(parts...), nil
}

// FormatValue renders a scalar value as text. It is used for map keys and
// primary key rendering, so equal values must always render identically.
func FormatValue(t Type, v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return hex.EncodeToString(x)
	case time.Time:
		if t.Kind == Date {
			return x.UTC().Format("2006-01-02")
		}
		return x.UTC().Format(time.RFC3339Nano)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return formatFloat(t, float64(x), 32)
	case float64:
		return formatFloat(t, x, 64)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(t Type, f float64, bits int) string {
	switch t.Kind {
	case TinyInt, SmallInt, Int, BigInt, Varint:
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return strconv.FormatFloat(f, 'f', -1, bits)
}

// SortedKeys returns the keys of a map value ordered by their formatted form,
// together with the formatted keys. ok is false when v is not a map.
func SortedKeys(keyType Type, v any) (keys []any, formatted []string, ok bool) {
	type entry struct {
		key any
		s   string
	}
	var entries []entry
	switch m := v.(type) {
	case map[string]any:
		for k := range m {
			entries = append(entries, entry{k, FormatValue(keyType, k)})
		}
	case map[any]any:
		for k := range m {
			entries = append(entries, entry{k, FormatValue(keyType, k)})
		}
	case map[string]string:
		for k := range m {
			entries = append(entries, entry{k, FormatValue(keyType, k)})
		}
	default:
		return nil, nil, false
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].s < entries[j].s })
	for _, e := range entries {
		keys = append(keys, e.key)
		formatted = append(formatted, e.s)
	}
	return keys, formatted, true
}

// MapValue returns the entry of a map value stored under key.
func MapValue(v any, key any) any {
	switch m := v.(type) {
	case map[string]any:
		return m[key.(string)]
	case map[any]any:
		return m[key]
	case map[string]string:
		return m[key.(string)]
	}
	return nil
}

func jsonValue(v any) any {
	switch x := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = jsonValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = jsonValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = jsonValue(e)
		}
		return out
	case []byte:
		return hex.EncodeToString(x)
	default:
		return v
	}
}
