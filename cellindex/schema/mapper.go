package schema

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/row"
)

// Kind is the mapper type named in the schema document.
type Kind string

const (
	KindString     Kind = "string"
	KindText       Kind = "text"
	KindInteger    Kind = "integer"
	KindFloat      Kind = "float"
	KindBoolean    Kind = "boolean"
	KindDate       Kind = "date"
	KindUUID       Kind = "uuid"
	KindInet       Kind = "inet"
	KindBitemporal Kind = "bitemporal"
)

// Mapper is a registered field definition.
type Mapper interface {
	Name() string
	Kind() Kind
	// Columns returns the table paths the mapper reads.
	Columns() []string
	// SupportedTypes lists the leaf storage types the mapper accepts.
	SupportedTypes() []row.Kind
	// ValueKind names the posting table the mapper writes to.
	ValueKind() engine.ValueKind
	// Validated reports whether invalid values fail the write instead of
	// being skipped.
	Validated() bool
}

// ColumnMapper encodes one column at a time.
type ColumnMapper interface {
	Mapper
	EncodeColumn(doc *engine.Document, col column.Column) error
}

// RowMapper encodes from the whole column set of a row, for mappers reading
// several columns.
type RowMapper interface {
	Mapper
	EncodeRow(doc *engine.Document, cols *column.Columns) error
}

// Matcher builds the query matching a single value.
type Matcher interface {
	Match(field string, value any) (engine.Query, error)
}

// Ranger builds range queries. A nil bound is open.
type Ranger interface {
	Range(field string, lo, hi any, includeLo, includeHi bool) (engine.Query, error)
}

// Prefixer builds prefix queries.
type Prefixer interface {
	Prefix(field, prefix string) (engine.Query, error)
}

type base struct {
	name      string
	kind      Kind
	validated bool
	supported []row.Kind
}

func (b base) Name() string               { return b.name }
func (b base) Kind() Kind                 { return b.kind }
func (b base) Columns() []string          { return []string{b.name} }
func (b base) SupportedTypes() []row.Kind { return b.supported }
func (b base) Validated() bool            { return b.validated }

// fieldsOf returns the engine fields a column is indexed under: its mapper
// name, its full name for map entries, and the name of the mapper itself
// when it is registered on an ancestor of the column.
func (b base) fieldsOf(col column.Column) []string {
	fields := []string{col.MapperName()}
	if col.HasMapKey() {
		fields = append(fields, col.FullName())
	}
	if b.name != col.MapperName() {
		fields = append(fields, b.name)
	}
	return fields
}

var (
	textKinds    = []row.Kind{row.Text, row.ASCII, row.Varchar}
	integerKinds = []row.Kind{row.TinyInt, row.SmallInt, row.Int, row.BigInt, row.Varint}
	floatKinds   = []row.Kind{row.Float, row.Double, row.Decimal}
)

func kinds(groups ...[]row.Kind) []row.Kind {
	var out []row.Kind
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int8:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case uint:
		return float64(x), nil
	case uint8:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case uint32:
		return float64(x), nil
	case uint64:
		return float64(x), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", x)
		}
		return f, nil
	case fmt.Stringer:
		return toFloat(x.String())
	}
	return 0, fmt.Errorf("invalid number value type: %T", v)
}

func toInteger(v any) (float64, error) {
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid integer value %v", v)
	}
	return math.Trunc(f), nil
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return false, fmt.Errorf("invalid bool string: %s", x)
		}
		return b, nil
	}
	return false, fmt.Errorf("invalid bool value type: %T", v)
}

func toText(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("missing value")
	case string:
		return x, nil
	case []any, map[string]any, map[any]any:
		return "", fmt.Errorf("invalid text value type: %T", v)
	}
	return row.FormatValue(row.Type{}, v), nil
}
