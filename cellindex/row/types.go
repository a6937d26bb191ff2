package row

import (
	"fmt"
	"strings"
)

// Kind is the storage type of a column or of a component of a composite type.
type Kind string

const (
	Text      Kind = "text"
	ASCII     Kind = "ascii"
	Varchar   Kind = "varchar"
	TinyInt   Kind = "tinyint"
	SmallInt  Kind = "smallint"
	Int       Kind = "int"
	BigInt    Kind = "bigint"
	Varint    Kind = "varint"
	Float     Kind = "float"
	Double    Kind = "double"
	Decimal   Kind = "decimal"
	Boolean   Kind = "boolean"
	Timestamp Kind = "timestamp"
	Date      Kind = "date"
	UUID      Kind = "uuid"
	TimeUUID  Kind = "timeuuid"
	Inet      Kind = "inet"
	Blob      Kind = "blob"

	List Kind = "list"
	Set  Kind = "set"
	Map  Kind = "map"
	UDT  Kind = "udt"
)

var scalarKinds = map[Kind]bool{
	Text: true, ASCII: true, Varchar: true,
	TinyInt: true, SmallInt: true, Int: true, BigInt: true, Varint: true,
	Float: true, Double: true, Decimal: true,
	Boolean: true, Timestamp: true, Date: true,
	UUID: true, TimeUUID: true, Inet: true, Blob: true,
}

// Type describes the shape of a stored value.
type Type struct {
	Kind   Kind
	Frozen bool

	Elem  *Type // list, set
	Key   *Type // map
	Value *Type // map

	Name   string  // udt
	Fields []Field // udt, declaration order
}

// Field is a named component of a user-defined type.
type Field struct {
	Name string
	Type Type
}

func Scalar(k Kind) Type { return Type{Kind: k} }

func ListOf(elem Type) Type { return Type{Kind: List, Elem: &elem} }

func SetOf(elem Type) Type { return Type{Kind: Set, Elem: &elem} }

func MapOf(key, value Type) Type { return Type{Kind: Map, Key: &key, Value: &value} }

func UDTOf(name string, fields ...Field) Type {
	return Type{Kind: UDT, Name: name, Fields: fields}
}

// Freeze returns a frozen copy of t.
func (t Type) Freeze() Type {
	t.Frozen = true
	return t
}

func (t Type) IsScalar() bool { return scalarKinds[t.Kind] }

func (t Type) IsCollection() bool {
	return t.Kind == List || t.Kind == Set || t.Kind == Map
}

// IsMultiCell reports whether values of this type are stored as several cells,
// which is the case for non-frozen collections.
func (t Type) IsMultiCell() bool {
	return t.IsCollection() && !t.Frozen
}

// Field returns the type of the named UDT field.
func (t Type) Field(name string) (Type, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f.Type, true
		}
	}
	return Type{}, false
}

// Unwrap strips collection layers, returning the element type of lists and
// sets and the value type of maps, until a non-collection type is reached.
func (t Type) Unwrap() Type {
	for t.IsCollection() {
		if t.Kind == Map {
			t = *t.Value
		} else {
			t = *t.Elem
		}
	}
	return t
}

func (t Type) String() string {
	var s string
	switch t.Kind {
	case List, Set:
		s = fmt.Sprintf("%s<%s>", t.Kind, t.Elem)
	case Map:
		s = fmt.Sprintf("map<%s, %s>", t.Key, t.Value)
	case UDT:
		s = t.Name
	default:
		s = string(t.Kind)
	}
	if t.Frozen {
		return "frozen<" + s + ">"
	}
	return s
}

// ParseType parses a CQL-like type expression such as "map<text, frozen<address>>".
// Names that are not built-in kinds are looked up in udts.
func ParseType(s string, udts map[string]Type) (Type, error) {
	p := &typeParser{src: s, udts: udts}
	t, err := p.parse()
	if err != nil {
		return Type{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Type{}, fmt.Errorf("unexpected %q at offset %d in type %q", p.src[p.pos:], p.pos, s)
	}
	return t, nil
}

type typeParser struct {
	src  string
	pos  int
	udts map[string]Type
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '<' || c == '>' || c == ',' || c == ' ' {
			break
		}
		p.pos++
	}
	return strings.ToLower(p.src[start:p.pos])
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d in type %q", c, p.pos, p.src)
	}
	p.pos++
	return nil
}

func (p *typeParser) parse() (Type, error) {
	name := p.ident()
	if name == "" {
		return Type{}, fmt.Errorf("missing type name at offset %d in %q", p.pos, p.src)
	}
	switch Kind(name) {
	case List, Set:
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		if Kind(name) == List {
			return ListOf(elem), nil
		}
		return SetOf(elem), nil
	case Map:
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		key, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(','); err != nil {
			return Type{}, err
		}
		value, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		return MapOf(key, value), nil
	}
	if name == "frozen" {
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		inner, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		return inner.Freeze(), nil
	}
	if scalarKinds[Kind(name)] {
		return Scalar(Kind(name)), nil
	}
	if udt, ok := p.udts[name]; ok {
		return udt, nil
	}
	return Type{}, fmt.Errorf("unknown type %q", name)
}
