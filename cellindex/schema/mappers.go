package schema

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/nonibytes/cellindex/cellindex/bitemporal"
	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/row"
)

// StringMapper indexes values as untokenized keywords, case folded unless
// case sensitive.
type StringMapper struct {
	base
	caseSensitive bool
}

func newStringMapper(name string, spec MapperSpec) *StringMapper {
	m := &StringMapper{
		base: base{name: name, kind: KindString, validated: spec.Validated,
			supported: kinds(textKinds, integerKinds, floatKinds,
				[]row.Kind{row.Boolean, row.UUID, row.TimeUUID, row.Inet, row.Timestamp, row.Date})},
		caseSensitive: true,
	}
	if spec.CaseSensitive != nil {
		m.caseSensitive = *spec.CaseSensitive
	}
	return m
}

func (m *StringMapper) ValueKind() engine.ValueKind { return engine.KeywordValues }

func (m *StringMapper) term(v any) (string, error) {
	s, err := toText(v)
	if err != nil {
		return "", err
	}
	if !m.caseSensitive {
		s = cases.Fold().String(s)
	}
	return s, nil
}

func (m *StringMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	s, err := m.term(col.Value())
	if err != nil {
		return err
	}
	for _, f := range m.fieldsOf(col) {
		doc.AddKeyword(f, s)
	}
	return nil
}

func (m *StringMapper) Match(field string, value any) (engine.Query, error) {
	s, err := m.term(value)
	if err != nil {
		return nil, err
	}
	return engine.Term{Field: field, Value: s}, nil
}

func (m *StringMapper) Prefix(field, prefix string) (engine.Query, error) {
	s, err := m.term(prefix)
	if err != nil {
		return nil, err
	}
	return engine.Prefix{Field: field, Prefix: s}, nil
}

// TextMapper indexes the tokens produced by an analyzer.
type TextMapper struct {
	base
	analyzer Analyzer
}

func newTextMapper(name string, spec MapperSpec, analyzer Analyzer) *TextMapper {
	return &TextMapper{
		base:     base{name: name, kind: KindText, validated: spec.Validated, supported: textKinds},
		analyzer: analyzer,
	}
}

func (m *TextMapper) ValueKind() engine.ValueKind { return engine.KeywordValues }

// Analyzer returns the analyzer applied to indexed and queried text.
func (m *TextMapper) Analyzer() Analyzer { return m.analyzer }

func (m *TextMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	s, err := toText(col.Value())
	if err != nil {
		return err
	}
	tokens := m.analyzer.Analyze(s)
	for _, f := range m.fieldsOf(col) {
		for _, tok := range tokens {
			doc.AddKeyword(f, tok)
		}
	}
	return nil
}

// Match requires every token of the analyzed value.
func (m *TextMapper) Match(field string, value any) (engine.Query, error) {
	s, err := toText(value)
	if err != nil {
		return nil, err
	}
	tokens := m.analyzer.Analyze(s)
	switch len(tokens) {
	case 0:
		return nil, fmt.Errorf("%q yields no tokens with analyzer %s", s, m.analyzer.Name())
	case 1:
		return engine.Term{Field: field, Value: tokens[0]}, nil
	}
	clauses := make([]engine.Query, len(tokens))
	for i, tok := range tokens {
		clauses[i] = engine.Term{Field: field, Value: tok}
	}
	return engine.And(clauses...), nil
}

// Prefix requires every token but the last, which is matched as a prefix.
func (m *TextMapper) Prefix(field, prefix string) (engine.Query, error) {
	tokens := m.analyzer.Analyze(prefix)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%q yields no tokens with analyzer %s", prefix, m.analyzer.Name())
	}
	last := engine.Prefix{Field: field, Prefix: tokens[len(tokens)-1]}
	if len(tokens) == 1 {
		return last, nil
	}
	clauses := make([]engine.Query, 0, len(tokens))
	for _, tok := range tokens[:len(tokens)-1] {
		clauses = append(clauses, engine.Term{Field: field, Value: tok})
	}
	return engine.And(append(clauses, last)...), nil
}

// NumberMapper indexes integer or floating point values.
type NumberMapper struct {
	base
	convert func(any) (float64, error)
}

func newIntegerMapper(name string, spec MapperSpec) *NumberMapper {
	return &NumberMapper{
		base:    base{name: name, kind: KindInteger, validated: spec.Validated, supported: kinds(integerKinds, floatKinds, textKinds)},
		convert: toInteger,
	}
}

func newFloatMapper(name string, spec MapperSpec) *NumberMapper {
	return &NumberMapper{
		base:    base{name: name, kind: KindFloat, validated: spec.Validated, supported: kinds(floatKinds, integerKinds, textKinds)},
		convert: toFloat,
	}
}

func (m *NumberMapper) ValueKind() engine.ValueKind { return engine.NumberValues }

func (m *NumberMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	f, err := m.convert(col.Value())
	if err != nil {
		return err
	}
	for _, field := range m.fieldsOf(col) {
		doc.AddNumber(field, f)
	}
	return nil
}

func (m *NumberMapper) Match(field string, value any) (engine.Query, error) {
	f, err := m.convert(value)
	if err != nil {
		return nil, err
	}
	return engine.NumberRange{Field: field, Lo: &f, Hi: &f, IncludeLo: true, IncludeHi: true}, nil
}

func (m *NumberMapper) Range(field string, lo, hi any, includeLo, includeHi bool) (engine.Query, error) {
	q := engine.NumberRange{Field: field, IncludeLo: includeLo, IncludeHi: includeHi}
	if lo != nil {
		f, err := m.convert(lo)
		if err != nil {
			return nil, fmt.Errorf("lower bound: %w", err)
		}
		q.Lo = &f
	}
	if hi != nil {
		f, err := m.convert(hi)
		if err != nil {
			return nil, fmt.Errorf("upper bound: %w", err)
		}
		q.Hi = &f
	}
	return q, nil
}

// BooleanMapper indexes true/false values.
type BooleanMapper struct {
	base
}

func newBooleanMapper(name string, spec MapperSpec) *BooleanMapper {
	return &BooleanMapper{base{name: name, kind: KindBoolean, validated: spec.Validated,
		supported: kinds([]row.Kind{row.Boolean}, textKinds)}}
}

func (m *BooleanMapper) ValueKind() engine.ValueKind { return engine.BoolValues }

func (m *BooleanMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	b, err := toBool(col.Value())
	if err != nil {
		return err
	}
	for _, f := range m.fieldsOf(col) {
		doc.AddBool(f, b)
	}
	return nil
}

func (m *BooleanMapper) Match(field string, value any) (engine.Query, error) {
	b, err := toBool(value)
	if err != nil {
		return nil, err
	}
	return engine.BoolTerm{Field: field, Value: b}, nil
}

// DateMapper indexes instants as epoch milliseconds.
type DateMapper struct {
	base
	parser bitemporal.Parser
}

func newDateMapper(name string, spec MapperSpec) (*DateMapper, error) {
	p, err := bitemporal.NewParser(spec.Pattern, "")
	if err != nil {
		return nil, err
	}
	return &DateMapper{
		base: base{name: name, kind: KindDate, validated: spec.Validated,
			supported: kinds([]row.Kind{row.Timestamp, row.Date, row.BigInt, row.Int, row.TimeUUID}, textKinds)},
		parser: p,
	}, nil
}

func (m *DateMapper) ValueKind() engine.ValueKind { return engine.DateValues }

func (m *DateMapper) parse(v any) (int64, error) {
	if u, ok := v.(uuid.UUID); ok && u.Version() == 1 {
		sec, nsec := u.Time().UnixTime()
		return sec*1000 + nsec/1_000_000, nil
	}
	d, err := m.parser.Parse(v)
	if err != nil {
		return 0, err
	}
	if d.IsNow() {
		return 0, fmt.Errorf("date mapper %s cannot store an open date", m.name)
	}
	return int64(d), nil
}

func (m *DateMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	ms, err := m.parse(col.Value())
	if err != nil {
		return err
	}
	for _, f := range m.fieldsOf(col) {
		doc.AddDate(f, ms)
	}
	return nil
}

func (m *DateMapper) Match(field string, value any) (engine.Query, error) {
	ms, err := m.parse(value)
	if err != nil {
		return nil, err
	}
	return engine.DateRange{Field: field, Lo: &ms, Hi: &ms, IncludeLo: true, IncludeHi: true}, nil
}

func (m *DateMapper) Range(field string, lo, hi any, includeLo, includeHi bool) (engine.Query, error) {
	q := engine.DateRange{Field: field, IncludeLo: includeLo, IncludeHi: includeHi}
	if lo != nil {
		ms, err := m.parse(lo)
		if err != nil {
			return nil, fmt.Errorf("lower bound: %w", err)
		}
		q.Lo = &ms
	}
	if hi != nil {
		ms, err := m.parse(hi)
		if err != nil {
			return nil, fmt.Errorf("upper bound: %w", err)
		}
		q.Hi = &ms
	}
	return q, nil
}

// UUIDMapper indexes UUIDs in their canonical lower case form.
type UUIDMapper struct {
	base
}

func newUUIDMapper(name string, spec MapperSpec) *UUIDMapper {
	return &UUIDMapper{base{name: name, kind: KindUUID, validated: spec.Validated,
		supported: kinds([]row.Kind{row.UUID, row.TimeUUID}, textKinds)}}
}

func (m *UUIDMapper) ValueKind() engine.ValueKind { return engine.KeywordValues }

func (m *UUIDMapper) term(v any) (string, error) {
	switch x := v.(type) {
	case uuid.UUID:
		return x.String(), nil
	case [16]byte:
		return uuid.UUID(x).String(), nil
	case []byte:
		u, err := uuid.FromBytes(x)
		if err != nil {
			return "", err
		}
		return u.String(), nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(x))
		if err != nil {
			return "", fmt.Errorf("invalid uuid %q: %w", x, err)
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("invalid uuid value type: %T", v)
}

func (m *UUIDMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	s, err := m.term(col.Value())
	if err != nil {
		return err
	}
	for _, f := range m.fieldsOf(col) {
		doc.AddKeyword(f, s)
	}
	return nil
}

func (m *UUIDMapper) Match(field string, value any) (engine.Query, error) {
	s, err := m.term(value)
	if err != nil {
		return nil, err
	}
	return engine.Term{Field: field, Value: s}, nil
}

func (m *UUIDMapper) Prefix(field, prefix string) (engine.Query, error) {
	return engine.Prefix{Field: field, Prefix: strings.ToLower(prefix)}, nil
}

// InetMapper indexes IP addresses in their canonical textual form.
type InetMapper struct {
	base
}

func newInetMapper(name string, spec MapperSpec) *InetMapper {
	return &InetMapper{base{name: name, kind: KindInet, validated: spec.Validated,
		supported: kinds([]row.Kind{row.Inet}, textKinds)}}
}

func (m *InetMapper) ValueKind() engine.ValueKind { return engine.KeywordValues }

func (m *InetMapper) term(v any) (string, error) {
	switch x := v.(type) {
	case netip.Addr:
		return x.Unmap().String(), nil
	case netip.Prefix:
		if x.Bits() == x.Addr().BitLen() {
			return x.Addr().Unmap().String(), nil
		}
		return x.Masked().String(), nil
	case net.IP:
		addr, ok := netip.AddrFromSlice(x)
		if !ok {
			return "", fmt.Errorf("invalid ip %v", x)
		}
		return addr.Unmap().String(), nil
	case string:
		addr, err := netip.ParseAddr(strings.TrimSpace(x))
		if err != nil {
			return "", fmt.Errorf("invalid ip %q: %w", x, err)
		}
		return addr.Unmap().String(), nil
	}
	return "", fmt.Errorf("invalid inet value type: %T", v)
}

func (m *InetMapper) EncodeColumn(doc *engine.Document, col column.Column) error {
	s, err := m.term(col.Value())
	if err != nil {
		return err
	}
	for _, f := range m.fieldsOf(col) {
		doc.AddKeyword(f, s)
	}
	return nil
}

func (m *InetMapper) Match(field string, value any) (engine.Query, error) {
	s, err := m.term(value)
	if err != nil {
		return nil, err
	}
	return engine.Term{Field: field, Value: s}, nil
}

func (m *InetMapper) Prefix(field, prefix string) (engine.Query, error) {
	return engine.Prefix{Field: field, Prefix: strings.ToLower(prefix)}, nil
}
