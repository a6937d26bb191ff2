// Package schema holds the mapper registry of an index: which row columns
// are indexed, how their values are encoded into documents and how
// predicates on them become engine queries.
package schema

import (
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/engine"
	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
)

// Schema is an immutable mapper registry. It is safe for concurrent use once
// built; a schema change builds a new Schema.
type Schema struct {
	spec            Spec
	mappers         map[string]Mapper
	names           []string
	rowMappers      []RowMapper
	analyzers       map[string]Analyzer
	defaultAnalyzer Analyzer
	logger          *zap.Logger
}

// Option configures a Schema at build time.
type Option func(*Schema)

// WithLogger sets the logger used for skipped columns and values.
func WithLogger(l *zap.Logger) Option {
	return func(s *Schema) {
		if l != nil {
			s.logger = l
		}
	}
}

// Build validates spec and instantiates its mappers and analyzers. Any
// problem is a configuration error.
func Build(spec Spec, opts ...Option) (*Schema, error) {
	s := &Schema{spec: spec, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	analyzers, err := buildAnalyzers(spec.Analyzers)
	if err != nil {
		return nil, cierrors.Wrap(cierrors.ErrConfig, "invalid analyzers", err)
	}
	s.analyzers = analyzers
	def := spec.DefaultAnalyzer
	if def == "" {
		def = StandardAnalyzer
	}
	a, ok := analyzers[def]
	if !ok {
		return nil, cierrors.Configf("default_analyzer", "unknown analyzer %q", def)
	}
	s.defaultAnalyzer = a

	s.mappers = make(map[string]Mapper, len(spec.Fields))
	for name := range spec.Fields {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	for _, name := range s.names {
		m, err := s.newMapper(name, spec.Fields[name])
		if err != nil {
			return nil, err
		}
		s.mappers[name] = m
		if rm, ok := m.(RowMapper); ok {
			s.rowMappers = append(s.rowMappers, rm)
		}
	}
	s.logger.Debug("schema built", zap.Strings("mappers", s.names), zap.Int("analyzers", len(s.analyzers)))
	return s, nil
}

// Parse decodes a schema document and builds it.
func Parse(data []byte, opts ...Option) (*Schema, error) {
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}
	return Build(spec, opts...)
}

func (s *Schema) newMapper(name string, spec MapperSpec) (Mapper, error) {
	switch spec.Type {
	case KindString:
		return newStringMapper(name, spec), nil
	case KindText:
		a := s.defaultAnalyzer
		if spec.Analyzer != "" {
			var ok bool
			if a, ok = s.analyzers[spec.Analyzer]; !ok {
				return nil, cierrors.Configf(name, "unknown analyzer %q", spec.Analyzer)
			}
		}
		return newTextMapper(name, spec, a), nil
	case KindInteger:
		return newIntegerMapper(name, spec), nil
	case KindFloat:
		return newFloatMapper(name, spec), nil
	case KindBoolean:
		return newBooleanMapper(name, spec), nil
	case KindDate:
		m, err := newDateMapper(name, spec)
		if err != nil {
			return nil, cierrors.Configf(name, "invalid date mapper: %v", err)
		}
		return m, nil
	case KindUUID:
		return newUUIDMapper(name, spec), nil
	case KindInet:
		return newInetMapper(name, spec), nil
	case KindBitemporal:
		m, err := newBitemporalMapper(name, spec)
		if err != nil {
			return nil, cierrors.Configf(name, "invalid bitemporal mapper: %v", err)
		}
		return m, nil
	}
	return nil, cierrors.Configf(name, "unknown mapper type %q", spec.Type)
}

// Spec returns the document the schema was built from.
func (s *Schema) Spec() Spec { return s.spec }

// JSON encodes the schema document.
func (s *Schema) JSON() ([]byte, error) { return s.spec.JSON() }

// Names returns the registered mapper names, sorted.
func (s *Schema) Names() []string { return append([]string(nil), s.names...) }

// Mapper returns the mapper registered under exactly name.
func (s *Schema) Mapper(name string) (Mapper, bool) {
	m, ok := s.mappers[name]
	return m, ok
}

// Analyzer returns a built-in or custom analyzer.
func (s *Schema) Analyzer(name string) (Analyzer, bool) {
	a, ok := s.analyzers[name]
	return a, ok
}

func (s *Schema) DefaultAnalyzer() Analyzer { return s.defaultAnalyzer }

// Resolve returns the mapper registered under the longest dotted prefix of
// field. Map key segments are stripped first, so full column names resolve
// to the mapper of their logical field.
func (s *Schema) Resolve(field string) (Mapper, bool) {
	name := column.MapperNameOf(field)
	for {
		if m, ok := s.mappers[name]; ok {
			return m, true
		}
		i := strings.LastIndexByte(name, '.')
		if i < 0 {
			return nil, false
		}
		name = name[:i]
	}
}

// Encoded reports what EncodeRow did with a row's columns.
type Encoded struct {
	// Visited lists the column mappers invoked, sorted.
	Visited []string
	// Rows lists the row mappers that indexed the row, sorted.
	Rows []string
	// Skipped lists the full names of columns no mapper resolves.
	Skipped []string
	// Invalid lists the full names of columns whose value was not indexed
	// because a non validated mapper rejected it.
	Invalid []string
}

// EncodeRow adds every indexed value of cols to doc. Columns resolving to
// no mapper are skipped. A validated mapper rejecting a value fails the
// whole row with a data error.
func (s *Schema) EncodeRow(doc *engine.Document, cols *column.Columns) (Encoded, error) {
	var out Encoded
	visited := make(map[string]bool)
	for _, col := range cols.All() {
		m, ok := s.Resolve(col.MapperName())
		if !ok {
			out.Skipped = append(out.Skipped, col.FullName())
			s.logger.Debug("column not indexed", zap.String("column", col.FullName()))
			continue
		}
		cm, ok := m.(ColumnMapper)
		if !ok {
			continue
		}
		visited[m.Name()] = true
		if err := cm.EncodeColumn(doc, col); err != nil {
			if m.Validated() {
				return Encoded{}, cierrors.DataError(col.FullName(), err)
			}
			out.Invalid = append(out.Invalid, col.FullName())
			s.logger.Debug("invalid value not indexed",
				zap.String("mapper", m.Name()),
				zap.String("column", col.FullName()),
				zap.Error(err))
		}
	}
	out.Visited = sortedKeys(visited)

	for _, rm := range s.rowMappers {
		before := len(doc.Present())
		if err := rm.EncodeRow(doc, cols); err != nil {
			if rm.Validated() {
				return Encoded{}, cierrors.DataError(rm.Name(), err)
			}
			out.Invalid = append(out.Invalid, rm.Name())
			s.logger.Debug("invalid row not indexed", zap.String("mapper", rm.Name()), zap.Error(err))
			continue
		}
		if len(doc.Present()) != before {
			out.Rows = append(out.Rows, rm.Name())
		}
	}
	return out, nil
}

// MappersFor returns the column mappers EncodeRow invokes for cols, sorted.
func (s *Schema) MappersFor(cols *column.Columns) []string {
	seen := make(map[string]bool)
	for _, name := range cols.MapperNames() {
		m, ok := s.Resolve(name)
		if !ok {
			continue
		}
		if _, ok := m.(ColumnMapper); ok {
			seen[m.Name()] = true
		}
	}
	return sortedKeys(seen)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
