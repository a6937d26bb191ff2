package schema

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/bitemporal"
	"github.com/nonibytes/cellindex/cellindex/column"
	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/row"
)

// BitemporalMapper reads four date columns of a row and stores the fact in
// the range sub-index of its region.
type BitemporalMapper struct {
	base
	vtFrom, vtTo, ttFrom, ttTo string
	parser                     bitemporal.Parser
	indices                    bitemporal.Indices
}

func newBitemporalMapper(name string, spec MapperSpec) (*BitemporalMapper, error) {
	p, err := bitemporal.NewParser(spec.Pattern, spec.NowValue)
	if err != nil {
		return nil, err
	}
	return &BitemporalMapper{
		base: base{name: name, kind: KindBitemporal, validated: spec.Validated,
			supported: kinds([]row.Kind{row.Timestamp, row.Date, row.BigInt, row.Int}, textKinds)},
		vtFrom:  spec.VtFrom,
		vtTo:    spec.VtTo,
		ttFrom:  spec.TtFrom,
		ttTo:    spec.TtTo,
		parser:  p,
		indices: bitemporal.IndicesFor(name),
	}, nil
}

func (m *BitemporalMapper) ValueKind() engine.ValueKind { return engine.RangeValues }

// Columns returns the vt_from, vt_to, tt_from and tt_to columns.
func (m *BitemporalMapper) Columns() []string {
	return []string{m.vtFrom, m.vtTo, m.ttFrom, m.ttTo}
}

// Indices returns the per-region sub-index field names.
func (m *BitemporalMapper) Indices() bitemporal.Indices { return m.indices }

// Parser returns the parser used for stored and queried bounds.
func (m *BitemporalMapper) Parser() bitemporal.Parser { return m.parser }

// EncodeRow stores the row's fact. A row carrying none of the four columns
// is not indexed by this mapper.
func (m *BitemporalMapper) EncodeRow(doc *engine.Document, cols *column.Columns) error {
	names := m.Columns()
	var (
		values  [4]bitemporal.DateTime
		missing []string
	)
	for i, name := range names {
		c, ok := cols.ByMapperName(name).First()
		if !ok || c.Value() == nil {
			missing = append(missing, name)
			continue
		}
		d, err := m.parser.Parse(c.Value())
		if err != nil {
			return fmt.Errorf("column %s: %w", name, err)
		}
		values[i] = d
	}
	switch len(missing) {
	case 0:
	case len(names):
		return nil
	default:
		return fmt.Errorf("missing bitemporal columns %v", missing)
	}
	_, err := bitemporal.Encode(doc, m.indices, bitemporal.Fact{
		VtFrom: values[0],
		VtTo:   values[1],
		TtFrom: values[2],
		TtTo:   values[3],
	})
	return err
}

// Bounds parses the four bounds of a bitemporal predicate. Missing bounds
// default to min for the lower ends and max for the upper ends. The name of
// the offending bound is returned with any parse error.
func (m *BitemporalMapper) Bounds(vtFrom, vtTo, ttFrom, ttTo any) (bitemporal.Bounds, string, error) {
	var b bitemporal.Bounds
	for _, p := range []struct {
		name string
		raw  any
		def  bitemporal.DateTime
		dst  *bitemporal.DateTime
	}{
		{"vt_from", vtFrom, bitemporal.Min, &b.VtFrom},
		{"vt_to", vtTo, bitemporal.Max, &b.VtTo},
		{"tt_from", ttFrom, bitemporal.Min, &b.TtFrom},
		{"tt_to", ttTo, bitemporal.Max, &b.TtTo},
	} {
		if p.raw == nil {
			*p.dst = p.def
			continue
		}
		d, err := m.parser.Parse(p.raw)
		if err != nil {
			return bitemporal.Bounds{}, p.name, err
		}
		*p.dst = d
	}
	return b, "", nil
}
