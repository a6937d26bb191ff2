package schema

import (
	"fmt"
	"regexp"
	"strings"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/row"
)

var validSegmentRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validPath(path string) bool {
	if path == "" {
		return false
	}
	for _, seg := range strings.Split(path, ".") {
		if !validSegmentRe.MatchString(seg) {
			return false
		}
	}
	return true
}

func validateSpec(spec Spec) error {
	if len(spec.Fields) == 0 {
		return cierrors.ConfigError("", "schema must have at least one field")
	}
	for name, m := range spec.Fields {
		if strings.Contains(name, "$") {
			return cierrors.ConfigError(name, "mapper name must not contain a map key segment ('$')")
		}
		if !validPath(name) {
			return cierrors.Configf(name, "invalid mapper name (each dotted segment must match %s)", validSegmentRe)
		}
		if err := validateMapperSpec(name, m); err != nil {
			return err
		}
	}
	return nil
}

func validateMapperSpec(name string, m MapperSpec) error {
	var unused []string
	check := func(option string, set bool, allowed ...Kind) {
		if !set {
			return
		}
		for _, k := range allowed {
			if m.Type == k {
				return
			}
		}
		unused = append(unused, option)
	}
	check("case_sensitive", m.CaseSensitive != nil, KindString)
	check("analyzer", m.Analyzer != "", KindText)
	check("pattern", m.Pattern != "", KindDate, KindBitemporal)
	check("vt_from", m.VtFrom != "", KindBitemporal)
	check("vt_to", m.VtTo != "", KindBitemporal)
	check("tt_from", m.TtFrom != "", KindBitemporal)
	check("tt_to", m.TtTo != "", KindBitemporal)
	check("now_value", m.NowValue != "", KindBitemporal)

	switch m.Type {
	case KindString, KindText, KindInteger, KindFloat, KindBoolean, KindDate, KindUUID, KindInet:
	case KindBitemporal:
		for _, c := range []struct{ option, path string }{
			{"vt_from", m.VtFrom}, {"vt_to", m.VtTo}, {"tt_from", m.TtFrom}, {"tt_to", m.TtTo},
		} {
			if c.path == "" {
				return cierrors.Configf(name, "bitemporal mapper requires %s", c.option)
			}
			if !validPath(c.path) {
				return cierrors.Configf(name, "%s: invalid column path %q", c.option, c.path)
			}
		}
	case "":
		return cierrors.ConfigError(name, "mapper type is required")
	default:
		return cierrors.Configf(name, "unknown mapper type %q", m.Type)
	}
	if len(unused) > 0 {
		return cierrors.Configf(name, "options %v do not apply to %s mappers", unused, m.Type)
	}
	return nil
}

// ValidateTable checks every mapper against the indexed table: each column
// it reads must exist, must not be static and must have a storage type the
// mapper supports. A mapper registered on a UDT column covers every leaf
// below it, so every leaf must be supported.
func (s *Schema) ValidateTable(table row.Table) error {
	for _, name := range s.names {
		m := s.mappers[name]
		for _, path := range m.Columns() {
			col, typ, err := table.LeafType(path)
			if err != nil {
				return cierrors.Wrap(cierrors.ErrConfig, fmt.Sprintf("mapper %s", name), err)
			}
			if col.Kind == row.Static {
				return cierrors.Configf(name, "column %s is static", col.Name)
			}
			if err := checkLeaves(m, path, typ); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkLeaves(m Mapper, path string, typ row.Type) error {
	typ = typ.Unwrap()
	if typ.Kind == row.UDT {
		for _, f := range typ.Fields {
			if err := checkLeaves(m, path+"."+f.Name, f.Type); err != nil {
				return err
			}
		}
		return nil
	}
	for _, k := range m.SupportedTypes() {
		if k == typ.Kind {
			return nil
		}
	}
	return cierrors.Configf(m.Name(), "%s mapper does not support column %s of type %s (supported: %v)",
		m.Kind(), path, typ, m.SupportedTypes())
}
