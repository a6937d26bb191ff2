package bitemporal

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/engine"
)

// Fact is the stored bitemporal lifecycle of one row.
type Fact struct {
	VtFrom DateTime
	VtTo   DateTime
	TtFrom DateTime
	TtTo   DateTime
}

// Validate checks both intervals are ordered.
func (f Fact) Validate() error {
	if f.VtFrom.Compare(f.VtTo) > 0 {
		return fmt.Errorf("vt_from %s is after vt_to %s", f.VtFrom, f.VtTo)
	}
	if f.TtFrom.Compare(f.TtTo) > 0 {
		return fmt.Errorf("tt_from %s is after tt_to %s", f.TtFrom, f.TtTo)
	}
	return nil
}

// Region returns the sub-index a fact is stored in:
//
//	tt_to now,      vt_to now      -> 1
//	tt_to now,      vt_to concrete -> 2
//	tt_to concrete, vt_to now      -> 3
//	tt_to concrete, vt_to concrete -> 4
func (f Fact) Region() Region {
	switch {
	case f.TtTo.IsNow() && f.VtTo.IsNow():
		return 1
	case f.TtTo.IsNow():
		return 2
	case f.VtTo.IsNow():
		return 3
	default:
		return 4
	}
}

// Encode validates f and appends it to the sub-indices of its region. An
// axis still open at Now is stored as its start instant alone; the region
// already records that it is open.
func Encode(doc *engine.Document, idx Indices, f Fact) (Region, error) {
	if err := f.Validate(); err != nil {
		return 0, err
	}
	r := f.Region()
	ri := idx.Of(r)
	doc.AddRange(ri.Valid, f.VtFrom.Storage(), stored(f.VtFrom, f.VtTo))
	doc.AddRange(ri.Trans, f.TtFrom.Storage(), stored(f.TtFrom, f.TtTo))
	return r, nil
}

func stored(from, to DateTime) int64 {
	if to.IsNow() {
		return from.Storage()
	}
	return to.Storage()
}
