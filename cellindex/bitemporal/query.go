package bitemporal

import (
	"fmt"

	"github.com/nonibytes/cellindex/cellindex/engine"
	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
)

// Bounds are the four temporal bounds of a bitemporal predicate.
type Bounds struct {
	VtFrom DateTime
	VtTo   DateTime
	TtFrom DateTime
	TtTo   DateTime
}

// Branch names the mutually exclusive cases of region selection.
type Branch string

const (
	BranchA  Branch = "A"
	BranchB  Branch = "B"
	BranchC1 Branch = "C1"
	BranchC2 Branch = "C2"
	BranchC3 Branch = "C3"
)

// Branches lists every branch in decision order.
var Branches = []Branch{BranchA, BranchB, BranchC1, BranchC2, BranchC3}

// Region identifies one of the four sub-indices, 1 to 4.
type Region int

var branchRegions = map[Branch][]Region{
	BranchA:  {1, 2, 3, 4},
	BranchB:  {2, 4},
	BranchC1: {1, 2},
	BranchC2: {2},
	BranchC3: {1, 2},
}

// Regions returns the regions queried by br.
func (br Branch) Regions() []Region {
	return append([]Region(nil), branchRegions[br]...)
}

// guard reports whether br fires for b. Guards are evaluated independently
// so exclusivity can be checked.
func (br Branch) guard(b Bounds) bool {
	unbounded := b.VtFrom == Min && b.VtTo == Max
	reaches := b.TtTo.Compare(b.VtFrom) >= 0
	switch br {
	case BranchA:
		return !b.TtFrom.IsNow() && reaches
	case BranchB:
		return !b.TtFrom.IsNow() && !reaches
	case BranchC1:
		return b.TtFrom.IsNow() && !unbounded && reaches
	case BranchC2:
		return b.TtFrom.IsNow() && !unbounded && !reaches
	case BranchC3:
		return b.TtFrom.IsNow() && unbounded
	}
	return false
}

// SelectBranch returns the single branch whose guard holds for b.
func SelectBranch(b Bounds) (Branch, error) {
	for _, br := range Branches {
		if br.guard(b) {
			return br, nil
		}
	}
	return "", cierrors.Internalf("no bitemporal branch for bounds vt=[%s,%s] tt=[%s,%s]",
		b.VtFrom, b.VtTo, b.TtFrom, b.TtTo)
}

type selector uint8

const (
	selMin selector = iota
	selMax
	selVtFrom
	selVtTo
	selTtFrom
	selTtTo
	selLaterTtFromVtFrom
)

// Axis indexes the valid and transaction time halves of a region.
type Axis int

const (
	ValidAxis Axis = iota
	TransAxis
)

// substitution[region-1][axis] holds the {lower, upper} selectors of the
// query range for that region and axis.
var substitution = [4][2][2]selector{
	{{selMin, selVtTo}, {selMin, selTtTo}},
	{{selVtFrom, selVtTo}, {selMin, selTtTo}},
	{{selMin, selVtTo}, {selLaterTtFromVtFrom, selTtTo}},
	{{selVtFrom, selVtTo}, {selTtFrom, selTtTo}},
}

func (b Bounds) resolve(s selector) DateTime {
	switch s {
	case selMin:
		return Min
	case selMax:
		return Max
	case selVtFrom:
		return b.VtFrom
	case selVtTo:
		return b.VtTo
	case selTtFrom:
		return b.TtFrom
	case selTtTo:
		return b.TtTo
	case selLaterTtFromVtFrom:
		return Later(b.TtFrom, b.VtFrom)
	}
	panic(fmt.Sprintf("bitemporal: unknown selector %d", s))
}

// RegionRange is the pair of closed query ranges sent to one region.
type RegionRange struct {
	Region  Region
	ValidLo DateTime
	ValidHi DateTime
	TransLo DateTime
	TransHi DateTime
}

// Plan is the outcome of region selection and bound substitution.
type Plan struct {
	Branch Branch
	Ranges []RegionRange
}

// PlanQuery selects the branch for b and substitutes the bounds of every
// selected region.
func PlanQuery(b Bounds) (Plan, error) {
	br, err := SelectBranch(b)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{Branch: br}
	for _, r := range branchRegions[br] {
		sel := substitution[r-1]
		rr := RegionRange{
			Region:  r,
			ValidLo: b.resolve(sel[ValidAxis][0]),
			ValidHi: b.resolve(sel[ValidAxis][1]),
			TransLo: b.resolve(sel[TransAxis][0]),
			TransHi: b.resolve(sel[TransAxis][1]),
		}
		if br == BranchC3 {
			rr.ValidLo, rr.ValidHi = Min, Max
		}
		plan.Ranges = append(plan.Ranges, rr)
	}
	return plan, nil
}

// RegionIndex names the valid and transaction time range sub-indices of one
// region.
type RegionIndex struct {
	Valid string
	Trans string
}

// Indices holds the sub-indices of the four regions; Indices[r-1] is region r.
type Indices [4]RegionIndex

// IndicesFor returns the sub-index field names a bitemporal field is stored
// under: "<field>.t<r>.v" and "<field>.t<r>.t".
func IndicesFor(field string) Indices {
	var idx Indices
	for r := range idx {
		idx[r] = RegionIndex{
			Valid: fmt.Sprintf("%s.t%d.v", field, r+1),
			Trans: fmt.Sprintf("%s.t%d.t", field, r+1),
		}
	}
	return idx
}

// Of returns the sub-indices of region r.
func (idx Indices) Of(r Region) RegionIndex { return idx[r-1] }

// Build returns the query matching b under op: the disjunction over the
// selected regions of (valid range AND transaction range), weighted by boost.
func Build(idx Indices, b Bounds, op engine.SpatialOp, boost float64) (engine.Query, Plan, error) {
	plan, err := PlanQuery(b)
	if err != nil {
		return nil, Plan{}, err
	}
	return BuildPlan(idx, plan, op, boost), plan, nil
}

// BuildPlan turns an already computed plan into a query.
func BuildPlan(idx Indices, plan Plan, op engine.SpatialOp, boost float64) engine.Query {
	regions := make([]engine.Query, 0, len(plan.Ranges))
	for _, rr := range plan.Ranges {
		ri := idx.Of(rr.Region)
		regions = append(regions, engine.And(
			engine.IntervalRange{Field: ri.Valid, Lo: rr.ValidLo.Storage(), Hi: rr.ValidHi.Storage(), Op: op},
			engine.IntervalRange{Field: ri.Trans, Lo: rr.TransLo.Storage(), Hi: rr.TransHi.Storage(), Op: op},
		))
	}
	return engine.Boosted(engine.Or(regions...), boost)
}
