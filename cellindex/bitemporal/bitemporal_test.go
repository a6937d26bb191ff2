package bitemporal

import (
	"math"
	"testing"
	"time"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(t *testing.T, s string) DateTime {
	t.Helper()
	tm, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return FromTime(tm)
}

func TestSentinelOrdering(t *testing.T) {
	d := FromTime(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, -1, Min.Compare(d))
	assert.Equal(t, 1, Max.Compare(d))
	assert.Equal(t, 1, Now.Compare(Max))
	assert.True(t, Now.IsNow())
	assert.False(t, Max.IsNow())
	assert.Equal(t, int64(Max), Now.Storage())
	assert.Equal(t, "now", Now.String())
}

func TestParser(t *testing.T) {
	p, err := NewParser("2006/01/02", "2200/12/31")
	require.NoError(t, err)

	v, err := p.Parse("2020/02/01")
	require.NoError(t, err)
	assert.Equal(t, day(t, "2020-02-01"), v)

	v, err = p.Parse("2200/12/31")
	require.NoError(t, err)
	assert.True(t, v.IsNow())

	for in, want := range map[string]DateTime{"min": Min, "MAX": Max, "now": Now} {
		v, err := p.Parse(in)
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	v, err = p.Parse(float64(1000))
	require.NoError(t, err)
	assert.Equal(t, DateTime(1000), v)

	v, err = p.Parse("2020-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, day(t, "2020-01-01"), v)

	_, err = p.Parse("yesterday")
	assert.Error(t, err)
	_, err = p.Parse(true)
	assert.Error(t, err)
	_, err = NewParser("", "not a date")
	assert.Error(t, err)
}

func TestParserRejectsOutOfRangeEpochs(t *testing.T) {
	p, err := NewParser("", "")
	require.NoError(t, err)

	for _, in := range []any{
		float64(1e19), float64(-1e19), float64(math.MaxInt64), float64(math.MinInt64),
		int64(math.MaxInt64), int64(math.MaxInt64 - 1), int64(math.MinInt64),
		"9223372036854775806",
	} {
		_, err := p.Parse(in)
		assert.Error(t, err, "%v", in)
	}

	v, err := p.Parse(int64(math.MaxInt64 - 2))
	require.NoError(t, err)
	assert.Less(t, v, Max)
	v, err = p.Parse(float64(-1000))
	require.NoError(t, err)
	assert.Equal(t, DateTime(-1000), v)
}

func regionsOf(plan Plan) []Region {
	var out []Region
	for _, rr := range plan.Ranges {
		out = append(out, rr.Region)
	}
	return out
}

func TestBoundaryScenarioUnbounded(t *testing.T) {
	plan, err := PlanQuery(Bounds{VtFrom: Min, VtTo: Max, TtFrom: Now, TtTo: Max})
	require.NoError(t, err)
	assert.Equal(t, BranchC3, plan.Branch)
	assert.Equal(t, []Region{1, 2}, regionsOf(plan))
	for _, rr := range plan.Ranges {
		assert.Equal(t, Min, rr.ValidLo)
		assert.Equal(t, Max, rr.ValidHi)
		assert.Equal(t, Min, rr.TransLo)
		assert.Equal(t, Max, rr.TransHi)
	}
}

func TestBoundaryScenarioConcreteBeforeValid(t *testing.T) {
	b := Bounds{
		VtFrom: day(t, "2020-01-01"),
		VtTo:   day(t, "2020-06-01"),
		TtFrom: day(t, "2020-02-01"),
		TtTo:   day(t, "2020-03-01"),
	}
	// ttTo is after vtFrom here, so the branch is decided by the comparison.
	br, err := SelectBranch(b)
	require.NoError(t, err)
	assert.Equal(t, BranchA, br)

	b.VtFrom = day(t, "2020-04-01")
	plan, err := PlanQuery(b)
	require.NoError(t, err)
	assert.Equal(t, BranchB, plan.Branch)
	assert.Equal(t, []Region{2, 4}, regionsOf(plan))

	r4 := plan.Ranges[1]
	assert.Equal(t, b.VtFrom, r4.ValidLo)
	assert.Equal(t, b.VtTo, r4.ValidHi)
	assert.Equal(t, b.TtFrom, r4.TransLo)
	assert.Equal(t, b.TtTo, r4.TransHi)
}

func TestBoundaryScenarioNowBeforeValid(t *testing.T) {
	b := Bounds{
		VtFrom: day(t, "2020-04-01"),
		VtTo:   day(t, "2020-06-01"),
		TtFrom: Now,
		TtTo:   day(t, "2020-03-01"),
	}
	plan, err := PlanQuery(b)
	require.NoError(t, err)
	assert.Equal(t, BranchC2, plan.Branch)
	require.Equal(t, []Region{2}, regionsOf(plan))
	assert.Equal(t, b.VtFrom, plan.Ranges[0].ValidLo)
	assert.Equal(t, Min, plan.Ranges[0].TransLo)
	assert.Equal(t, b.TtTo, plan.Ranges[0].TransHi)

	b.VtFrom = day(t, "2020-01-01")
	br, err := SelectBranch(b)
	require.NoError(t, err)
	assert.Equal(t, BranchC1, br)
}

func TestTransactionFromAndToNow(t *testing.T) {
	b := Bounds{VtFrom: day(t, "2020-01-01"), VtTo: day(t, "2020-06-01"), TtFrom: Now, TtTo: Now}
	plan, err := PlanQuery(b)
	require.NoError(t, err)
	assert.Equal(t, BranchC1, plan.Branch)
	assert.Equal(t, []Region{1, 2}, regionsOf(plan))
	assert.Equal(t, Min, plan.Ranges[0].ValidLo)
	assert.Equal(t, b.VtTo, plan.Ranges[0].ValidHi)
	assert.Equal(t, Now, plan.Ranges[0].TransHi)

	b.VtFrom, b.VtTo = Min, Max
	br, err := SelectBranch(b)
	require.NoError(t, err)
	assert.Equal(t, BranchC3, br)
}

func TestRegionThreeUsesLaterTransactionStart(t *testing.T) {
	b := Bounds{
		VtFrom: day(t, "2020-01-01"),
		VtTo:   day(t, "2020-06-01"),
		TtFrom: day(t, "2019-01-01"),
		TtTo:   day(t, "2021-01-01"),
	}
	plan, err := PlanQuery(b)
	require.NoError(t, err)
	require.Equal(t, BranchA, plan.Branch)
	r3 := plan.Ranges[2]
	assert.Equal(t, Region(3), r3.Region)
	assert.Equal(t, Min, r3.ValidLo)
	assert.Equal(t, b.VtFrom, r3.TransLo)

	b.TtFrom = day(t, "2020-03-01")
	plan, err = PlanQuery(b)
	require.NoError(t, err)
	assert.Equal(t, b.TtFrom, plan.Ranges[2].TransLo)
}

func TestBranchesExhaustiveAndExclusive(t *testing.T) {
	values := []DateTime{Min, 0, 1_000, 2_000, Max, Now}
	for _, vf := range values {
		for _, vt := range values {
			for _, tf := range values {
				for _, tt := range values {
					b := Bounds{VtFrom: vf, VtTo: vt, TtFrom: tf, TtTo: tt}
					fired := 0
					for _, br := range Branches {
						if br.guard(b) {
							fired++
						}
					}
					require.Equal(t, 1, fired, "bounds %+v", b)
					_, err := PlanQuery(b)
					require.NoError(t, err)
				}
			}
		}
	}
}

func TestSubstitutionTableIsTotal(t *testing.T) {
	b := Bounds{VtFrom: 10, VtTo: 20, TtFrom: 30, TtTo: 40}
	for r := range substitution {
		for axis := range substitution[r] {
			for end := range substitution[r][axis] {
				assert.NotPanics(t, func() { b.resolve(substitution[r][axis][end]) })
			}
		}
	}
	for _, br := range Branches {
		for _, r := range br.Regions() {
			assert.True(t, r >= 1 && r <= 4)
		}
	}
}

func TestBuildComposesRegions(t *testing.T) {
	idx := IndicesFor("history")
	assert.Equal(t, RegionIndex{Valid: "history.t3.v", Trans: "history.t3.t"}, idx.Of(3))

	b := Bounds{VtFrom: 100, VtTo: 200, TtFrom: Now, TtTo: 50}
	q, plan, err := Build(idx, b, engine.Intersects, 2)
	require.NoError(t, err)
	assert.Equal(t, BranchC2, plan.Branch)

	top, ok := q.(engine.Bool)
	require.True(t, ok)
	assert.Equal(t, 2.0, top.Boost)
	require.Len(t, top.Should, 1)
	region := top.Should[0].(engine.Bool)
	require.Len(t, region.Must, 2)
	assert.Equal(t, engine.IntervalRange{Field: "history.t2.v", Lo: 100, Hi: 200, Op: engine.Intersects}, region.Must[0])
	assert.Equal(t, engine.IntervalRange{Field: "history.t2.t", Lo: int64(Min), Hi: 50, Op: engine.Intersects}, region.Must[1])
}

func TestFactRegion(t *testing.T) {
	cases := []struct {
		fact Fact
		want Region
	}{
		{Fact{VtFrom: 1, VtTo: Now, TtFrom: 1, TtTo: Now}, 1},
		{Fact{VtFrom: 1, VtTo: 5, TtFrom: 1, TtTo: Now}, 2},
		{Fact{VtFrom: 1, VtTo: Now, TtFrom: 1, TtTo: 5}, 3},
		{Fact{VtFrom: 1, VtTo: 5, TtFrom: 1, TtTo: 5}, 4},
	}
	idx := IndicesFor("h")
	for _, tc := range cases {
		doc := engine.NewDocument("k", nil)
		r, err := Encode(doc, idx, tc.fact)
		require.NoError(t, err)
		assert.Equal(t, tc.want, r)
		ri := idx.Of(tc.want)
		require.Len(t, doc.Ranges[ri.Valid], 1)
		require.Len(t, doc.Ranges[ri.Trans], 1)
		// open axes collapse to their start
		wantVt, wantTt := tc.fact.VtTo, tc.fact.TtTo
		if wantVt.IsNow() {
			wantVt = tc.fact.VtFrom
		}
		if wantTt.IsNow() {
			wantTt = tc.fact.TtFrom
		}
		assert.Equal(t, engine.Interval{Lo: 1, Hi: int64(wantVt)}, doc.Ranges[ri.Valid][0])
		assert.Equal(t, engine.Interval{Lo: 1, Hi: int64(wantTt)}, doc.Ranges[ri.Trans][0])
	}

	_, err := Encode(engine.NewDocument("k", nil), idx, Fact{VtFrom: 5, VtTo: 1, TtFrom: 1, TtTo: 2})
	assert.ErrorContains(t, err, "vt_from")
	_, err = Encode(engine.NewDocument("k", nil), idx, Fact{VtFrom: 1, VtTo: 2, TtFrom: Now, TtTo: 2})
	assert.ErrorContains(t, err, "tt_from")
}
