package cellindex_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/metrics"
	"github.com/nonibytes/cellindex/cellindex/query"
	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/nonibytes/cellindex/cellindex/schema"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlite"
)

const peopleSchema = `{
  "fields": {
    "name":      {"type": "string", "case_sensitive": false},
    "tags":      {"type": "string"},
    "age":       {"type": "integer"},
    "active":    {"type": "boolean"},
    "addresses": {"type": "string"},
    "period": {
      "type": "bitemporal",
      "vt_from": "vt_from", "vt_to": "vt_to", "tt_from": "tt_from", "tt_to": "tt_to",
      "pattern": "2006/01/02", "now_value": "2200/12/31"
    }
  }
}`

func monotonicNow(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func peopleTable(t *testing.T) row.Table {
	t.Helper()
	table, err := row.TableSpec{
		Name: "people",
		Types: []row.TypeSpec{
			{Name: "address", Fields: []row.FieldSpec{{Name: "street", Type: "text"}, {Name: "city", Type: "text"}}},
		},
		Columns: []row.ColumnSpec{
			{Name: "id", Type: "int", Kind: row.PartitionKey},
			{Name: "name", Type: "text"},
			{Name: "tags", Type: "list<text>"},
			{Name: "age", Type: "int"},
			{Name: "active", Type: "boolean"},
			{Name: "addresses", Type: "map<text, frozen<address>>"},
			{Name: "vt_from", Type: "text"},
			{Name: "vt_to", Type: "text"},
			{Name: "tt_from", Type: "text"},
			{Name: "tt_to", Type: "text"},
		},
	}.Build()
	require.NoError(t, err)
	return table
}

func newIndex(t *testing.T, opts cellindex.IndexOptions) (*cellindex.Index, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	spec, err := schema.ParseSpec([]byte(peopleSchema))
	require.NoError(t, err)

	opts.Now = monotonicNow(time.Unix(1700000000, 0))
	ix, err := cellindex.Create(context.Background(), sqlite.New(dbPath), spec, peopleTable(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, dbPath
}

func people(t *testing.T, ix *cellindex.Index) []row.Row {
	t.Helper()
	docs := []string{
		`{"id": 1, "name": "Ada", "tags": ["math", "code"], "age": 36, "active": true,
		  "addresses": {"home": {"street": "Main St", "city": "London"}},
		  "vt_from": "2020/01/01", "vt_to": "2200/12/31", "tt_from": "2020/02/01", "tt_to": "2200/12/31"}`,
		`{"id": 2, "name": "Alan", "tags": ["code"], "age": 41, "active": true,
		  "addresses": {"work": {"street": "Main St", "city": "Manchester"}}}`,
		`{"id": 3, "name": "Grace", "tags": ["navy", "code"], "age": 85, "active": false}`,
	}
	rows := make([]row.Row, len(docs))
	for i, d := range docs {
		r, err := ix.RowFromJSON([]byte(d))
		require.NoError(t, err)
		rows[i] = r
	}
	return rows
}

func keys(page cellindex.SearchResultPage) []string {
	out := make([]string, len(page.Hits))
	for i, h := range page.Hits {
		out[i] = h.Key
	}
	return out
}

func key(id string) string { return row.KeyOf(id) }

func TestIndexSearchGetDelete(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	n, err := ix.IndexRows(ctx, people(t, ix))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	none := cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: cellindex.RankNone}}

	page, err := ix.Search(ctx, query.Match{Field: "tags", Value: "code"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1"), key("2"), key("3")}, keys(page))
	assert.Equal(t, 3, page.Total)

	page, err = ix.Search(ctx, query.Match{Field: "name", Value: "GRACE"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("3")}, keys(page))

	// map entries are searchable by logical field and by entry
	page, err = ix.Search(ctx, query.Match{Field: "addresses.street", Value: "Main St"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1"), key("2")}, keys(page))
	page, err = ix.Search(ctx, query.Match{Field: "addresses.city$work", Value: "Manchester"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("2")}, keys(page))

	// and by the name the mapper is registered under
	page, err = ix.Search(ctx, query.Match{Field: "addresses", Value: "Main St"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1"), key("2")}, keys(page))
	page, err = ix.Search(ctx, query.Match{Field: "addresses", Value: "London"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1")}, keys(page))
	page, err = ix.Search(ctx, query.Exists{Field: "addresses"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1"), key("2")}, keys(page))

	page, err = ix.Search(ctx, query.Boolean{
		Must: []query.Condition{query.Range{Field: "age", Lower: 40.0, IncludeLower: true}},
		Not:  []query.Condition{query.Match{Field: "active", Value: false}},
	}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("2")}, keys(page))

	page, err = ix.Search(ctx, query.Exists{Field: "period"}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("1")}, keys(page))

	page, err = ix.Search(ctx, query.All{}, cellindex.SearchOptions{
		Rank: cellindex.RankMode{Kind: cellindex.RankField, Field: "age", Desc: true},
		Show: cellindex.OutputFieldSelector{Kind: cellindex.ShowFields, Fields: []string{"name"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{key("3"), key("2"), key("1")}, keys(page))
	assert.JSONEq(t, `{"name":"Grace"}`, string(page.Hits[0].Data))

	// a nested field name shows its whole cell
	page, err = ix.Search(ctx, query.Match{Field: "name", Value: "Ada"}, cellindex.SearchOptions{
		Show: cellindex.OutputFieldSelector{Kind: cellindex.ShowFields, Fields: []string{"addresses.city$home"}},
	})
	require.NoError(t, err)
	require.Len(t, page.Hits, 1)
	assert.Contains(t, string(page.Hits[0].Data), `"addresses"`)
	assert.Contains(t, string(page.Hits[0].Data), `"London"`)
	assert.NotContains(t, string(page.Hits[0].Data), `"Ada"`)

	item, err := ix.Get(ctx, key("1"))
	require.NoError(t, err)
	assert.Contains(t, string(item.Data), `"Ada"`)
	assert.Equal(t, item.Meta.CreatedAtMS, item.Meta.UpdatedAtMS)

	_, err = ix.Get(ctx, key("9"))
	assert.True(t, cellindex.IsKind(err, cellindex.ErrNotFound))

	found, err := ix.Delete(ctx, key("1"))
	require.NoError(t, err)
	assert.True(t, found)
	found, err = ix.Delete(ctx, key("1"))
	require.NoError(t, err)
	assert.False(t, found)

	deleted, err := ix.DeleteWhere(ctx, query.Match{Field: "tags", Value: "navy"})
	require.NoError(t, err)
	assert.Equal(t, []string{key("3")}, deleted)

	page, err = ix.Search(ctx, query.All{}, none)
	require.NoError(t, err)
	assert.Equal(t, []string{key("2")}, keys(page))
}

func TestReindexReplacesValues(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	r, err := ix.RowFromMap(map[string]any{"id": 1, "name": "Ada", "tags": []any{"math"}})
	require.NoError(t, err)
	_, err = ix.IndexRow(ctx, r)
	require.NoError(t, err)
	first, err := ix.Get(ctx, key("1"))
	require.NoError(t, err)

	r, err = ix.RowFromMap(map[string]any{"id": 1, "name": "Ada", "tags": []any{"code"}, "nickname_unused": nil})
	require.Error(t, err, "unknown columns are rejected")

	r, err = ix.RowFromMap(map[string]any{"id": 1, "name": "Ada", "tags": []any{"code"}})
	require.NoError(t, err)
	enc, err := ix.IndexRow(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "tags"}, enc.Visited)

	page, err := ix.Search(ctx, query.Match{Field: "tags", Value: "math"}, cellindex.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Hits)

	second, err := ix.Get(ctx, key("1"))
	require.NoError(t, err)
	assert.Equal(t, first.Meta.CreatedAtMS, second.Meta.CreatedAtMS)
	assert.Greater(t, second.Meta.UpdatedAtMS, first.Meta.UpdatedAtMS)
}

func TestIndexRowsAllOrNothing(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	rows := people(t, ix)
	rows = append(rows, row.Row{Cells: []row.Cell{{Name: "name", Type: row.Scalar(row.Text), Value: "keyless"}}})
	_, err := ix.IndexRows(ctx, rows)
	require.Error(t, err)
	assert.True(t, cellindex.IsKind(err, cellindex.ErrData))

	page, err := ix.Search(ctx, query.All{}, cellindex.SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, page.Hits)
}

func TestPaginationWithCursor(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	var rows []row.Row
	for i := 1; i <= 5; i++ {
		r, err := ix.RowFromMap(map[string]any{"id": i, "tags": []any{"x"}})
		require.NoError(t, err)
		rows = append(rows, r)
	}
	_, err := ix.IndexRows(ctx, rows)
	require.NoError(t, err)

	cond := query.Match{Field: "tags", Value: "x"}
	opts := cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: cellindex.RankNone}, Limit: 2}
	var got []string
	var cursor string
	for {
		opts.After = cursor
		page, err := ix.Search(ctx, cond, opts)
		require.NoError(t, err)
		got = append(got, keys(page)...)
		if !page.HasMore {
			break
		}
		require.NotEmpty(t, page.NextCursor)
		cursor = page.NextCursor
		if len(got) == 2 {
			// a cursor is bound to its query
			_, err := ix.Search(ctx, query.All{}, cellindex.SearchOptions{Rank: opts.Rank, Limit: 2, After: cursor})
			assert.True(t, cellindex.IsKind(err, cellindex.ErrPredicate))
		}
	}
	assert.Equal(t, []string{key("1"), key("2"), key("3"), key("4"), key("5")}, got)
}

func TestQueryErrors(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	_, err := ix.Search(ctx, query.Match{Field: "nickname", Value: "x"}, cellindex.SearchOptions{})
	assert.True(t, cellindex.IsKind(err, cellindex.ErrUnknownField))

	_, err = ix.Search(ctx, query.Range{Field: "name", Lower: "a"}, cellindex.SearchOptions{})
	assert.True(t, cellindex.IsKind(err, cellindex.ErrTypeMismatch))

	_, err = ix.Search(ctx, query.All{}, cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: cellindex.RankField, Field: "period"}})
	assert.True(t, cellindex.IsKind(err, cellindex.ErrTypeMismatch))

	_, err = ix.Search(ctx, query.All{}, cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: "random"}})
	assert.True(t, cellindex.IsKind(err, cellindex.ErrPredicate))

	_, err = ix.Stats(ctx, "name", nil)
	assert.True(t, cellindex.IsKind(err, cellindex.ErrTypeMismatch))

	_, err = ix.DiscoverValues(ctx, "age", nil, 10)
	assert.True(t, cellindex.IsKind(err, cellindex.ErrTypeMismatch))
}

func TestDiscoverAndStats(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()
	_, err := ix.IndexRows(ctx, people(t, ix))
	require.NoError(t, err)

	values, err := ix.DiscoverValues(ctx, "tags", nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []cellindex.ValueCount{{Value: "code", Count: 3}, {Value: "math", Count: 1}, {Value: "navy", Count: 1}}, values)

	values, err = ix.DiscoverValues(ctx, "tags", query.Match{Field: "active", Value: true}, 1)
	require.NoError(t, err)
	assert.Equal(t, []cellindex.ValueCount{{Value: "code", Count: 2}}, values)

	st, err := ix.Stats(ctx, "age", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Count)
	assert.Equal(t, 36.0, *st.Min)
	assert.Equal(t, 85.0, *st.Max)
	assert.Equal(t, 41.0, *st.Median)

	st, err = ix.Stats(ctx, "age", query.Match{Field: "active", Value: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.Count)
	assert.Equal(t, 38.5, *st.Avg)

	fields, err := ix.DiscoverFields(ctx)
	require.NoError(t, err)
	byName := make(map[string]cellindex.FieldOverview)
	for _, f := range fields {
		byName[f.Field] = f
	}
	assert.Equal(t, uint64(3), byName["tags"].DocCount)
	assert.Equal(t, "string", byName["tags"].Type)
	assert.Equal(t, "addresses", byName["addresses.street"].Mapper)
	assert.Equal(t, uint64(2), byName["addresses"].DocCount)
	assert.Equal(t, "period", byName["period.t1.v"].Mapper)
}

func TestExplain(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ex, err := ix.Explain(context.Background(), query.Boolean{
		Must:   []query.Condition{query.Match{Field: "tags", Value: "code"}},
		Should: []query.Condition{query.Prefix{Field: "name", Value: "Al"}},
	}, cellindex.RankMode{})
	require.NoError(t, err)
	assert.Contains(t, ex.Query, `tags:"code"`)
	assert.Contains(t, ex.SQL, "WITH ")
	assert.NotEmpty(t, ex.Steps)
	assert.Contains(t, ex.Args, "code")
	assert.Contains(t, ex.Args, "al")
}

func TestReopenAndApplySchema(t *testing.T) {
	ix, dbPath := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()
	_, err := ix.IndexRows(ctx, people(t, ix))
	require.NoError(t, err)

	spec, err := schema.ParseSpec([]byte(`{"fields": {"name": {"type": "string", "case_sensitive": false}}}`))
	require.NoError(t, err)
	require.NoError(t, ix.ApplySchema(ctx, spec))
	_, err = ix.Search(ctx, query.Match{Field: "tags", Value: "code"}, cellindex.SearchOptions{})
	assert.True(t, cellindex.IsKind(err, cellindex.ErrUnknownField))

	bad, err := schema.ParseSpec([]byte(`{"fields": {"nickname": {"type": "string"}}}`))
	require.NoError(t, err)
	err = ix.ApplySchema(ctx, bad)
	assert.True(t, cellindex.IsKind(err, cellindex.ErrConfig))
	assert.Equal(t, []string{"name"}, ix.Schema().Names())
	require.NoError(t, ix.Close())

	opts := cellindex.DefaultIndexOptions()
	reopened, err := cellindex.Open(ctx, sqlite.New(dbPath), opts)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, []string{"name"}, reopened.Schema().Names())
	assert.Equal(t, "people", reopened.Table().Name)

	// rows indexed under the old schema keep their values
	page, err := reopened.Search(ctx, query.Match{Field: "name", Value: "Ada"}, cellindex.SearchOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{key("1")}, keys(page))
	require.NoError(t, reopened.Optimize(ctx))
}

func TestBatchAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	opts := cellindex.DefaultIndexOptions()
	opts.Metrics = m
	ix, _ := newIndex(t, opts)
	ctx := context.Background()

	b := cellindex.NewBatch()
	for _, r := range people(t, ix) {
		require.NoError(t, b.Put(r))
	}
	require.NoError(t, b.Delete(key("2")))
	require.NoError(t, b.Delete(key("42")))
	assert.Error(t, b.Delete(""))
	assert.Equal(t, 5, b.Len())

	n, err := b.Execute(ctx, ix)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	page, err := ix.Search(ctx, query.All{}, cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: cellindex.RankNone}})
	require.NoError(t, err)
	assert.Equal(t, []string{key("1"), key("3")}, keys(page))

	families, err := reg.Gather()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				got[f.GetName()] += c.GetValue()
			}
		}
	}
	assert.Equal(t, 3.0, got["cellindex_rows_indexed_total"])
	assert.Equal(t, 1.0, got["cellindex_rows_deleted_total"])
	assert.Equal(t, 1.0, got["cellindex_conditions_built_total"])
}

func TestBitemporalSearch(t *testing.T) {
	ix, _ := newIndex(t, cellindex.DefaultIndexOptions())
	ctx := context.Background()

	// one fact per region; 2200/12/31 reads as now
	docs := []string{
		`{"id": 1, "vt_from": "2020/01/01", "vt_to": "2200/12/31", "tt_from": "2020/02/01", "tt_to": "2200/12/31"}`,
		`{"id": 2, "vt_from": "2020/01/01", "vt_to": "2020/06/01", "tt_from": "2020/02/01", "tt_to": "2200/12/31"}`,
		`{"id": 3, "vt_from": "2020/01/01", "vt_to": "2200/12/31", "tt_from": "2020/02/01", "tt_to": "2020/03/01"}`,
		`{"id": 4, "vt_from": "2020/01/01", "vt_to": "2020/06/01", "tt_from": "2020/02/01", "tt_to": "2020/03/01"}`,
	}
	rows := make([]row.Row, len(docs))
	for i, d := range docs {
		r, err := ix.RowFromJSON([]byte(d))
		require.NoError(t, err)
		rows[i] = r
	}
	_, err := ix.IndexRows(ctx, rows)
	require.NoError(t, err)

	all := []string{key("1"), key("2"), key("3"), key("4")}
	none := cellindex.SearchOptions{Rank: cellindex.RankMode{Kind: cellindex.RankNone}}
	ops := []string{"contains", "intersects", "is_within"}

	tests := []struct {
		name   string
		cond   query.Bitemporal
		expect map[string][]string
	}{
		{
			name: "A without bounds",
			cond: query.Bitemporal{},
			expect: map[string][]string{
				"contains":   all,
				"intersects": all,
				"is_within":  {},
			},
		},
		{
			name: "A bounded",
			cond: query.Bitemporal{VtFrom: "2020/01/01", VtTo: "2020/12/31", TtFrom: "2020/01/01", TtTo: "2020/12/31"},
			expect: map[string][]string{
				"contains":   all,
				"intersects": all,
				"is_within":  {},
			},
		},
		{
			name: "B transaction time before valid time",
			cond: query.Bitemporal{VtFrom: "2020/04/01", VtTo: "2020/04/01", TtFrom: "2020/02/10", TtTo: "2020/02/20"},
			expect: map[string][]string{
				"contains":   {},
				"intersects": {key("2"), key("4")},
				"is_within":  {key("4")},
			},
		},
		{
			name: "C1 as of now",
			cond: query.Bitemporal{VtFrom: "2020/04/01", VtTo: "2020/04/01", TtFrom: "2200/12/31", TtTo: "2200/12/31"},
			expect: map[string][]string{
				"contains":   {key("1")},
				"intersects": {key("1"), key("2")},
				"is_within":  {},
			},
		},
		{
			name: "C2 now with transaction time before valid time",
			cond: query.Bitemporal{VtFrom: "2020/04/01", VtTo: "2020/04/01", TtFrom: "2200/12/31", TtTo: "2020/02/15"},
			expect: map[string][]string{
				"contains":   {},
				"intersects": {key("2")},
				"is_within":  {},
			},
		},
		{
			name: "C3 current facts",
			cond: query.Bitemporal{TtFrom: "2200/12/31"},
			expect: map[string][]string{
				"contains":   {key("1"), key("2")},
				"intersects": {key("1"), key("2")},
				"is_within":  {},
			},
		},
	}
	for _, tt := range tests {
		for _, op := range ops {
			t.Run(tt.name+"/"+op, func(t *testing.T) {
				cond := tt.cond
				cond.Field = "period"
				cond.Operation = op
				page, err := ix.Search(ctx, cond, none)
				require.NoError(t, err)
				assert.Equal(t, tt.expect[op], keys(page))
			})
		}
	}

	// contains is the default operation
	page, err := ix.Search(ctx, query.Bitemporal{Field: "period"}, none)
	require.NoError(t, err)
	assert.Equal(t, all, keys(page))
}
