package ops

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/nonibytes/cellindex/cellindex/engine"
	"github.com/nonibytes/cellindex/cellindex/planner"
	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlite"
)

type fixture struct {
	db      *sql.DB
	adapter *sqlite.Adapter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	a := sqlite.New(filepath.Join(t.TempDir(), "ops.db"))
	db, err := a.Connect(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, a.CreateIndex(ctx, db, storage.IndexMeta{SchemaJSON: []byte(`{}`), TableJSON: []byte(`{}`)}))
	return &fixture{db: db, adapter: a}
}

func (f *fixture) put(t *testing.T, doc *engine.Document, nowMS int64) int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()
	id, _, err := ExecutePut(ctx, tx, f.adapter.SQL(), doc, nowMS)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

func (f *fixture) search(t *testing.T, q engine.Query, opts SearchOptions) *SearchResult {
	t.Helper()
	b := sqlbuilder.New(f.adapter.PlaceholderStyle())
	compiled, err := planner.Compile(b, q)
	require.NoError(t, err)
	res, err := Search(context.Background(), f.db, compiled, b, opts)
	require.NoError(t, err)
	return res
}

func keys(res *SearchResult) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Key
	}
	return out
}

func person(key, name string, age float64, tags ...string) *engine.Document {
	d := engine.NewDocument(key, []byte(`{"id":"`+key+`","name":"`+name+`"}`))
	d.AddKeyword("name", name)
	d.AddNumber("age", age)
	for _, tag := range tags {
		d.AddKeyword("tags", tag)
	}
	d.AddBool("active", age < 50)
	d.AddRange("period.t1.v", 10, 20)
	return d
}

func TestPutSearchDelete(t *testing.T) {
	f := newFixture(t)
	f.put(t, person("1", "ada", 36, "math", "code"), 1000)
	f.put(t, person("2", "alan", 41, "code"), 2000)
	f.put(t, person("3", "grace", 85, "navy", "code", "code"), 3000)

	res := f.search(t, engine.Term{Field: "tags", Value: "code"}, SearchOptions{Rank: planner.RankMode{Kind: planner.RankNone}})
	assert.Equal(t, []string{"1", "2", "3"}, keys(res))
	assert.Equal(t, 3, res.Total)

	lo := 40.0
	res = f.search(t, engine.And(
		engine.NumberRange{Field: "age", Lo: &lo, IncludeLo: true},
		engine.BoolTerm{Field: "active", Value: true},
	), SearchOptions{})
	assert.Equal(t, []string{"2"}, keys(res))
	assert.Equal(t, 2.0, res.Hits[0].Score)

	res = f.search(t, engine.IntervalRange{Field: "period.t1.v", Lo: 5, Hi: 25, Op: engine.Contains}, SearchOptions{})
	assert.Equal(t, 3, res.Total)
	res = f.search(t, engine.IntervalRange{Field: "period.t1.v", Lo: 12, Hi: 18, Op: engine.Contains}, SearchOptions{})
	assert.Equal(t, 0, res.Total)
	res = f.search(t, engine.IntervalRange{Field: "period.t1.v", Lo: 12, Hi: 18, Op: engine.IsWithin}, SearchOptions{})
	assert.Equal(t, 3, res.Total)

	res = f.search(t, engine.Prefix{Field: "name", Prefix: "al"}, SearchOptions{Show: OutputFieldSelector{Kind: ShowFields, Fields: []string{"name"}}})
	require.Len(t, res.Hits, 1)
	assert.JSONEq(t, `{"name":"alan"}`, string(res.Hits[0].Data))

	// replacing a row drops its old index rows
	f.put(t, person("3", "grace", 85, "navy"), 4000)
	res = f.search(t, engine.Term{Field: "tags", Value: "code"}, SearchOptions{Rank: planner.RankMode{Kind: planner.RankNone}})
	assert.Equal(t, []string{"1", "2"}, keys(res))

	ctx := context.Background()
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	found, err := DeleteByKey(ctx, tx, f.adapter.SQL(), "1")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = DeleteByKey(ctx, tx, f.adapter.SQL(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, tx.Commit())

	res = f.search(t, engine.MatchAll{}, SearchOptions{Rank: planner.RankMode{Kind: planner.RankNone}})
	assert.Equal(t, []string{"2", "3"}, keys(res))
}

func TestScoringAndRanking(t *testing.T) {
	f := newFixture(t)
	f.put(t, person("1", "ada", 36, "math"), 1000)
	f.put(t, person("2", "alan", 41, "math", "code"), 2000)
	f.put(t, person("3", "grace", 85), 3000)

	res := f.search(t, engine.Or(
		engine.Term{Field: "tags", Value: "math"},
		engine.Boosted(engine.Term{Field: "tags", Value: "code"}, 3),
	), SearchOptions{})
	assert.Equal(t, []string{"2", "1"}, keys(res))
	assert.Equal(t, []float64{4, 1}, []float64{res.Hits[0].Score, res.Hits[1].Score})

	res = f.search(t, engine.MatchAll{}, SearchOptions{Rank: planner.RankMode{Kind: planner.RankRecency}})
	assert.Equal(t, []string{"3", "2", "1"}, keys(res))

	res = f.search(t, engine.MatchAll{}, SearchOptions{Rank: planner.RankMode{
		Kind: planner.RankField, Field: "tags", Values: engine.KeywordValues}})
	// "2" ranks by its smallest tag, code; "3" has no tags and comes last
	assert.Equal(t, []string{"2", "1", "3"}, keys(res))

	res = f.search(t, engine.MatchAll{}, SearchOptions{Rank: planner.RankMode{
		Kind: planner.RankField, Field: "age", Values: engine.NumberValues, Desc: true}})
	assert.Equal(t, []string{"3", "2", "1"}, keys(res))

	res = f.search(t, engine.Bool{MustNot: []engine.Query{engine.Term{Field: "tags", Value: "math"}}}, SearchOptions{})
	assert.Equal(t, []string{"3"}, keys(res))
}

func TestRankByMultiValuedField(t *testing.T) {
	f := newFixture(t)
	docs := []struct {
		key    string
		tags   []string
		scores []float64
	}{
		{"a", []string{"y", "b"}, []float64{5, 1}},
		{"b", []string{"m", "a"}, []float64{3}},
		{"c", []string{"z", "c"}, []float64{4, 6}},
		{"d", []string{"b"}, nil},
		{"e", nil, nil},
	}
	for i, d := range docs {
		doc := engine.NewDocument(d.key, []byte(`{}`))
		for _, tag := range d.tags {
			doc.AddKeyword("tags", tag)
		}
		for _, score := range d.scores {
			doc.AddNumber("score", score)
		}
		f.put(t, doc, int64(i))
	}

	rank := func(field string, values engine.ValueKind, desc bool) []string {
		res := f.search(t, engine.MatchAll{}, SearchOptions{Rank: planner.RankMode{
			Kind: planner.RankField, Field: field, Values: values, Desc: desc}})
		return keys(res)
	}

	// ascending uses each row's smallest value, ties fall back to insertion order
	assert.Equal(t, []string{"b", "a", "d", "c", "e"}, rank("tags", engine.KeywordValues, false))
	// descending uses the largest
	assert.Equal(t, []string{"c", "a", "b", "d", "e"}, rank("tags", engine.KeywordValues, true))

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, rank("score", engine.NumberValues, false))
	assert.Equal(t, []string{"c", "a", "b", "d", "e"}, rank("score", engine.NumberValues, true))

	// the same query always yields the same order
	for i := 0; i < 3; i++ {
		assert.Equal(t, []string{"c", "a", "b", "d", "e"}, rank("tags", engine.KeywordValues, true))
	}
}

func TestPagination(t *testing.T) {
	f := newFixture(t)
	for i, name := range []string{"a", "b", "c", "d", "e"} {
		f.put(t, person(name, name, float64(i), "x"), int64(i))
	}
	opts := SearchOptions{Rank: planner.RankMode{Kind: planner.RankNone}, Limit: 2, QueryHash: "q1"}

	var got []string
	for page := 0; ; page++ {
		require.Less(t, page, 5)
		res := f.search(t, engine.Term{Field: "tags", Value: "x"}, opts)
		assert.Equal(t, 5, res.Total)
		got = append(got, keys(res)...)
		if !res.HasMore {
			assert.Empty(t, res.NextCursor)
			break
		}
		opts.After = res.NextCursor
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	tok, err := EncodeCursor(CursorPosition{Offset: 2, Hash: "q1"})
	require.NoError(t, err)
	_, err = DecodeCursor(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidCursor)
	_, err = DecodeCursor("%%%", "q1")
	assert.ErrorIs(t, err, ErrInvalidCursor)
	pos, err := DecodeCursor(tok, "q1")
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Offset)
}

func TestDocFreqAndDiscover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.put(t, person("1", "ada", 30, "math", "code"), 1)
	f.put(t, person("2", "alan", 40, "code"), 2)
	f.put(t, person("3", "grace", 50, "code", "navy"), 3)

	b := sqlbuilder.New(f.adapter.PlaceholderStyle())
	values, err := DiscoverValues(ctx, f.db, b, "tags", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{{"code", 3}, {"math", 1}, {"navy", 1}}, values)

	// filtered by a compiled query
	b = sqlbuilder.New(f.adapter.PlaceholderStyle())
	lo := 35.0
	filter, err := planner.Compile(b, engine.NumberRange{Field: "age", Lo: &lo})
	require.NoError(t, err)
	values, err = DiscoverValues(ctx, f.db, b, "tags", filter, 10)
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{{"code", 2}, {"navy", 1}}, values)

	// deletes keep doc_freq in step
	tx, err := f.db.BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = DeleteByKey(ctx, tx, f.adapter.SQL(), "3")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	values, err = DiscoverValues(ctx, f.db, sqlbuilder.New(f.adapter.PlaceholderStyle()), "tags", nil, 10)
	require.NoError(t, err)
	assert.Equal(t, []ValueCount{{"code", 2}, {"math", 1}}, values)

	fields, err := DiscoverFields(ctx, f.db, f.adapter.PlaceholderStyle(), func(field string) (FieldInfo, bool) {
		switch field {
		case "tags":
			return FieldInfo{Mapper: "tags", Type: "string", Values: engine.KeywordValues}, true
		case "age":
			return FieldInfo{Mapper: "age", Type: "integer", Values: engine.NumberValues}, true
		case "active":
			return FieldInfo{Mapper: "active", Type: "boolean", Values: engine.BoolValues}, true
		}
		return FieldInfo{}, false
	})
	require.NoError(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "active", fields[0].Field)
	assert.Equal(t, []string{"true: 2, false: 0"}, fields[0].Examples)
	assert.Equal(t, "age", fields[1].Field)
	assert.Equal(t, []string{"min: 30", "max: 40"}, fields[1].Examples)
	assert.Equal(t, "tags", fields[2].Field)
	assert.Equal(t, uint64(2), fields[2].DocCount)
	require.NotNil(t, fields[2].Unique)
	assert.Equal(t, uint64(2), *fields[2].Unique)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, age := range []float64{10, 20, 30, 40} {
		f.put(t, person(string(rune('a'+i)), "p", age, "x"), int64(i))
	}

	st, err := Stats(ctx, f.db, sqlbuilder.New(f.adapter.PlaceholderStyle()), "field_number", "age", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), st.Count)
	assert.Equal(t, 10.0, *st.Min)
	assert.Equal(t, 40.0, *st.Max)
	assert.Equal(t, 25.0, *st.Avg)
	assert.Equal(t, 25.0, *st.Median)

	b := sqlbuilder.New(f.adapter.PlaceholderStyle())
	lo := 15.0
	filter, err := planner.Compile(b, engine.NumberRange{Field: "age", Lo: &lo})
	require.NoError(t, err)
	st, err = Stats(ctx, f.db, b, "field_number", "age", filter)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Count)
	assert.Equal(t, 30.0, *st.Median)

	st, err = Stats(ctx, f.db, sqlbuilder.New(f.adapter.PlaceholderStyle()), "field_number", "missing", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), st.Count)
	assert.Nil(t, st.Median)

	_, err = Stats(ctx, f.db, sqlbuilder.New(f.adapter.PlaceholderStyle()), "field_bool", "active", nil)
	require.Error(t, err)
}

func TestDeleteWhere(t *testing.T) {
	f := newFixture(t)
	f.put(t, person("1", "ada", 30, "math"), 1)
	f.put(t, person("2", "alan", 40, "code"), 2)

	b := sqlbuilder.New(f.adapter.PlaceholderStyle())
	compiled, err := planner.Compile(b, engine.Term{Field: "tags", Value: "math"})
	require.NoError(t, err)
	deleted, err := DeleteWhere(context.Background(), f.db, f.adapter.SQL(), compiled, b.Args())
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, deleted)

	res := f.search(t, engine.MatchAll{}, SearchOptions{})
	assert.Equal(t, []string{"2"}, keys(res))
}
