package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/cellindex/cellindex"
	"github.com/nonibytes/cellindex/cellindex/query"
)

func TestParseRankMode(t *testing.T) {
	tests := []struct {
		in   string
		want cellindex.RankMode
	}{
		{"", cellindex.RankMode{Kind: cellindex.RankDefault}},
		{"recency", cellindex.RankMode{Kind: cellindex.RankRecency}},
		{"none", cellindex.RankMode{Kind: cellindex.RankNone}},
		{"field:age", cellindex.RankMode{Kind: cellindex.RankField, Field: "age"}},
		{"field:age:desc", cellindex.RankMode{Kind: cellindex.RankField, Field: "age", Desc: true}},
		{"field:address.city:asc", cellindex.RankMode{Kind: cellindex.RankField, Field: "address.city"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRankMode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"field:", "score", "field:age:up"} {
		_, err := ParseRankMode(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseShow(t *testing.T) {
	assert.Equal(t, cellindex.ShowNone, ParseShow("").Kind)
	assert.Equal(t, cellindex.ShowAll, ParseShow("all").Kind)
	sel := ParseShow("name, age,")
	assert.Equal(t, cellindex.ShowFields, sel.Kind)
	assert.Equal(t, []string{"name", "age"}, sel.Fields)
}

func TestParseWhere(t *testing.T) {
	cond, err := parseWhere("  ")
	require.NoError(t, err)
	assert.Nil(t, cond)

	cond, err = parseWhere(`{"type": "all"}`)
	require.NoError(t, err)
	assert.Equal(t, query.TypeAll, cond.Type())

	path := filepath.Join(t.TempDir(), "cond.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type": "exists", "field": "name"}`), 0o644))
	cond, err = parseWhere("@" + path)
	require.NoError(t, err)
	assert.Equal(t, query.TypeExists, cond.Type())

	_, err = parseWhere(`{"type": "all", "bogus": 1}`)
	assert.Error(t, err)
}
