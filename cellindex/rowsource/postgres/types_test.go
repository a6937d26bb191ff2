package postgres

import (
	"math/big"
	"net/netip"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nonibytes/cellindex/cellindex/row"
)

func lookup(types map[string][]attribute) compositeLookup {
	return func(udtName string) ([]attribute, bool, error) {
		attrs, ok := types[udtName]
		return attrs, ok, nil
	}
}

var addressType = map[string][]attribute{
	"address": {{Name: "street", UDTName: "text"}, {Name: "zip", UDTName: "int4"}},
}

func TestMapType(t *testing.T) {
	composites := lookup(addressType)
	cases := map[string]string{
		"int4":        "int",
		"varchar":     "varchar",
		"timestamptz": "timestamp",
		"_text":       "list<text>",
		"jsonb":       "map<text, text>",
		"mood":        "text",
	}
	for udt, want := range cases {
		typ, err := mapType(udt, composites)
		require.NoError(t, err, udt)
		assert.Equal(t, want, typ.String(), udt)
	}

	typ, err := mapType("_address", composites)
	require.NoError(t, err)
	require.Equal(t, row.List, typ.Kind)
	assert.Equal(t, row.UDT, typ.Elem.Kind)
	assert.True(t, typ.Elem.Frozen)
	assert.Equal(t, []row.Field{
		{Name: "street", Type: row.Scalar(row.Text)},
		{Name: "zip", Type: row.Scalar(row.Int)},
	}, typ.Elem.Fields)

	_, err = mapType("tsvector", nil)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	id := [16]byte{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8}
	v, err := normalize(row.Scalar(row.UUID), id)
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", v)

	v, err = normalize(row.Scalar(row.Inet), netip.MustParsePrefix("10.0.0.1/32"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", v)
	v, err = normalize(row.Scalar(row.Inet), netip.MustParsePrefix("10.0.0.0/8"))
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/8", v)

	v, err = normalize(row.Scalar(row.Decimal), pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, 1.25, v)

	now := time.Now()
	v, err = normalize(row.Scalar(row.Timestamp), now)
	require.NoError(t, err)
	assert.Equal(t, now, v)

	v, err = normalize(jsonType, map[string]any{"a": "x", "b": 2.0, "c": nil, "d": []any{1.0}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": "x", "b": "2", "d": "[1]"}, v)

	v, err = normalize(jsonType, []any{"not", "an", "object"})
	require.NoError(t, err)
	assert.Nil(t, v)

	addr, err := mapType("address", lookup(addressType))
	require.NoError(t, err)
	v, err = normalize(row.ListOf(addr), []any{map[string]any{"street": "Main St", "zip": int32(1000)}, nil})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"street": "Main St", "zip": int32(1000)}}, v)

	_, err = normalize(row.ListOf(row.Scalar(row.Text)), "scalar")
	assert.Error(t, err)
}

func TestBuildTableAndRow(t *testing.T) {
	one, two := int32(1), int32(2)
	cols := []columnInfo{
		{Name: "tenant", UDTName: "text", KeyPos: &one},
		{Name: "id", UDTName: "int8", KeyPos: &two},
		{Name: "doc", UDTName: "jsonb"},
		{Name: "search", UDTName: "tsvector"},
	}
	// without a composite lookup unknown types are skipped
	table, err := buildTable("items", cols, nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, row.PartitionKey, table.Columns[0].Kind)
	assert.Equal(t, row.Clustering, table.Columns[1].Kind)
	assert.Equal(t, row.Regular, table.Columns[2].Kind)

	r, err := toRow(table, []any{"acme", int64(7), map[string]any{"k": "v"}})
	require.NoError(t, err)
	assert.Equal(t, `["acme","7"]`, r.Key())
	assert.Equal(t, map[string]any{"k": "v"}, r.Data()["doc"])

	_, err = buildTable("items", cols[2:], lookup(nil), zap.NewNop())
	assert.Error(t, err, "no primary key")

	_, err = buildTable("items", []columnInfo{{Name: "v", UDTName: "tsvector", KeyPos: &one}}, nil, zap.NewNop())
	assert.Error(t, err)
}
