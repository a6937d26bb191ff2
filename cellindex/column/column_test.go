package column

import (
	"testing"

	cierrors "github.com/nonibytes/cellindex/cellindex/errors"
	"github.com/nonibytes/cellindex/cellindex/row"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "street", JoinNested("", "street"))
	assert.Equal(t, "address.street", JoinNested("address", "street"))
	assert.Equal(t, "home", JoinMapKey("", "home"))
	assert.Equal(t, "address$home", JoinMapKey("address", "home"))
}

func TestMapperNameOf(t *testing.T) {
	cases := map[string]string{
		"name":                  "name",
		"address$home":          "address",
		"address.street$home":   "address.street",
		"a$x.b$y.c":             "a.b.c",
		"a$x$y":                 "a",
		"a.b.c":                 "a.b.c",
		"":                      "",
		"$key":                  "",
		"address.street$home$1": "address.street",
	}
	for in, want := range cases {
		got := MapperNameOf(in)
		assert.Equal(t, want, got, in)
		assert.Equal(t, got, MapperNameOf(got), "idempotent for %q", in)
	}
}

func TestMapKeysNeverAffectMapperName(t *testing.T) {
	cells := []string{"a", "address", "x_1"}
	paths := [][]string{nil, {"street"}, {"b", "c"}}
	keys := [][]string{nil, {"home"}, {"k1", "k2"}}
	for _, c := range cells {
		for _, p := range paths {
			for _, k := range keys {
				full := ComposeName(c, p, k)
				assert.Equal(t, ComposeName(c, p, nil), MapperNameOf(full), full)
				assert.Equal(t, c, CellNameOf(full))
			}
		}
	}
}

func TestAddressScenario(t *testing.T) {
	home := NewBuilder("address").Nested("street").MapKey("home").Build(row.Scalar(row.Text), "Main St")
	work := NewBuilder("address").Nested("street").MapKey("work").Build(row.Scalar(row.Text), "Side St")
	zip := NewBuilder("address").Nested("zip").MapKey("home").Build(row.Scalar(row.Int), 1000)

	assert.Equal(t, "address.street$home", home.FullName())
	assert.Equal(t, "address.street", home.MapperName())
	assert.Equal(t, "address", home.CellName())
	assert.True(t, home.HasMapKey())

	cs := New(home, work, zip)
	assert.Equal(t, 2, cs.ByMapperName("address.street").Len())
	assert.Equal(t, 1, cs.ByFullName("address.street$home").Len())
	assert.Equal(t, 2, cs.ByMapperName("address.street$home").Len())
	assert.True(t, cs.ByFullName("address.street").IsEmpty())

	first, ok := cs.ByMapperName("address.street").First()
	require.True(t, ok)
	assert.Equal(t, "Main St", first.Value())

	assert.Equal(t, []string{"address.street", "address.zip"}, cs.MapperNames())
}

func TestBuilderDoesNotAlias(t *testing.T) {
	base := NewBuilder("a").Nested("b")
	x := base.Nested("x").Build(row.Scalar(row.Int), 1)
	y := base.Nested("y").Build(row.Scalar(row.Int), 2)
	assert.Equal(t, "a.b.x", x.FullName())
	assert.Equal(t, "a.b.y", y.FullName())
}

func TestColumnsEmpty(t *testing.T) {
	var cs *Columns
	_, ok := cs.First()
	assert.False(t, ok)
	assert.True(t, cs.IsEmpty())
	assert.Nil(t, cs.All())

	merged := New().AddAll(nil).AddAll(New(NewBuilder("a").Build(row.Scalar(row.Int), 1)))
	assert.Equal(t, 1, merged.Len())
}

func TestFromRow(t *testing.T) {
	address := row.UDTOf("address",
		row.Field{Name: "street", Type: row.Scalar(row.Text)},
		row.Field{Name: "zip", Type: row.Scalar(row.Int)},
	)
	r := row.Row{
		Partition:  []row.Cell{{Name: "id", Type: row.Scalar(row.Int), Value: 1}},
		Clustering: []row.Cell{{Name: "ts", Type: row.Scalar(row.BigInt), Value: int64(5)}},
		Cells: []row.Cell{
			{Name: "tags", Type: row.SetOf(row.Scalar(row.Text)), Value: []any{"a", "b"}},
			{Name: "address", Type: row.MapOf(row.Scalar(row.Text), address.Freeze()), Value: map[string]any{
				"work": map[string]any{"street": "Side St", "zip": 2000},
				"home": map[string]any{"street": "Main St"},
			}},
			{Name: "scores", Type: row.ListOf(row.Scalar(row.Int)).Freeze(), Value: []int{7, 8}},
			{Name: "empty", Type: row.Scalar(row.Text), Value: nil},
		},
	}

	cs, err := FromRow(r)
	require.NoError(t, err)

	var names []string
	for _, c := range cs.All() {
		names = append(names, c.FullName())
	}
	assert.Equal(t, []string{
		"id", "ts",
		"tags", "tags",
		"address.street$home",
		"address.street$work", "address.zip$work",
		"scores", "scores",
	}, names)

	tags := cs.ByMapperName("tags").All()
	require.Len(t, tags, 2)
	assert.True(t, tags[0].IsMultiValued())
	scores := cs.ByMapperName("scores").All()
	require.Len(t, scores, 2)
	assert.False(t, scores[0].IsMultiValued())
	assert.Equal(t, 8, scores[1].Value())
}

func TestFromCellTypeMismatch(t *testing.T) {
	_, err := FromCell(row.Cell{Name: "tags", Type: row.ListOf(row.Scalar(row.Text)), Value: "oops"})
	require.Error(t, err)
	assert.True(t, cierrors.IsKind(err, cierrors.ErrData))

	_, err = FromCell(row.Cell{Name: "n", Type: row.Scalar(row.Int), Value: []any{1}})
	assert.True(t, cierrors.IsKind(err, cierrors.ErrData))

	cs, err := FromCell(row.Cell{Name: "b", Type: row.Scalar(row.Blob), Value: []byte{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, cs.Len())
}
