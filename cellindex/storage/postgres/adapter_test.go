package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nonibytes/cellindex/cellindex/storage"
	"github.com/nonibytes/cellindex/cellindex/storage/sqlbuilder"
)

func TestAdapterBasics(t *testing.T) {
	a := New("postgres://localhost/cellindex", "idx_people")
	assert.Equal(t, storage.BackendPostgres, a.Backend())
	assert.Equal(t, sqlbuilder.PlaceholderDollar, a.PlaceholderStyle())
	assert.Equal(t, "postgres:idx_people", a.IndexID())
}

func TestConnectRejectsBadSchemaName(t *testing.T) {
	for _, name := range []string{"", "1abc", `x"; DROP TABLE items; --`, "a-b"} {
		_, err := New("postgres://localhost/cellindex", name).Connect(context.Background())
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "invalid postgres schema name")
	}
}
