//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/testutil/containers"
)

func TestPostgresBootstrapAndUniqueOwner(t *testing.T) {
	ctx := context.Background()
	s, err := New(ctx, containers.NewPostgres(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)

	reg := metadata.NewRegistry()
	require.NoError(t, s.Bootstrap(ctx, reg))
	// second run is a no-op
	require.NoError(t, s.Bootstrap(ctx, reg))

	for _, e := range reg.AllEntities() {
		ok, err := s.Dialect.TableExists(ctx, s.DB, e.Table)
		require.NoError(t, err)
		assert.True(t, ok, e.Table)
	}

	insert := "INSERT INTO employees (owner_key, status, created_at, updated_at) VALUES ($1, 'in_progress', now(), now())"
	_, err = Exec(ctx, s.DB, insert, "owner-1")
	require.NoError(t, err)
	_, err = Exec(ctx, s.DB, insert, "owner-1")
	require.ErrorIs(t, MapError(s.Dialect, err), ErrUniqueViolation)
}
