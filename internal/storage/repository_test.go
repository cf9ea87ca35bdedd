package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spendboard/internal/auth"
	"spendboard/internal/core"
)

func newTestRepo(t *testing.T) (*SQLiteRepository, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "identity.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo, path
}

func TestPutGetUpsert(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)

	_, err := repo.Get(ctx, "alice")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.Put(ctx, "alice", "h1"))
	require.NoError(t, repo.Put(ctx, "alice", "h2"))

	got, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "h2", got)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUsersSurviveReopen(t *testing.T) {
	ctx := context.Background()
	repo, path := newTestRepo(t)
	require.NoError(t, repo.Put(ctx, "bob", "hash"))
	require.NoError(t, repo.Close())

	reopened, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "hash", got)
}

func TestAuthServiceOverSQLite(t *testing.T) {
	ctx := context.Background()
	repo, _ := newTestRepo(t)
	svc := auth.NewService(repo, bcrypt.MinCost, nil)

	require.NoError(t, svc.Register(ctx, "carol", "pw"))
	ok, err := svc.Authenticate(ctx, "carol", "pw")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authenticate(ctx, "carol", "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	_, path := newTestRepo(t)
	require.NoError(t, RunMigrations(path))
}

func TestSchemaVersion(t *testing.T) {
	_, path := newTestRepo(t)
	version, dirty, err := SchemaVersion(path)
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}
