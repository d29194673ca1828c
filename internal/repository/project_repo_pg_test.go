package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"synergysphere/internal/config"
	"synergysphere/internal/db"
	"synergysphere/internal/domain"
	"synergysphere/internal/repository"
)

// setupTestPool conecta a TEST_DATABASE_URL y aplica las migraciones.
// Sin la variable el test se salta.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL integration test")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, &config.Config{DatabaseURL: dsn, DBMaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

func createTestProject(t *testing.T, pool *pgxpool.Pool, repo *repository.PgProjectRepository, creator string) domain.Project {
	t.Helper()
	p, err := repo.Create(context.Background(), domain.Project{
		ID:        uuid.NewString(),
		Name:      "Integration",
		Members:   []string{creator},
		CreatedBy: creator,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM projects WHERE id = $1`, p.ID)
	})
	return p
}

func TestPgProjectRepository_UpdateComparesVersion(t *testing.T) {
	pool := setupTestPool(t)
	repo := repository.NewPgProjectRepository(pool)
	ctx := context.Background()
	creator := uuid.NewString()
	p := createTestProject(t, pool, repo, creator)
	require.EqualValues(t, 1, p.Version)

	name := "Renamed"
	expected := p.Version
	updated, err := repo.Update(ctx, p.ID, domain.ProjectUpdate{Name: &name, ExpectedVersion: &expected})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, p.Version+1, updated.Version)

	other := "Lost write"
	_, err = repo.Update(ctx, p.ID, domain.ProjectUpdate{Name: &other, ExpectedVersion: &expected})
	require.ErrorIs(t, err, domain.ErrConflict)

	desc := "last write wins"
	updated, err = repo.Update(ctx, p.ID, domain.ProjectUpdate{Description: &desc})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Equal(t, p.Version+2, updated.Version)

	_, err = repo.Update(ctx, uuid.NewString(), domain.ProjectUpdate{Name: &name, ExpectedVersion: &expected})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPgProjectRepository_MembershipIsIdempotent(t *testing.T) {
	pool := setupTestPool(t)
	repo := repository.NewPgProjectRepository(pool)
	ctx := context.Background()
	creator := uuid.NewString()
	member := uuid.NewString()
	p := createTestProject(t, pool, repo, creator)

	first, err := repo.AddMember(ctx, p.ID, member)
	require.NoError(t, err)
	second, err := repo.AddMember(ctx, p.ID, member)
	require.NoError(t, err)
	require.Equal(t, []string{creator, member}, second.Members)
	require.Equal(t, first.Version, second.Version)

	listed, err := repo.ListByMember(ctx, member)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, p.ID, listed[0].ID)

	removed, err := repo.RemoveMember(ctx, p.ID, member)
	require.NoError(t, err)
	again, err := repo.RemoveMember(ctx, p.ID, member)
	require.NoError(t, err)
	require.Equal(t, []string{creator}, again.Members)
	require.Equal(t, removed.Version, again.Version)

	_, err = repo.AddMember(ctx, uuid.NewString(), member)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPgProjectRepository_MalformedIDIsNotFound(t *testing.T) {
	pool := setupTestPool(t)
	repo := repository.NewPgProjectRepository(pool)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, "not-a-uuid")
	require.ErrorIs(t, err, domain.ErrNotFound)

	deleted, err := repo.Delete(ctx, "not-a-uuid")
	require.NoError(t, err)
	require.False(t, deleted)

	p := createTestProject(t, pool, repo, uuid.NewString())
	deleted, err = repo.Delete(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = repo.Delete(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, deleted)
}
