package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"synergysphere/internal/domain"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile domain.Profile) error
	GetByID(ctx context.Context, id string) (domain.Profile, error)
}

type PgProfileRepository struct {
	pool *pgxpool.Pool
}

func NewPgProfileRepository(pool *pgxpool.Pool) *PgProfileRepository {
	return &PgProfileRepository{pool: pool}
}

const insertProfileQuery = `
	INSERT INTO profiles (id, email, display_name)
	VALUES ($1, $2, $3)
`

func (r *PgProfileRepository) Create(ctx context.Context, profile domain.Profile) error {
	_, err := r.pool.Exec(ctx, insertProfileQuery,
		profile.ID,
		profile.Email,
		profile.DisplayName,
	)
	return translateError("create profile", err)
}

func (r *PgProfileRepository) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	const query = `
		SELECT id, email, display_name
		FROM profiles
		WHERE id = $1
	`
	var profile domain.Profile
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.DisplayName,
	)
	if err != nil {
		return domain.Profile{}, translateError("get profile", err)
	}
	return profile, nil
}
