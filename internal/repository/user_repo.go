package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"synergysphere/internal/domain"
)

// UserRepository define el contrato de persistencia para cuentas.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	CreateWithProfile(ctx context.Context, user domain.User, profile domain.Profile) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const insertUserQuery = `
	INSERT INTO users (id, email, display_name, password_hash, created_at)
	VALUES ($1, $2, $3, $4, $5)
`

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.pool.Exec(ctx, insertUserQuery,
		user.ID,
		user.Email,
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
	)
	return translateError("create user", err)
}

// CreateWithProfile inserta la cuenta y su perfil en la misma transaccion.
func (r *PgUserRepository) CreateWithProfile(ctx context.Context, user domain.User, profile domain.Profile) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertUserQuery,
			user.ID,
			user.Email,
			user.DisplayName,
			user.PasswordHash,
			user.CreatedAt,
		); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, insertProfileQuery, profile.ID, profile.Email, profile.DisplayName)
		return err
	})
	return translateError("create user with profile", err)
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	return r.getOne(ctx, "get user", query, id)
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, display_name, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	return r.getOne(ctx, "get user by email", query, email)
}

func (r *PgUserRepository) getOne(ctx context.Context, op, query string, arg any) (domain.User, error) {
	var u domain.User
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID,
		&u.Email,
		&u.DisplayName,
		&u.PasswordHash,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, translateError(op, err)
	}
	return u, nil
}
