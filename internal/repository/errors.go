package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"synergysphere/internal/domain"
)

// translateError traduce errores de pgx a los errores de dominio.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, domain.ErrConflict)
		case "22P02":
			// id con formato invalido: ninguna fila puede coincidir
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case "23514", "23502":
			return fmt.Errorf("%s: %w", op, domain.ErrInvalid)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTransient, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
