package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"synergysphere/internal/domain"
)

// ProjectRepository define el contrato de persistencia para proyectos.
type ProjectRepository interface {
	Create(ctx context.Context, project domain.Project) (domain.Project, error)
	ListByMember(ctx context.Context, userID string) ([]domain.Project, error)
	GetByID(ctx context.Context, id string) (domain.Project, error)
	Update(ctx context.Context, id string, update domain.ProjectUpdate) (domain.Project, error)
	Delete(ctx context.Context, id string) (bool, error)
	AddMember(ctx context.Context, id, userID string) (domain.Project, error)
	RemoveMember(ctx context.Context, id, userID string) (domain.Project, error)
}

// PgProjectRepository implementa ProjectRepository usando pgxpool.
type PgProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgProjectRepository(pool *pgxpool.Pool) *PgProjectRepository {
	return &PgProjectRepository{pool: pool}
}

const projectColumns = `id, name, description, members, created_by, version, created_at, updated_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Members,
		&p.CreatedBy,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if p.Members == nil {
		p.Members = []string{}
	}
	return p, err
}

func (r *PgProjectRepository) Create(ctx context.Context, project domain.Project) (domain.Project, error) {
	query := `
		INSERT INTO projects (id, name, description, members, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + projectColumns
	p, err := scanProject(r.pool.QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.Members,
		project.CreatedBy,
	))
	if err != nil {
		return domain.Project{}, translateError("create project", err)
	}
	return p, nil
}

// ListByMember devuelve los proyectos cuyo array de miembros contiene userID,
// del mas recientemente actualizado al mas antiguo.
func (r *PgProjectRepository) ListByMember(ctx context.Context, userID string) ([]domain.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE members @> ARRAY[$1]::text[]
		ORDER BY updated_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, translateError("list projects", err)
	}
	defer rows.Close()

	out := make([]domain.Project, 0, 16)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, translateError("scan project", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, translateError("list projects", err)
	}
	return out, nil
}

func (r *PgProjectRepository) GetByID(ctx context.Context, id string) (domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	p, err := scanProject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Project{}, translateError("get project", err)
	}
	return p, nil
}

// Update aplica los campos no nulos de update. Con ExpectedVersion la escritura
// solo ocurre si la version almacenada coincide.
func (r *PgProjectRepository) Update(ctx context.Context, id string, update domain.ProjectUpdate) (domain.Project, error) {
	query := `
		UPDATE projects
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND ($4::bigint IS NULL OR version = $4)
		RETURNING ` + projectColumns
	p, err := scanProject(r.pool.QueryRow(ctx, query, id, update.Name, update.Description, update.ExpectedVersion))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) || update.ExpectedVersion == nil {
		return domain.Project{}, translateError("update project", err)
	}
	if _, getErr := r.GetByID(ctx, id); getErr != nil {
		return domain.Project{}, getErr
	}
	return domain.Project{}, fmt.Errorf("update project: version mismatch: %w", domain.ErrConflict)
}

// Delete borra el proyecto e informa si alguna fila coincidio.
func (r *PgProjectRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		if errors.Is(translateError("delete project", err), domain.ErrNotFound) {
			return false, nil
		}
		return false, translateError("delete project", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddMember agrega userID de forma atomica; si ya era miembro devuelve la fila sin cambios.
func (r *PgProjectRepository) AddMember(ctx context.Context, id, userID string) (domain.Project, error) {
	query := `
		UPDATE projects
		SET members = array_append(members, $2::text),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND NOT ($2::text = ANY(members))
		RETURNING ` + projectColumns
	return r.mutateMembers(ctx, "add project member", query, id, userID)
}

// RemoveMember quita userID de forma atomica; si no era miembro devuelve la fila sin cambios.
func (r *PgProjectRepository) RemoveMember(ctx context.Context, id, userID string) (domain.Project, error) {
	query := `
		UPDATE projects
		SET members = array_remove(members, $2::text),
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1 AND $2::text = ANY(members)
		RETURNING ` + projectColumns
	return r.mutateMembers(ctx, "remove project member", query, id, userID)
}

func (r *PgProjectRepository) mutateMembers(ctx context.Context, op, query, id, userID string) (domain.Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, query, id, userID))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Project{}, translateError(op, err)
	}
	// sin fila actualizada: o el proyecto no existe o la membresia ya estaba en el estado pedido
	return r.GetByID(ctx, id)
}
