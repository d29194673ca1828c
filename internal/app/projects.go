package app

import (
	"context"

	"go.uber.org/zap"

	"synergysphere/internal/domain"
)

// ProjectAPI es la parte del cliente de plataforma que consumen las pantallas.
type ProjectAPI interface {
	CreateProject(ctx context.Context, token string, input domain.NewProject) (domain.Project, error)
	ListProjects(ctx context.Context, token string) ([]domain.Project, error)
	GetProject(ctx context.Context, token, projectID string) (domain.Project, error)
	UpdateProject(ctx context.Context, token, projectID string, update domain.ProjectUpdate) (domain.Project, error)
	DeleteProject(ctx context.Context, token, projectID string) error
	AddProjectMember(ctx context.Context, token, projectID, userID string) (domain.Project, error)
	RemoveProjectMember(ctx context.Context, token, projectID, userID string) (domain.Project, error)
	GetProfile(ctx context.Context, token, userID string) (domain.Profile, error)
}

// TokenSource entrega un access token vigente.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Projects encapsula el acceso a proyectos y perfiles con el token de la sesion.
// Los errores se registran y se devuelven sin modificar.
type Projects struct {
	api    ProjectAPI
	tokens TokenSource
	logger *zap.Logger
}

func NewProjects(logger *zap.Logger, api ProjectAPI, tokens TokenSource) *Projects {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projects{api: api, tokens: tokens, logger: logger}
}

func (p *Projects) token(ctx context.Context, op string) (string, error) {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		p.logger.Warn("no access token", zap.String("op", op), zap.Error(err))
		return "", err
	}
	return token, nil
}

func (p *Projects) fail(op string, err error, fields ...zap.Field) error {
	fields = append(fields, zap.String("op", op), zap.Stringer("kind", domain.KindOf(err)), zap.Error(err))
	p.logger.Error("project data access failed", fields...)
	return err
}

// CreateProject inserta el proyecto; el nombre lo valida quien llama.
func (p *Projects) CreateProject(ctx context.Context, input domain.NewProject) (domain.Project, error) {
	token, err := p.token(ctx, "create_project")
	if err != nil {
		return domain.Project{}, err
	}
	project, err := p.api.CreateProject(ctx, token, input)
	if err != nil {
		return domain.Project{}, p.fail("create_project", err, zap.String("name", input.Name))
	}
	return project, nil
}

// GetUserProjects devuelve los proyectos en los que userID es miembro, mas recientes primero.
// La API solo lista los proyectos del titular del token, asi que userID debe ser
// ese mismo usuario: con otro id el resultado se reduce a los proyectos compartidos.
func (p *Projects) GetUserProjects(ctx context.Context, userID string) ([]domain.Project, error) {
	token, err := p.token(ctx, "get_user_projects")
	if err != nil {
		return nil, err
	}
	projects, err := p.api.ListProjects(ctx, token)
	if err != nil {
		return nil, p.fail("get_user_projects", err, zap.String("user_id", userID))
	}
	out := make([]domain.Project, 0, len(projects))
	for _, pr := range projects {
		if pr.HasMember(userID) {
			out = append(out, pr)
		}
	}
	return out, nil
}

func (p *Projects) GetProjectByID(ctx context.Context, projectID string) (domain.Project, error) {
	token, err := p.token(ctx, "get_project")
	if err != nil {
		return domain.Project{}, err
	}
	project, err := p.api.GetProject(ctx, token, projectID)
	if err != nil {
		return domain.Project{}, p.fail("get_project", err, zap.String("project_id", projectID))
	}
	return project, nil
}

func (p *Projects) UpdateProject(ctx context.Context, projectID string, update domain.ProjectUpdate) (domain.Project, error) {
	token, err := p.token(ctx, "update_project")
	if err != nil {
		return domain.Project{}, err
	}
	project, err := p.api.UpdateProject(ctx, token, projectID, update)
	if err != nil {
		return domain.Project{}, p.fail("update_project", err, zap.String("project_id", projectID))
	}
	return project, nil
}

// DeleteProject es idempotente: un proyecto inexistente cuenta como borrado.
func (p *Projects) DeleteProject(ctx context.Context, projectID string) error {
	token, err := p.token(ctx, "delete_project")
	if err != nil {
		return err
	}
	if err := p.api.DeleteProject(ctx, token, projectID); err != nil {
		return p.fail("delete_project", err, zap.String("project_id", projectID))
	}
	return nil
}

func (p *Projects) AddProjectMember(ctx context.Context, projectID, userID string) (domain.Project, error) {
	token, err := p.token(ctx, "add_project_member")
	if err != nil {
		return domain.Project{}, err
	}
	project, err := p.api.AddProjectMember(ctx, token, projectID, userID)
	if err != nil {
		return domain.Project{}, p.fail("add_project_member", err,
			zap.String("project_id", projectID), zap.String("user_id", userID))
	}
	return project, nil
}

func (p *Projects) RemoveProjectMember(ctx context.Context, projectID, userID string) (domain.Project, error) {
	token, err := p.token(ctx, "remove_project_member")
	if err != nil {
		return domain.Project{}, err
	}
	project, err := p.api.RemoveProjectMember(ctx, token, projectID, userID)
	if err != nil {
		return domain.Project{}, p.fail("remove_project_member", err,
			zap.String("project_id", projectID), zap.String("user_id", userID))
	}
	return project, nil
}

// GetProfile acepta "me" como alias del usuario de la sesion.
func (p *Projects) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	token, err := p.token(ctx, "get_profile")
	if err != nil {
		return domain.Profile{}, err
	}
	profile, err := p.api.GetProfile(ctx, token, userID)
	if err != nil {
		return domain.Profile{}, p.fail("get_profile", err, zap.String("user_id", userID))
	}
	return profile, nil
}
