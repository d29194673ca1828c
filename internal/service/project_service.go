package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"synergysphere/internal/domain"
	"synergysphere/internal/email"
	"synergysphere/internal/repository"
)

var ErrProjectNameRequired = fmt.Errorf("project name required: %w", domain.ErrInvalid)

// ProjectService aplica el control de acceso por membresia sobre el repositorio.
// Un proyecto del que el actor no es miembro se comporta como inexistente.
type ProjectService struct {
	logger   *zap.Logger
	projects repository.ProjectRepository
	users    repository.UserRepository
	inviter  email.Sender
}

func NewProjectService(logger *zap.Logger, projects repository.ProjectRepository, users repository.UserRepository) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProjectService{logger: logger, projects: projects, users: users}
}

// WithInviter avisa por correo a quien se agrega a un proyecto.
func (s *ProjectService) WithInviter(sender email.Sender) *ProjectService {
	s.inviter = sender
	return s
}

// Create da de alta un proyecto; el creador siempre queda como miembro.
func (s *ProjectService) Create(ctx context.Context, actorID string, input domain.NewProject) (domain.Project, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return domain.Project{}, ErrProjectNameRequired
	}
	members := dedupe(append([]string{actorID}, input.Members...))

	project, err := s.projects.Create(ctx, domain.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Members:     members,
		CreatedBy:   actorID,
	})
	if err != nil {
		s.logger.Error("create project failed", zap.String("actor_id", actorID), zap.Error(err))
		return domain.Project{}, err
	}
	return project, nil
}

// ListForUser devuelve los proyectos donde userID es miembro, mas recientes primero.
func (s *ProjectService) ListForUser(ctx context.Context, userID string) ([]domain.Project, error) {
	projects, err := s.projects.ListByMember(ctx, userID)
	if err != nil {
		s.logger.Error("list projects failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, actorID, projectID string) (domain.Project, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if !project.HasMember(actorID) {
		return domain.Project{}, fmt.Errorf("get project: %w", domain.ErrNotFound)
	}
	return project, nil
}

// Update aplica una actualizacion parcial tipada; gana la ultima escritura salvo
// que se indique ExpectedVersion, que se valida aunque no haya campos.
func (s *ProjectService) Update(ctx context.Context, actorID, projectID string, update domain.ProjectUpdate) (domain.Project, error) {
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return domain.Project{}, ErrProjectNameRequired
		}
		update.Name = &trimmed
	}
	current, err := s.Get(ctx, actorID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if update.Empty() {
		if update.ExpectedVersion != nil && *update.ExpectedVersion != current.Version {
			return domain.Project{}, fmt.Errorf("update project: version mismatch: %w", domain.ErrConflict)
		}
		return current, nil
	}
	project, err := s.projects.Update(ctx, projectID, update)
	if err != nil {
		s.logger.Error("update project failed", zap.String("project_id", projectID), zap.Error(err))
		return domain.Project{}, err
	}
	return project, nil
}

// Delete es idempotente: un proyecto ausente o ajeno cuenta como borrado.
func (s *ProjectService) Delete(ctx context.Context, actorID, projectID string) error {
	if _, err := s.Get(ctx, actorID, projectID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if _, err := s.projects.Delete(ctx, projectID); err != nil {
		s.logger.Error("delete project failed", zap.String("project_id", projectID), zap.Error(err))
		return err
	}
	return nil
}

// AddMember agrega userID de forma atomica; repetir la llamada no duplica.
func (s *ProjectService) AddMember(ctx context.Context, actorID, projectID, userID string) (domain.Project, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Project{}, fmt.Errorf("member id required: %w", domain.ErrInvalid)
	}
	before, err := s.Get(ctx, actorID, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	var invitee domain.User
	if s.users != nil {
		invitee, err = s.users.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Project{}, fmt.Errorf("unknown user %s: %w", userID, domain.ErrInvalid)
			}
			return domain.Project{}, err
		}
	}
	project, err := s.projects.AddMember(ctx, projectID, userID)
	if err != nil {
		s.logger.Error("add project member failed", zap.String("project_id", projectID), zap.Error(err))
		return domain.Project{}, err
	}
	if !before.HasMember(userID) {
		s.notifyInvite(ctx, actorID, invitee, project)
	}
	return project, nil
}

// notifyInvite no hace fallar la operacion: el miembro ya quedo agregado.
func (s *ProjectService) notifyInvite(ctx context.Context, actorID string, invitee domain.User, project domain.Project) {
	if s.inviter == nil || invitee.Email == "" {
		return
	}
	invitedBy := ""
	if actor, err := s.users.GetByID(ctx, actorID); err == nil {
		invitedBy = actor.DisplayName
		if invitedBy == "" {
			invitedBy = actor.Email
		}
	}
	err := s.inviter.SendProjectInvite(ctx, email.Invite{
		ToEmail:     invitee.Email,
		ToName:      invitee.DisplayName,
		ProjectID:   project.ID,
		ProjectName: project.Name,
		InvitedBy:   invitedBy,
	})
	if err != nil && !errors.Is(err, email.ErrDisabled) {
		s.logger.Warn("project invite email failed",
			zap.String("project_id", project.ID), zap.String("user_id", invitee.ID), zap.Error(err))
	}
}

func (s *ProjectService) RemoveMember(ctx context.Context, actorID, projectID, userID string) (domain.Project, error) {
	if _, err := s.Get(ctx, actorID, projectID); err != nil {
		return domain.Project{}, err
	}
	project, err := s.projects.RemoveMember(ctx, projectID, strings.TrimSpace(userID))
	if err != nil {
		s.logger.Error("remove project member failed", zap.String("project_id", projectID), zap.Error(err))
		return domain.Project{}, err
	}
	return project, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
