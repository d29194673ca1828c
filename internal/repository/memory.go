package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"synergysphere/internal/domain"
)

// MemoryStore mantiene usuarios, perfiles y proyectos en memoria.
// Se usa con DATABASE_URL=memory:// y en tests.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[string]domain.User
	emails   map[string]string
	profiles map[string]domain.Profile
	projects map[string]domain.Project
	lastTick time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		profiles: make(map[string]domain.Profile),
		projects: make(map[string]domain.Project),
	}
}

// tick devuelve un instante estrictamente creciente para ordenar por updated_at.
func (m *MemoryStore) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(m.lastTick) {
		now = m.lastTick.Add(time.Microsecond)
	}
	m.lastTick = now
	return now
}

func (m *MemoryStore) Users() *MemoryUserRepository       { return &MemoryUserRepository{m} }
func (m *MemoryStore) Profiles() *MemoryProfileRepository { return &MemoryProfileRepository{m} }
func (m *MemoryStore) Projects() *MemoryProjectRepository { return &MemoryProjectRepository{m} }

type MemoryUserRepository struct{ s *MemoryStore }

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.insertUser(user)
}

func (r *MemoryUserRepository) CreateWithProfile(_ context.Context, user domain.User, profile domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.ID]; ok {
		return fmt.Errorf("create profile: %w", domain.ErrConflict)
	}
	if err := r.s.insertUser(user); err != nil {
		return err
	}
	r.s.profiles[profile.ID] = profile
	return nil
}

func (m *MemoryStore) insertUser(user domain.User) error {
	if _, ok := m.users[user.ID]; ok {
		return fmt.Errorf("create user: %w", domain.ErrConflict)
	}
	if _, ok := m.emails[user.Email]; ok {
		return fmt.Errorf("create user: %w", domain.ErrConflict)
	}
	m.users[user.ID] = user
	m.emails[user.Email] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user, ok := r.s.users[id]
	if !ok {
		return domain.User{}, fmt.Errorf("get user: %w", domain.ErrNotFound)
	}
	return user, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	r.s.mu.Lock()
	id, ok := r.s.emails[email]
	r.s.mu.Unlock()
	if !ok {
		return domain.User{}, fmt.Errorf("get user by email: %w", domain.ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

type MemoryProfileRepository struct{ s *MemoryStore }

func (r *MemoryProfileRepository) Create(_ context.Context, profile domain.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.ID]; ok {
		return fmt.Errorf("create profile: %w", domain.ErrConflict)
	}
	r.s.profiles[profile.ID] = profile
	return nil
}

func (r *MemoryProfileRepository) GetByID(_ context.Context, id string) (domain.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	profile, ok := r.s.profiles[id]
	if !ok {
		return domain.Profile{}, fmt.Errorf("get profile: %w", domain.ErrNotFound)
	}
	return profile, nil
}

// Delete quita una fila de perfil; solo lo usan los tests de reparacion.
func (r *MemoryProfileRepository) Delete(id string) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.profiles, id)
}

type MemoryProjectRepository struct{ s *MemoryStore }

func cloneProject(p domain.Project) domain.Project {
	p.Members = slices.Clone(p.Members)
	if p.Members == nil {
		p.Members = []string{}
	}
	return p
}

func (r *MemoryProjectRepository) Create(_ context.Context, project domain.Project) (domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.projects[project.ID]; ok {
		return domain.Project{}, fmt.Errorf("create project: %w", domain.ErrConflict)
	}
	now := r.s.tick()
	project.Version = 1
	project.CreatedAt = now
	project.UpdatedAt = now
	project = cloneProject(project)
	r.s.projects[project.ID] = project
	return cloneProject(project), nil
}

func (r *MemoryProjectRepository) ListByMember(_ context.Context, userID string) ([]domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Project, 0, 16)
	for _, p := range r.s.projects {
		if p.HasMember(userID) {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *MemoryProjectRepository) GetByID(_ context.Context, id string) (domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("get project: %w", domain.ErrNotFound)
	}
	return cloneProject(p), nil
}

func (r *MemoryProjectRepository) Update(_ context.Context, id string, update domain.ProjectUpdate) (domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("update project: %w", domain.ErrNotFound)
	}
	if update.ExpectedVersion != nil && *update.ExpectedVersion != p.Version {
		return domain.Project{}, fmt.Errorf("update project: version mismatch: %w", domain.ErrConflict)
	}
	if update.Name != nil {
		p.Name = *update.Name
	}
	if update.Description != nil {
		p.Description = *update.Description
	}
	r.s.touch(&p)
	return cloneProject(p), nil
}

func (r *MemoryProjectRepository) Delete(_ context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.projects[id]
	delete(r.s.projects, id)
	return ok, nil
}

func (r *MemoryProjectRepository) AddMember(_ context.Context, id, userID string) (domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("add project member: %w", domain.ErrNotFound)
	}
	if !p.HasMember(userID) {
		p.Members = append(slices.Clone(p.Members), userID)
		r.s.touch(&p)
	}
	return cloneProject(p), nil
}

func (r *MemoryProjectRepository) RemoveMember(_ context.Context, id, userID string) (domain.Project, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.projects[id]
	if !ok {
		return domain.Project{}, fmt.Errorf("remove project member: %w", domain.ErrNotFound)
	}
	if p.HasMember(userID) {
		p.Members = slices.DeleteFunc(slices.Clone(p.Members), func(m string) bool { return m == userID })
		r.s.touch(&p)
	}
	return cloneProject(p), nil
}

func (m *MemoryStore) touch(p *domain.Project) {
	p.Version++
	p.UpdatedAt = m.tick()
	m.projects[p.ID] = cloneProject(*p)
}
