package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"synergysphere/internal/domain"
	"synergysphere/internal/session"
)

// Authenticator es lo que las pantallas usan del proveedor de sesion.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (domain.User, error)
	SignUp(ctx context.Context, email, password, displayName string) (domain.User, error)
	SignOut(ctx context.Context) error
	State() session.State
}

// Alert es el aviso generico que ve el usuario; el detalle queda en el log.
type Alert struct {
	Title   string
	Message string
}

func (a *Alert) String() string {
	if a == nil {
		return ""
	}
	return a.Title + ": " + a.Message
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func errorAlert(msg string) *Alert {
	return &Alert{Title: "Error", Message: msg}
}

const minPasswordLength = 6

// Las pantallas no son seguras para uso concurrente: las maneja un unico loop de UI.

type LoginScreen struct {
	Email    string
	Password string
	Loading  bool
	Alert    *Alert

	auth   Authenticator
	logger *zap.Logger
}

func NewLoginScreen(logger *zap.Logger, auth Authenticator) *LoginScreen {
	logger = orNop(logger)
	return &LoginScreen{auth: auth, logger: logger}
}

// Submit devuelve true si la sesion quedo iniciada.
func (s *LoginScreen) Submit(ctx context.Context) bool {
	s.Alert = nil
	email := strings.TrimSpace(s.Email)
	if email == "" || s.Password == "" {
		s.Alert = errorAlert("Please fill in all fields")
		return false
	}
	s.Loading = true
	defer func() { s.Loading = false }()

	if _, err := s.auth.SignIn(ctx, email, s.Password); err != nil {
		s.logger.Error("sign in failed", zap.String("email", email), zap.Error(err))
		s.Alert = &Alert{Title: "Login Failed", Message: authMessage(err)}
		return false
	}
	s.Password = ""
	return true
}

type SignUpScreen struct {
	DisplayName     string
	Email           string
	Password        string
	ConfirmPassword string
	Loading         bool
	Alert           *Alert

	auth   Authenticator
	logger *zap.Logger
}

func NewSignUpScreen(logger *zap.Logger, auth Authenticator) *SignUpScreen {
	logger = orNop(logger)
	return &SignUpScreen{auth: auth, logger: logger}
}

func (s *SignUpScreen) Submit(ctx context.Context) bool {
	s.Alert = nil
	name := strings.TrimSpace(s.DisplayName)
	email := strings.TrimSpace(s.Email)
	switch {
	case name == "" || email == "" || s.Password == "":
		s.Alert = errorAlert("Please fill in all fields")
		return false
	case s.Password != s.ConfirmPassword:
		s.Alert = errorAlert("Passwords do not match")
		return false
	case len(s.Password) < minPasswordLength:
		s.Alert = errorAlert(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
		return false
	}
	s.Loading = true
	defer func() { s.Loading = false }()

	if _, err := s.auth.SignUp(ctx, email, s.Password, name); err != nil {
		s.logger.Error("sign up failed", zap.String("email", email), zap.Error(err))
		s.Alert = &Alert{Title: "Sign Up Failed", Message: authMessage(err)}
		return false
	}
	s.Password, s.ConfirmPassword = "", ""
	return true
}

// authMessage es el unico lugar donde se muestra el motivo del fallo: credenciales o email duplicado.
func authMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindUnauthorized:
		return "Invalid email or password"
	case domain.KindConflict:
		return "An account with this email already exists"
	case domain.KindInvalid:
		return err.Error()
	default:
		return "Something went wrong, please try again"
	}
}

type ProjectsScreen struct {
	Projects []domain.Project
	Loading  bool
	Alert    *Alert

	auth   Authenticator
	data   *Projects
	logger *zap.Logger
}

func NewProjectsScreen(logger *zap.Logger, auth Authenticator, data *Projects) *ProjectsScreen {
	logger = orNop(logger)
	return &ProjectsScreen{auth: auth, data: data, logger: logger}
}

func (s *ProjectsScreen) Load(ctx context.Context) {
	user := s.auth.State().User
	if user == nil {
		return
	}
	s.Alert = nil
	s.Loading = true
	defer func() { s.Loading = false }()

	projects, err := s.data.GetUserProjects(ctx, user.ID)
	if err != nil {
		s.logger.Error("error loading projects", zap.Error(err))
		s.Alert = errorAlert("Failed to load projects")
		return
	}
	s.Projects = projects
}

// Create crea un proyecto con el usuario actual como unico miembro.
// Un nombre vacio se ignora.
func (s *ProjectsScreen) Create(ctx context.Context, name, description string) (domain.Project, bool) {
	user := s.auth.State().User
	name = strings.TrimSpace(name)
	if user == nil || name == "" {
		return domain.Project{}, false
	}
	s.Alert = nil
	project, err := s.data.CreateProject(ctx, domain.NewProject{
		Name:        name,
		Description: strings.TrimSpace(description),
		Members:     []string{user.ID},
		CreatedBy:   user.ID,
	})
	if err != nil {
		s.logger.Error("error creating project", zap.Error(err))
		s.Alert = errorAlert("Failed to create project")
		return domain.Project{}, false
	}
	s.Projects = append([]domain.Project{project}, s.Projects...)
	return project, true
}

// Tab es la pestana activa del detalle de proyecto.
type Tab string

const (
	TabOverview   Tab = "overview"
	TabTasks      Tab = "tasks"
	TabDiscussion Tab = "discussion"
)

var Tabs = []Tab{TabOverview, TabTasks, TabDiscussion}

type ProjectDetailScreen struct {
	ProjectID string
	Title     string
	Project   *domain.Project
	ActiveTab Tab
	Loading   bool
	Alert     *Alert

	data   *Projects
	logger *zap.Logger
}

func NewProjectDetailScreen(logger *zap.Logger, data *Projects, projectID, projectName string) *ProjectDetailScreen {
	logger = orNop(logger)
	return &ProjectDetailScreen{
		ProjectID: projectID,
		Title:     projectName,
		ActiveTab: TabOverview,
		data:      data,
		logger:    logger.With(zap.String("project_id", projectID)),
	}
}

func (s *ProjectDetailScreen) Load(ctx context.Context) {
	s.Alert = nil
	s.Loading = true
	defer func() { s.Loading = false }()

	project, err := s.data.GetProjectByID(ctx, s.ProjectID)
	if err != nil {
		s.logger.Error("error loading project", zap.Error(err))
		s.Alert = errorAlert("Failed to load project details")
		s.Project = nil
		return
	}
	s.Project = &project
	if project.Name != "" {
		s.Title = project.Name
	}
}

func (s *ProjectDetailScreen) SelectTab(t Tab) bool {
	for _, candidate := range Tabs {
		if candidate == t {
			s.ActiveTab = t
			return true
		}
	}
	return false
}

func (s *ProjectDetailScreen) AddMember(ctx context.Context, userID string) bool {
	userID = strings.TrimSpace(userID)
	if s.Project == nil || userID == "" {
		return false
	}
	s.Alert = nil
	project, err := s.data.AddProjectMember(ctx, s.ProjectID, userID)
	if err != nil {
		s.logger.Error("error adding member", zap.String("user_id", userID), zap.Error(err))
		s.Alert = errorAlert("Failed to add member")
		return false
	}
	s.Project = &project
	return true
}

// Update envia la version cargada para no pisar cambios ajenos.
func (s *ProjectDetailScreen) Update(ctx context.Context, name, description *string) bool {
	if s.Project == nil {
		return false
	}
	version := s.Project.Version
	update := domain.ProjectUpdate{Name: name, Description: description, ExpectedVersion: &version}
	if update.Empty() {
		return false
	}
	s.Alert = nil
	project, err := s.data.UpdateProject(ctx, s.ProjectID, update)
	if err != nil {
		s.logger.Error("error updating project", zap.Error(err))
		s.Alert = errorAlert("Failed to update project")
		return false
	}
	s.Project = &project
	s.Title = project.Name
	return true
}

func (s *ProjectDetailScreen) Delete(ctx context.Context) bool {
	s.Alert = nil
	if err := s.data.DeleteProject(ctx, s.ProjectID); err != nil {
		s.logger.Error("error deleting project", zap.Error(err))
		s.Alert = errorAlert("Failed to delete project")
		return false
	}
	s.Project = nil
	return true
}

// Body devuelve el contenido de la pestana activa.
func (s *ProjectDetailScreen) Body() string {
	if s.Loading {
		return "Loading project..."
	}
	if s.Project == nil {
		return "Project not found"
	}
	switch s.ActiveTab {
	case TabTasks:
		return "Tasks\nTasks feature coming soon"
	case TabDiscussion:
		return "Discussion\nDiscussion feature coming soon"
	default:
		desc := s.Project.Description
		if desc == "" {
			desc = "No description provided"
		}
		return fmt.Sprintf("Description\n%s\n\nProject Info\n%d team members\nCreated: %s",
			desc, memberCount(*s.Project), s.Project.CreatedAt.Format("2006-01-02"))
	}
}

func memberCount(p domain.Project) int {
	if len(p.Members) == 0 {
		return 1
	}
	return len(p.Members)
}

type ProfileScreen struct {
	Profile *domain.Profile
	Loading bool
	Alert   *Alert

	auth   Authenticator
	data   *Projects
	logger *zap.Logger
}

func NewProfileScreen(logger *zap.Logger, auth Authenticator, data *Projects) *ProfileScreen {
	logger = orNop(logger)
	return &ProfileScreen{auth: auth, data: data, logger: logger}
}

func (s *ProfileScreen) Load(ctx context.Context) {
	if s.auth.State().User == nil {
		return
	}
	s.Alert = nil
	s.Loading = true
	defer func() { s.Loading = false }()

	profile, err := s.data.GetProfile(ctx, "me")
	if err != nil {
		s.logger.Error("error loading profile", zap.Error(err))
		s.Alert = errorAlert("Failed to load profile")
		return
	}
	s.Profile = &profile
}

// DisplayName cae al email cuando no hay nombre visible.
func (s *ProfileScreen) DisplayName() string {
	if s.Profile != nil && s.Profile.DisplayName != "" {
		return s.Profile.DisplayName
	}
	if user := s.auth.State().User; user != nil {
		if user.DisplayName != "" {
			return user.DisplayName
		}
		return user.Email
	}
	return ""
}

func (s *ProfileScreen) Email() string {
	if s.Profile != nil && s.Profile.Email != "" {
		return s.Profile.Email
	}
	if user := s.auth.State().User; user != nil {
		return user.Email
	}
	return ""
}

func (s *ProfileScreen) SignOut(ctx context.Context) bool {
	s.Alert = nil
	if err := s.auth.SignOut(ctx); err != nil {
		s.logger.Error("error signing out", zap.Error(err))
		s.Alert = errorAlert("Failed to sign out")
		return false
	}
	s.Profile = nil
	return true
}
