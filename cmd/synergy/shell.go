package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"synergysphere/internal/app"
	"synergysphere/internal/session"
)

var errQuit = errors.New("quit")

type shell struct {
	in       *bufio.Reader
	out      io.Writer
	logger   *zap.Logger
	provider *session.Provider
	nav      *app.Navigator
	data     *app.Projects

	projects *app.ProjectsScreen
	detail   *app.ProjectDetailScreen
	profile  *app.ProfileScreen
}

func newShell(logger *zap.Logger, in *bufio.Reader, out io.Writer, p *session.Provider, nav *app.Navigator, data *app.Projects) *shell {
	return &shell{
		in:       in,
		out:      out,
		logger:   logger,
		provider: p,
		nav:      nav,
		data:     data,
		projects: app.NewProjectsScreen(logger, p, data),
		profile:  app.NewProfileScreen(logger, p, data),
	}
}

// parseCommand separa el verbo de su argumento.
func parseCommand(line string) (string, string) {
	line = strings.TrimSpace(line)
	verb, arg, _ := strings.Cut(line, " ")
	return strings.ToLower(verb), strings.TrimSpace(arg)
}

func (s *shell) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		s.render()
		line, err := s.prompt("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		verb, arg := parseCommand(line)
		if verb == "" {
			continue
		}
		if verb == "quit" || verb == "exit" {
			return nil
		}
		if err := s.dispatch(ctx, verb, arg); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(s.out, err)
		}
	}
}

func (s *shell) prompt(label string) (string, error) {
	fmt.Fprint(s.out, label)
	line, err := s.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (s *shell) dispatch(ctx context.Context, verb, arg string) error {
	screen := s.nav.Current()
	switch screen.Route {
	case app.RouteLoading:
		return nil
	case app.RouteLogin:
		return s.onLogin(ctx, verb)
	case app.RouteSignUp:
		return s.onSignUp(ctx, verb)
	case app.RouteProjects:
		return s.onProjects(ctx, verb, arg)
	case app.RouteProjectDetail:
		return s.onProjectDetail(ctx, verb, arg)
	case app.RouteProfile:
		return s.onProfile(ctx, verb)
	}
	return fmt.Errorf("unknown screen %s", screen.Route)
}

func (s *shell) render() {
	screen := s.nav.Current()
	fmt.Fprintf(s.out, "\n== %s ==\n", title(screen))
	switch screen.Route {
	case app.RouteLoading:
		fmt.Fprintln(s.out, "Loading...")
	case app.RouteLogin:
		fmt.Fprintln(s.out, "commands: login, signup, quit")
	case app.RouteSignUp:
		fmt.Fprintln(s.out, "commands: submit, back, quit")
	case app.RouteProjects:
		s.renderProjects()
	case app.RouteProjectDetail:
		s.renderDetail(screen)
	case app.RouteProfile:
		s.renderProfile()
	}
}

func title(screen app.Screen) string {
	switch screen.Route {
	case app.RouteLogin:
		return "Sign In"
	case app.RouteSignUp:
		return "Create Account"
	case app.RouteProjects:
		return "My Projects"
	case app.RouteProjectDetail:
		if screen.ProjectName != "" {
			return screen.ProjectName
		}
	}
	return string(screen.Route)
}

func (s *shell) showAlert(a *app.Alert) {
	if a != nil {
		fmt.Fprintf(s.out, "[%s] %s\n", a.Title, a.Message)
	}
}

func (s *shell) onLogin(ctx context.Context, verb string) error {
	switch verb {
	case "login":
		screen := app.NewLoginScreen(s.logger, s.provider)
		var err error
		if screen.Email, err = s.prompt("email: "); err != nil {
			return err
		}
		if screen.Password, err = s.prompt("password: "); err != nil {
			return err
		}
		if !screen.Submit(ctx) {
			s.showAlert(screen.Alert)
		}
		return nil
	case "signup":
		return s.nav.Navigate(app.Screen{Route: app.RouteSignUp})
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (s *shell) onSignUp(ctx context.Context, verb string) error {
	switch verb {
	case "submit":
		screen := app.NewSignUpScreen(s.logger, s.provider)
		fields := []struct {
			label string
			dst   *string
		}{
			{"display name: ", &screen.DisplayName},
			{"email: ", &screen.Email},
			{"password: ", &screen.Password},
			{"confirm password: ", &screen.ConfirmPassword},
		}
		for _, f := range fields {
			v, err := s.prompt(f.label)
			if err != nil {
				return err
			}
			*f.dst = v
		}
		if !screen.Submit(ctx) {
			s.showAlert(screen.Alert)
		}
		return nil
	case "back":
		s.nav.Back()
		return nil
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (s *shell) renderProjects() {
	if s.projects.Projects == nil && s.projects.Alert == nil {
		s.projects.Load(context.Background())
	}
	s.showAlert(s.projects.Alert)
	if len(s.projects.Projects) == 0 {
		fmt.Fprintln(s.out, "No projects yet. Create your first project to get started.")
	}
	for i, p := range s.projects.Projects {
		desc := p.Description
		if desc == "" {
			desc = "No description"
		}
		fmt.Fprintf(s.out, "%2d. %s (%d members)\n    %s\n", i+1, p.Name, len(p.Members), desc)
	}
	fmt.Fprintln(s.out, "commands: refresh, new, open <n>, profile, quit")
}

func (s *shell) onProjects(ctx context.Context, verb, arg string) error {
	switch verb {
	case "refresh":
		s.projects.Load(ctx)
		return nil
	case "new":
		name, err := s.prompt("project name: ")
		if err != nil {
			return err
		}
		desc, err := s.prompt("description: ")
		if err != nil {
			return err
		}
		project, ok := s.projects.Create(ctx, name, desc)
		if !ok {
			s.showAlert(s.projects.Alert)
			return nil
		}
		return s.openProject(ctx, project.ID, project.Name)
	case "open":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(s.projects.Projects) {
			return fmt.Errorf("usage: open <1-%d>", len(s.projects.Projects))
		}
		p := s.projects.Projects[n-1]
		return s.openProject(ctx, p.ID, p.Name)
	case "profile":
		s.profile.Load(ctx)
		return s.nav.SwitchTab(app.RouteProfile)
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (s *shell) openProject(ctx context.Context, id, name string) error {
	if err := s.nav.Navigate(app.Screen{Route: app.RouteProjectDetail, ProjectID: id, ProjectName: name}); err != nil {
		return err
	}
	s.detail = app.NewProjectDetailScreen(s.logger, s.data, id, name)
	s.detail.Load(ctx)
	return nil
}

func (s *shell) renderDetail(screen app.Screen) {
	if s.detail == nil || s.detail.ProjectID != screen.ProjectID {
		s.detail = app.NewProjectDetailScreen(s.logger, s.data, screen.ProjectID, screen.ProjectName)
		s.detail.Load(context.Background())
	}
	s.showAlert(s.detail.Alert)
	tabs := make([]string, 0, len(app.Tabs))
	for _, t := range app.Tabs {
		label := string(t)
		if t == s.detail.ActiveTab {
			label = "[" + label + "]"
		}
		tabs = append(tabs, label)
	}
	fmt.Fprintln(s.out, strings.Join(tabs, "  "))
	fmt.Fprintln(s.out, s.detail.Body())
	fmt.Fprintln(s.out, "commands: tab <name>, add <user-id>, rename, describe, delete, back")
}

func (s *shell) onProjectDetail(ctx context.Context, verb, arg string) error {
	d := s.detail
	switch verb {
	case "tab":
		if !d.SelectTab(app.Tab(strings.ToLower(arg))) {
			return fmt.Errorf("unknown tab %q", arg)
		}
		return nil
	case "add":
		if !d.AddMember(ctx, arg) {
			s.showAlert(d.Alert)
		}
		return nil
	case "rename", "describe":
		label := "new name: "
		if verb == "describe" {
			label = "new description: "
		}
		v, err := s.prompt(label)
		if err != nil {
			return err
		}
		var ok bool
		if verb == "rename" {
			ok = d.Update(ctx, &v, nil)
		} else {
			ok = d.Update(ctx, nil, &v)
		}
		if !ok {
			s.showAlert(d.Alert)
		}
		return nil
	case "delete":
		if !d.Delete(ctx) {
			s.showAlert(d.Alert)
			return nil
		}
		s.nav.Back()
		s.projects.Load(ctx)
		return nil
	case "back":
		s.nav.Back()
		s.projects.Load(ctx)
		return nil
	}
	return fmt.Errorf("unknown command %q", verb)
}

func (s *shell) renderProfile() {
	s.showAlert(s.profile.Alert)
	fmt.Fprintf(s.out, "%s\n%s\n", s.profile.DisplayName(), s.profile.Email())
	fmt.Fprintln(s.out, "commands: projects, signout, quit")
}

func (s *shell) onProfile(ctx context.Context, verb string) error {
	switch verb {
	case "projects":
		s.projects.Load(ctx)
		return s.nav.SwitchTab(app.RouteProjects)
	case "signout":
		answer, err := s.prompt("Are you sure you want to sign out? [y/N] ")
		if err != nil {
			return err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			return nil
		}
		if !s.profile.SignOut(ctx) {
			s.showAlert(s.profile.Alert)
			return nil
		}
		s.projects.Projects = nil
		return nil
	}
	return fmt.Errorf("unknown command %q", verb)
}
