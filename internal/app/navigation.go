package app

import (
	"errors"
	"sync"

	"synergysphere/internal/session"
)

type Route string

const (
	RouteLoading       Route = "Loading"
	RouteLogin         Route = "Login"
	RouteSignUp        Route = "SignUp"
	RouteProjects      Route = "Projects"
	RouteProjectDetail Route = "ProjectDetail"
	RouteProfile       Route = "Profile"
)

// Mode es el macro-estado de la navegacion.
type Mode int

const (
	ModeLoading Mode = iota
	ModeUnauthenticated
	ModeAuthenticated
)

func (m Mode) String() string {
	switch m {
	case ModeUnauthenticated:
		return "unauthenticated"
	case ModeAuthenticated:
		return "authenticated"
	default:
		return "loading"
	}
}

// Screen es una entrada concreta de la pila, con sus parametros.
type Screen struct {
	Route       Route
	ProjectID   string
	ProjectName string
}

// Stack describe que rutas existen en un macro-estado y por cual se entra.
type Stack struct {
	Mode    Mode
	Initial Route
	Routes  []Route
	Tabs    []Route
}

func (s Stack) Allows(r Route) bool {
	for _, candidate := range s.Routes {
		if candidate == r {
			return true
		}
	}
	return false
}

// Resolve es funcion pura del estado de sesion.
func Resolve(st session.State) Stack {
	switch {
	case st.Loading:
		return Stack{Mode: ModeLoading, Initial: RouteLoading, Routes: []Route{RouteLoading}}
	case st.User == nil:
		return Stack{
			Mode:    ModeUnauthenticated,
			Initial: RouteLogin,
			Routes:  []Route{RouteLogin, RouteSignUp},
		}
	default:
		return Stack{
			Mode:    ModeAuthenticated,
			Initial: RouteProjects,
			Routes:  []Route{RouteProjects, RouteProjectDetail, RouteProfile},
			Tabs:    []Route{RouteProjects, RouteProfile},
		}
	}
}

var (
	ErrRouteUnavailable = errors.New("route not available in current stack")
	ErrMissingProjectID = errors.New("project detail requires a project id")
)

// Navigator guarda el historial dentro del macro-estado actual y lo reinicia
// cuando la sesion cambia de macro-estado.
type Navigator struct {
	mu      sync.RWMutex
	stack   Stack
	history []Screen
}

func NewNavigator(st session.State) *Navigator {
	n := &Navigator{}
	n.reset(Resolve(st))
	return n
}

func (n *Navigator) reset(stack Stack) {
	n.stack = stack
	n.history = []Screen{{Route: stack.Initial}}
}

// Sync aplica un nuevo estado de sesion. Devuelve true si cambio el macro-estado.
func (n *Navigator) Sync(st session.State) bool {
	next := Resolve(st)
	n.mu.Lock()
	defer n.mu.Unlock()
	if next.Mode == n.stack.Mode {
		return false
	}
	n.reset(next)
	return true
}

// Listen adapta el Navigator como listener del proveedor de sesion.
func (n *Navigator) Listen(ev session.Event) {
	n.Sync(ev.State)
}

func (n *Navigator) Mode() Mode {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stack.Mode
}

func (n *Navigator) Stack() Stack {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stack
}

func (n *Navigator) Current() Screen {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.history[len(n.history)-1]
}

func (n *Navigator) Depth() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.history)
}

// Navigate apila una pantalla del macro-estado actual.
func (n *Navigator) Navigate(s Screen) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.stack.Allows(s.Route) {
		return ErrRouteUnavailable
	}
	if s.Route == RouteProjectDetail && s.ProjectID == "" {
		return ErrMissingProjectID
	}
	if n.history[len(n.history)-1] == s {
		return nil
	}
	n.history = append(n.history, s)
	return nil
}

// SwitchTab reemplaza el historial por la raiz de la pestana elegida.
func (n *Navigator) SwitchTab(r Route) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, tab := range n.stack.Tabs {
		if tab == r {
			n.history = []Screen{{Route: r}}
			return nil
		}
	}
	return ErrRouteUnavailable
}

// Back desapila; en la raiz no hace nada y devuelve false.
func (n *Navigator) Back() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.history) <= 1 {
		return false
	}
	n.history = n.history[:len(n.history)-1]
	return true
}
