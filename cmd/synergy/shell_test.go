package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergysphere/internal/app"
	"synergysphere/internal/client"
	apihttp "synergysphere/internal/http"
	"synergysphere/internal/repository"
	"synergysphere/internal/service"
	"synergysphere/internal/session"
)

func TestParseCommand(t *testing.T) {
	verb, arg := parseCommand("  OPEN 2 ")
	require.Equal(t, "open", verb)
	require.Equal(t, "2", arg)

	verb, arg = parseCommand("add  user 1")
	require.Equal(t, "add", verb)
	require.Equal(t, "user 1", arg)

	verb, arg = parseCommand("")
	require.Empty(t, verb)
	require.Empty(t, arg)
}

func TestShell_ScriptedSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := repository.NewMemoryStore()
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	srv := httptest.NewServer(apihttp.NewRouter(zap.NewNop(), "anon", jwtSvc,
		apihttp.NewAuthHandler(zap.NewNop(), service.NewAuthService(zap.NewNop(), mem.Users(), mem.Profiles(), jwtSvc, nil)),
		apihttp.NewProjectHandler(zap.NewNop(), service.NewProjectService(zap.NewNop(), mem.Projects(), mem.Users())),
	))
	defer srv.Close()

	cli, err := client.New(srv.URL, "anon")
	require.NoError(t, err)
	provider := session.NewProvider(zap.NewNop(), cli, session.NewMemoryStore(), session.Options{})
	defer provider.Close()
	nav := app.NewNavigator(provider.State())
	provider.Subscribe(nav.Listen)
	provider.Start(context.Background())

	script := strings.Join([]string{
		"signup", "submit", "Ada", "ada@example.com", "secret123", "secret123",
		"new", "Launch Plan", "Q3 launch",
		"tab tasks",
		"back",
		"profile",
		"signout", "y",
		"quit",
	}, "\n") + "\n"
	var out bytes.Buffer
	sh := newShell(zap.NewNop(), bufio.NewReader(strings.NewReader(script)), &out, provider, nav, app.NewProjects(zap.NewNop(), cli, provider))

	require.NoError(t, sh.run(context.Background()))

	text := out.String()
	require.Contains(t, text, "== Create Account ==")
	require.Contains(t, text, "== Launch Plan ==")
	require.Contains(t, text, "Tasks feature coming soon")
	require.Contains(t, text, "Launch Plan (1 members)")
	require.Contains(t, text, "ada@example.com")
	require.Equal(t, app.ModeUnauthenticated, nav.Mode())
	require.Nil(t, provider.State().User)
}
