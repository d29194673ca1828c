package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergysphere/internal/domain"
	apihttp "synergysphere/internal/http"
	"synergysphere/internal/repository"
	"synergysphere/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := repository.NewMemoryStore()
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	authSvc := service.NewAuthService(zap.NewNop(), store.Users(), store.Profiles(), jwtSvc, nil)
	projectSvc := service.NewProjectService(zap.NewNop(), store.Projects(), store.Users())
	router := apihttp.NewRouter(zap.NewNop(), "anon", jwtSvc,
		apihttp.NewAuthHandler(zap.NewNop(), authSvc),
		apihttp.NewProjectHandler(zap.NewNop(), projectSvc),
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_AuthAndProjects(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)
	cli, err := New(srv.URL, "anon")
	require.NoError(t, err)

	session, err := cli.SignUp(ctx, "ada@example.com", "secret123", "Ada")
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken)

	profile, err := cli.GetProfile(ctx, session.AccessToken, session.User.ID)
	require.NoError(t, err)
	require.Equal(t, session.User.ID, profile.ID)
	require.Equal(t, "Ada", profile.DisplayName)

	created, err := cli.CreateProject(ctx, session.AccessToken, domain.NewProject{Name: "X", Members: []string{session.User.ID}})
	require.NoError(t, err)

	got, err := cli.GetProject(ctx, session.AccessToken, created.ID)
	require.NoError(t, err)
	require.Equal(t, "X", got.Name)
	require.Equal(t, []string{session.User.ID}, got.Members)

	require.NoError(t, cli.DeleteProject(ctx, session.AccessToken, created.ID))
	require.NoError(t, cli.DeleteProject(ctx, session.AccessToken, created.ID))

	_, err = cli.GetProject(ctx, session.AccessToken, created.ID)
	require.Error(t, err)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestClient_ErrorKinds(t *testing.T) {
	ctx := context.Background()
	srv := newTestServer(t)

	wrongKey, err := New(srv.URL, "wrong")
	require.NoError(t, err)
	_, err = wrongKey.SignIn(ctx, "a@example.com", "secret123")
	require.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	cli, err := New(srv.URL, "anon")
	require.NoError(t, err)
	_, err = cli.SignIn(ctx, "a@example.com", "secret123")
	require.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	_, err = cli.SignUp(ctx, "a@example.com", "secret123", "A")
	require.NoError(t, err)
	_, err = cli.SignUp(ctx, "a@example.com", "secret123", "A")
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestClient_TransportErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cli, err := New(url, "")
	require.NoError(t, err)
	_, err = cli.SignIn(context.Background(), "a@example.com", "x")
	require.Error(t, err)
	require.True(t, domain.KindOf(err).Retryable())
}

func TestAPIErrorKind(t *testing.T) {
	cases := map[int]domain.ErrorKind{
		http.StatusNotFound:           domain.KindNotFound,
		http.StatusUnauthorized:       domain.KindUnauthorized,
		http.StatusConflict:           domain.KindConflict,
		http.StatusBadRequest:         domain.KindInvalid,
		http.StatusTooManyRequests:    domain.KindTransient,
		http.StatusServiceUnavailable: domain.KindTransient,
		http.StatusTeapot:             domain.KindUnknown,
	}
	for status, want := range cases {
		require.Equal(t, want, APIError{Status: status}.Kind(), "status %d", status)
	}
}

func TestNew_RejectsEmptyURL(t *testing.T) {
	_, err := New("  ", "key")
	require.Error(t, err)
}
