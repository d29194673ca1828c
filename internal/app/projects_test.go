package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"synergysphere/internal/domain"
)

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) AccessToken(context.Context) (string, error) {
	return s.token, s.err
}

type stubAPI struct {
	ProjectAPI
	gotToken string
	projects []domain.Project
	err      error
}

func (s *stubAPI) ListProjects(_ context.Context, token string) ([]domain.Project, error) {
	s.gotToken = token
	return s.projects, s.err
}

func (s *stubAPI) GetProject(_ context.Context, token, _ string) (domain.Project, error) {
	s.gotToken = token
	return domain.Project{}, s.err
}

func TestProjects_UsesSessionToken(t *testing.T) {
	api := &stubAPI{projects: []domain.Project{
		{ID: "p1", Members: []string{"u1"}},
		{ID: "p2", Members: []string{"u2"}},
	}}
	data := NewProjects(zap.NewNop(), api, staticTokens{token: "tok"})

	got, err := data.GetUserProjects(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "tok", api.gotToken)
	require.Len(t, got, 1)
	require.Equal(t, "p1", got[0].ID)
}

func TestProjects_OtherUserIDNarrowsToSharedProjects(t *testing.T) {
	api := &stubAPI{projects: []domain.Project{
		{ID: "p1", Members: []string{"u1"}},
		{ID: "p2", Members: []string{"u1", "u2"}},
	}}
	data := NewProjects(zap.NewNop(), api, staticTokens{token: "tok-u1"})

	shared, err := data.GetUserProjects(context.Background(), "u2")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	require.Equal(t, "p2", shared[0].ID)

	own, err := data.GetUserProjects(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, own, 2)
	require.Equal(t, "p1", api.projects[0].ID)
}

func TestProjects_LogsAndReturnsErrorUnchanged(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sentinel := errors.New("boom")
	api := &stubAPI{err: sentinel}
	data := NewProjects(zap.New(core), api, staticTokens{token: "tok"})

	_, err := data.GetProjectByID(context.Background(), "p1")
	require.Same(t, sentinel, err)
	require.Equal(t, 1, logs.FilterField(zap.String("op", "get_project")).Len())
}

func TestProjects_MissingTokenShortCircuits(t *testing.T) {
	api := &stubAPI{}
	data := NewProjects(zap.NewNop(), api, staticTokens{err: domain.ErrUnauthorized})

	_, err := data.GetUserProjects(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Empty(t, api.gotToken)
}
