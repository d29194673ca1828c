package session

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"synergysphere/internal/client"
	"synergysphere/internal/domain"
	apihttp "synergysphere/internal/http"
	"synergysphere/internal/repository"
	"synergysphere/internal/service"
)

type fakeAuth struct {
	mu         sync.Mutex
	ttl        time.Duration
	issued     int
	refreshes  int
	signOuts   int
	refreshErr error
	signInErr  error
	revoked    []string

	// refreshStarted y releaseRefresh, si no son nil, frenan Refresh a mitad de camino.
	refreshStarted chan struct{}
	releaseRefresh chan struct{}
}

func (f *fakeAuth) issue(user domain.User) domain.Session {
	f.issued++
	return domain.Session{
		User:         user,
		AccessToken:  fmt.Sprintf("access-%d", f.issued),
		RefreshToken: fmt.Sprintf("refresh-%d", f.issued),
		ExpiresAt:    time.Now().Add(f.ttl),
	}
}

func (f *fakeAuth) SignUp(_ context.Context, email, _, displayName string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.issue(domain.User{ID: "u-" + email, Email: email, DisplayName: displayName}), nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return domain.Session{}, f.signInErr
	}
	return f.issue(domain.User{ID: "u-" + email, Email: email}), nil
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (domain.Session, error) {
	if f.refreshStarted != nil {
		f.refreshStarted <- struct{}{}
		<-f.releaseRefresh
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return domain.Session{}, f.refreshErr
	}
	return f.issue(domain.User{ID: "u-refreshed", Email: "r@example.com"}), nil
}

func (f *fakeAuth) SignOut(_ context.Context, refreshToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	f.revoked = append(f.revoked, refreshToken)
	return nil
}

func (f *fakeAuth) revokedTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.revoked...)
}

func (f *fakeAuth) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) listen(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func TestProvider_StartWithoutStoredSession(t *testing.T) {
	p := NewProvider(zap.NewNop(), &fakeAuth{ttl: time.Hour}, NewMemoryStore(), Options{})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)

	require.True(t, p.Loading())
	require.Nil(t, p.User())

	p.Start(context.Background())
	p.Start(context.Background())

	require.False(t, p.Loading())
	require.Nil(t, p.User())
	require.Equal(t, []EventType{EventInitialSession}, rec.types())
}

func TestProvider_RestoresStoredSession(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(domain.Session{
		User:         domain.User{ID: "u1", Email: "a@example.com"},
		AccessToken:  "stored",
		RefreshToken: "stored-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	}))
	auth := &fakeAuth{ttl: time.Hour}
	p := NewProvider(zap.NewNop(), auth, store, Options{})
	defer p.Close()

	p.Start(context.Background())

	require.NotNil(t, p.User())
	require.Equal(t, "u1", p.User().ID)
	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "stored", token)
	require.Zero(t, auth.refreshCount())
}

func TestProvider_ExpiredStoredSessionIsRefreshedOnStart(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(domain.Session{
		User:         domain.User{ID: "u1"},
		AccessToken:  "old",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	auth := &fakeAuth{ttl: time.Hour}
	p := NewProvider(zap.NewNop(), auth, store, Options{})
	defer p.Close()

	p.Start(context.Background())

	require.Equal(t, 1, auth.refreshCount())
	require.Equal(t, "u-refreshed", p.User().ID)
	saved, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, "access-1", saved.AccessToken)
}

func TestProvider_ExpiredStoredSessionRejectedClearsStore(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(domain.Session{
		User:         domain.User{ID: "u1"},
		AccessToken:  "old",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	auth := &fakeAuth{ttl: time.Hour, refreshErr: domain.ErrUnauthorized}
	p := NewProvider(zap.NewNop(), auth, store, Options{})
	defer p.Close()

	p.Start(context.Background())

	require.Nil(t, p.User())
	require.False(t, p.Loading())
	saved, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, saved)
}

func TestProvider_ExpiredStoredSessionSurvivesTransientFailure(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(domain.Session{
		User:         domain.User{ID: "u1"},
		AccessToken:  "old",
		RefreshToken: "old-refresh",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}))
	auth := &fakeAuth{ttl: time.Hour, refreshErr: fmt.Errorf("dial: %w", domain.ErrTransient)}
	p := NewProvider(zap.NewNop(), auth, store, Options{})
	defer p.Close()

	p.Start(context.Background())

	require.NotNil(t, p.User())
	require.Equal(t, "u1", p.User().ID)
	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Equal(t, "old-refresh", saved.RefreshToken)

	_, err = p.AccessToken(context.Background())
	require.True(t, domain.KindOf(err).Retryable())
	require.NotNil(t, p.User())

	auth.mu.Lock()
	auth.refreshErr = nil
	auth.mu.Unlock()

	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
}

func TestProvider_SignInSignOutNotifiesListeners(t *testing.T) {
	store := NewMemoryStore()
	auth := &fakeAuth{ttl: time.Hour}
	p := NewProvider(zap.NewNop(), auth, store, Options{})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Start(context.Background())

	user, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)
	require.Equal(t, "u-a@example.com", user.ID)
	require.Equal(t, user.ID, p.User().ID)

	saved, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, saved)

	require.NoError(t, p.SignOut(context.Background()))
	require.Nil(t, p.User())
	require.NoError(t, p.SignOut(context.Background()))
	require.Equal(t, 1, auth.signOuts)

	saved, err = store.Load()
	require.NoError(t, err)
	require.Nil(t, saved)

	require.Equal(t, []EventType{EventInitialSession, EventSignedIn, EventSignedOut}, rec.types())
	rec.mu.Lock()
	require.NotNil(t, rec.events[1].State.User)
	require.Nil(t, rec.events[2].State.User)
	rec.mu.Unlock()
}

func TestProvider_SignInErrorLeavesStateUntouched(t *testing.T) {
	auth := &fakeAuth{ttl: time.Hour, signInErr: domain.ErrUnauthorized}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Start(context.Background())

	_, err := p.SignIn(context.Background(), "a@example.com", "bad")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	require.Nil(t, p.User())
	require.Equal(t, []EventType{EventInitialSession}, rec.types())
}

func TestProvider_UnsubscribeStopsDelivery(t *testing.T) {
	p := NewProvider(zap.NewNop(), &fakeAuth{ttl: time.Hour}, NewMemoryStore(), Options{})
	defer p.Close()
	rec := &recorder{}
	unsubscribe := p.Subscribe(rec.listen)
	p.Start(context.Background())
	unsubscribe()
	unsubscribe()

	_, err := p.SignUp(context.Background(), "a@example.com", "secret123", "Ada")
	require.NoError(t, err)
	require.Equal(t, []EventType{EventInitialSession}, rec.types())
}

func TestProvider_AccessTokenBeforeStart(t *testing.T) {
	p := NewProvider(zap.NewNop(), &fakeAuth{ttl: time.Hour}, NewMemoryStore(), Options{})
	defer p.Close()
	_, err := p.AccessToken(context.Background())
	require.ErrorIs(t, err, ErrNotStarted)

	p.Start(context.Background())
	_, err = p.AccessToken(context.Background())
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestProvider_AccessTokenRefreshesWithinMargin(t *testing.T) {
	auth := &fakeAuth{ttl: 30 * time.Second}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{RefreshMargin: time.Minute})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-2", token)
	require.Equal(t, 1, auth.refreshCount())
	require.Contains(t, rec.types(), EventTokenRefreshed)
}

func TestProvider_BackgroundRefreshRotatesToken(t *testing.T) {
	auth := &fakeAuth{ttl: 200 * time.Millisecond}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{
		AutoRefresh:   true,
		RefreshMargin: 150 * time.Millisecond,
	})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return auth.refreshCount() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		for _, typ := range rec.types() {
			if typ == EventTokenRefreshed {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
	require.NotNil(t, p.User())
}

func TestProvider_BackgroundRefreshRejectedSignsOut(t *testing.T) {
	auth := &fakeAuth{ttl: 100 * time.Millisecond}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{
		AutoRefresh:   true,
		RefreshMargin: 50 * time.Millisecond,
	})
	defer p.Close()
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	auth.mu.Lock()
	auth.refreshErr = domain.ErrUnauthorized
	auth.mu.Unlock()

	require.Eventually(t, func() bool {
		return p.User() == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestProvider_TransientRefreshKeepsValidSession(t *testing.T) {
	auth := &fakeAuth{ttl: time.Hour, refreshErr: domain.ErrTransient}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{RefreshMargin: 2 * time.Hour})
	defer p.Close()
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	token, err := p.AccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "access-1", token)
	require.NotNil(t, p.User())
}

type tokenResult struct {
	token string
	err   error
}

func TestProvider_SignOutDuringRefreshStaysSignedOut(t *testing.T) {
	auth := &fakeAuth{
		ttl:            30 * time.Second,
		refreshStarted: make(chan struct{}),
		releaseRefresh: make(chan struct{}),
	}
	store := NewMemoryStore()
	p := NewProvider(zap.NewNop(), auth, store, Options{RefreshMargin: time.Minute})
	defer p.Close()
	rec := &recorder{}
	p.Subscribe(rec.listen)
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	result := make(chan tokenResult, 1)
	go func() {
		token, err := p.AccessToken(context.Background())
		result <- tokenResult{token: token, err: err}
	}()
	<-auth.refreshStarted

	require.NoError(t, p.SignOut(context.Background()))
	require.Nil(t, p.User())
	close(auth.releaseRefresh)

	got := <-result
	require.ErrorIs(t, got.err, domain.ErrUnauthorized)
	require.Empty(t, got.token)
	require.Nil(t, p.User())
	saved, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, saved)
	require.Equal(t, []EventType{EventInitialSession, EventSignedIn, EventSignedOut}, rec.types())
	require.Equal(t, []string{"refresh-1", "refresh-2"}, auth.revokedTokens())
}

func TestProvider_SignInDuringRefreshKeepsNewUser(t *testing.T) {
	auth := &fakeAuth{
		ttl:            30 * time.Second,
		refreshStarted: make(chan struct{}),
		releaseRefresh: make(chan struct{}),
	}
	p := NewProvider(zap.NewNop(), auth, NewMemoryStore(), Options{RefreshMargin: time.Minute})
	defer p.Close()
	p.Start(context.Background())
	_, err := p.SignIn(context.Background(), "a@example.com", "secret123")
	require.NoError(t, err)

	result := make(chan tokenResult, 1)
	go func() {
		token, err := p.AccessToken(context.Background())
		result <- tokenResult{token: token, err: err}
	}()
	<-auth.refreshStarted

	_, err = p.SignIn(context.Background(), "b@example.com", "secret123")
	require.NoError(t, err)
	close(auth.releaseRefresh)

	got := <-result
	require.NoError(t, got.err)
	require.Equal(t, "access-2", got.token)
	require.Equal(t, "u-b@example.com", p.User().ID)
}

func TestProvider_CloseIsIdempotent(t *testing.T) {
	p := NewProvider(zap.NewNop(), &fakeAuth{ttl: time.Hour}, NewMemoryStore(), Options{AutoRefresh: true})
	p.Start(context.Background())
	p.Close()
	p.Close()
}

func TestFileStore_RoundTripAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileStore(path)

	got, err := store.Load()
	require.NoError(t, err)
	require.Nil(t, got)

	sess := domain.Session{
		User:         domain.User{ID: "u1", Email: "a@example.com"},
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    time.Now().Add(time.Hour).UTC().Truncate(time.Second),
	}
	require.NoError(t, store.Save(sess))

	got, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "u1", got.User.ID)
	require.True(t, sess.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
	got, err = store.Load()
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestProvider_AgainstAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mem := repository.NewMemoryStore()
	jwtSvc := service.NewJWTServiceWithStore("secret", 15*time.Minute, time.Hour, service.NewMemoryRefreshTokenStore())
	authSvc := service.NewAuthService(zap.NewNop(), mem.Users(), mem.Profiles(), jwtSvc, nil)
	projectSvc := service.NewProjectService(zap.NewNop(), mem.Projects(), mem.Users())
	srv := httptest.NewServer(apihttp.NewRouter(zap.NewNop(), "anon", jwtSvc,
		apihttp.NewAuthHandler(zap.NewNop(), authSvc),
		apihttp.NewProjectHandler(zap.NewNop(), projectSvc),
	))
	defer srv.Close()

	cli, err := client.New(srv.URL, "anon")
	require.NoError(t, err)
	store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))

	p := NewProvider(zap.NewNop(), cli, store, Options{})
	p.Start(context.Background())
	user, err := p.SignUp(context.Background(), "ada@example.com", "secret123", "Ada")
	require.NoError(t, err)
	require.Equal(t, "Ada", user.DisplayName)
	p.Close()

	restarted := NewProvider(zap.NewNop(), cli, store, Options{})
	defer restarted.Close()
	restarted.Start(context.Background())
	require.NotNil(t, restarted.User())
	require.Equal(t, user.ID, restarted.User().ID)

	token, err := restarted.AccessToken(context.Background())
	require.NoError(t, err)
	profile, err := cli.GetProfile(context.Background(), token, "me")
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.DisplayName)

	require.NoError(t, restarted.SignOut(context.Background()))
	require.Nil(t, restarted.User())
}
