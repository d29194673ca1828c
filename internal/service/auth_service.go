package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"synergysphere/internal/domain"
	"synergysphere/internal/repository"
)

const minPasswordLength = 6

var (
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	ErrInvalidEmail       = fmt.Errorf("invalid email: %w", domain.ErrInvalid)
	ErrWeakPassword       = fmt.Errorf("password must have at least %d characters: %w", minPasswordLength, domain.ErrInvalid)
	ErrEmailTaken         = fmt.Errorf("email already registered: %w", domain.ErrConflict)
	ErrRateLimited        = errors.New("rate limited")
)

// AuthService coordina alta, inicio y cierre de sesion.
type AuthService struct {
	logger   *zap.Logger
	users    repository.UserRepository
	profiles repository.ProfileRepository
	jwt      *JWTService
	limiter  LoginRateLimiter
}

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	jwt *JWTService,
	limiter LoginRateLimiter,
) *AuthService {
	if limiter == nil {
		limiter = NewLoginRateLimiter(10*time.Minute, 5)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		logger:   logger,
		users:    users,
		profiles: profiles,
		jwt:      jwt,
		limiter:  limiter,
	}
}

type SignUpInput struct {
	Email       string
	Password    string
	DisplayName string
}

// SignUp crea la cuenta y su fila de perfil en una sola transaccion y abre sesion.
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (domain.Session, error) {
	emailAddr := normalizeEmail(input.Email)
	if emailAddr == "" {
		return domain.Session{}, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return domain.Session{}, ErrWeakPassword
	}
	displayName := strings.TrimSpace(input.DisplayName)

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Session{}, err
	}
	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	profile := domain.Profile{ID: user.ID, Email: emailAddr, DisplayName: displayName}

	if err := s.users.CreateWithProfile(ctx, user, profile); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.Session{}, ErrEmailTaken
		}
		return domain.Session{}, err
	}
	s.logger.Info("user signed up", zap.String("user_id", user.ID))
	return s.issueSession(user)
}

// SignIn verifica credenciales; recrea el perfil si la fila falta.
func (s *AuthService) SignIn(ctx context.Context, emailAddr, password string) (domain.Session, error) {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" || password == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return domain.Session{}, ErrRateLimited
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Session{}, ErrInvalidCredentials
		}
		return domain.Session{}, err
	}
	if user.PasswordHash == "" {
		return domain.Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, ErrInvalidCredentials
	}

	s.ensureProfile(ctx, user)
	return s.issueSession(user)
}

// Refresh rota el refresh token y devuelve la sesion renovada.
func (s *AuthService) Refresh(_ context.Context, refreshToken string) (domain.Session, error) {
	user, pair, err := s.jwt.RefreshPair(refreshToken)
	if err != nil {
		return domain.Session{}, err
	}
	return sessionFrom(user, pair), nil
}

// SignOut revoca el refresh token de la sesion.
func (s *AuthService) SignOut(_ context.Context, refreshToken string) error {
	return s.jwt.RevokeRefresh(refreshToken)
}

// CurrentUser devuelve la cuenta del titular del token.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// Profile devuelve la fila de perfil de un usuario.
func (s *AuthService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	return s.profiles.GetByID(ctx, userID)
}

func (s *AuthService) ensureProfile(ctx context.Context, user domain.User) {
	_, err := s.profiles.GetByID(ctx, user.ID)
	if err == nil {
		return
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("profile lookup failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	profile := domain.Profile{ID: user.ID, Email: user.Email, DisplayName: user.DisplayName}
	if err := s.profiles.Create(ctx, profile); err != nil && !errors.Is(err, domain.ErrConflict) {
		s.logger.Warn("profile repair failed", zap.String("user_id", user.ID), zap.Error(err))
		return
	}
	s.logger.Info("profile repaired", zap.String("user_id", user.ID))
}

func (s *AuthService) issueSession(user domain.User) (domain.Session, error) {
	if s.jwt == nil {
		return domain.Session{}, errors.New("jwt not configured")
	}
	pair, err := s.jwt.GeneratePair(user)
	if err != nil {
		return domain.Session{}, err
	}
	return sessionFrom(user, pair), nil
}

func sessionFrom(user domain.User, pair TokenPair) domain.Session {
	user.PasswordHash = ""
	return domain.Session{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		ExpiresAt:    pair.ExpiresAt,
	}
}

func normalizeEmail(raw string) string {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return ""
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return ""
	}
	return trimmed
}
