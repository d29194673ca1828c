package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"synergysphere/internal/domain"
)

const (
	refreshKeyPrefix    = "auth:refresh:"
	refreshStoreTimeout = 500 * time.Millisecond
)

// RefreshTokenStore registra los jti vigentes de refresh tokens.
// Un error devuelto por el store significa que no se pudo consultar,
// nunca que el token sea invalido: se clasifica como domain.ErrTransient.
type RefreshTokenStore interface {
	Store(jti, userID string, ttl time.Duration) error
	Exists(jti string) (bool, error)
	Revoke(jti string) error
}

type memoryRefreshTokenStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemoryRefreshTokenStore guarda los jti en memoria del proceso.
func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		items: make(map[string]time.Time),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryRefreshTokenStore) Store(jti, _ string, ttl time.Duration) error {
	jti = normalizeJTI(jti)
	if jti == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[jti] = s.now().Add(refreshTTLOrDefault(ttl))
	return nil
}

func (s *memoryRefreshTokenStore) Exists(jti string) (bool, error) {
	jti = normalizeJTI(jti)
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		delete(s.items, jti)
		return false, nil
	}
	return true, nil
}

func (s *memoryRefreshTokenStore) Revoke(jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, normalizeJTI(jti))
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisRefreshTokenStore struct {
	client  redisKVClient
	prefix  string
	timeout time.Duration
}

// NewRedisRefreshTokenStore comparte los jti entre instancias de la API.
func NewRedisRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{
		client:  client,
		prefix:  refreshKeyPrefix,
		timeout: refreshStoreTimeout,
	}
}

func (s *redisRefreshTokenStore) Store(jti, userID string, ttl time.Duration) error {
	jti = normalizeJTI(jti)
	if jti == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Set(ctx, s.prefix+jti, userID, refreshTTLOrDefault(ttl)).Err(); err != nil {
		return storeUnavailable("store", err)
	}
	return nil
}

func (s *redisRefreshTokenStore) Exists(jti string) (bool, error) {
	jti = normalizeJTI(jti)
	if jti == "" {
		return false, nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	n, err := s.client.Exists(ctx, s.prefix+jti).Result()
	if err != nil {
		return false, storeUnavailable("lookup", err)
	}
	return n > 0, nil
}

func (s *redisRefreshTokenStore) Revoke(jti string) error {
	jti = normalizeJTI(jti)
	if jti == "" {
		return nil
	}
	ctx, cancel := s.opContext()
	defer cancel()
	if err := s.client.Del(ctx, s.prefix+jti).Err(); err != nil {
		return storeUnavailable("revoke", err)
	}
	return nil
}

func (s *redisRefreshTokenStore) opContext() (context.Context, context.CancelFunc) {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = refreshStoreTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func storeUnavailable(op string, err error) error {
	return fmt.Errorf("refresh token %s: %w: %w", op, domain.ErrTransient, err)
}

func normalizeJTI(jti string) string {
	return strings.TrimSpace(jti)
}

func refreshTTLOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * 24 * time.Hour
	}
	return ttl
}
