package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/medcart-backend/pkg/config"
	redisclient "github.com/angelmondragon/medcart-backend/pkg/redis"
)

const refreshTokenBytes = 32

var ErrInvalidRefreshToken = errors.New("invalid refresh token")

type sessionStore interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Take(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	AddMember(ctx context.Context, key string, ttl time.Duration, members ...string) error
	RemoveMember(ctx context.Context, key string, members ...string) error
	Members(ctx context.Context, key string) ([]string, error)
}

type sessionKeyer interface {
	AccessSessionKey(accessID string) string
	UserSessionsKey(userID string) string
}

// record is the value stored under an access session key.
type record struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
}

// Manager handles refresh token creation, storage, and rotation. Each refresh
// token is bound to one access token jti and one user.
type Manager struct {
	store sessionStore
	keyer sessionKeyer
	ttl   time.Duration
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// NewManager constructs a session manager backed by Redis.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if accessTTL := cfg.AccessTokenTTL(); ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: client, keyer: client, ttl: ttl}, nil
}

// Generate creates a refresh token for the user's access id.
func (m *Manager) Generate(ctx context.Context, userID uuid.UUID, accessID string) (string, error) {
	if strings.TrimSpace(accessID) == "" {
		return "", fmt.Errorf("access id is required")
	}
	token, err := generateRefreshToken()
	if err != nil {
		return "", err
	}
	if err := m.save(ctx, userID.String(), accessID, token); err != nil {
		return "", err
	}
	return token, nil
}

// Rotate validates the refresh token presented with oldAccessID, retires that
// session and issues a new access id and refresh token for the same user.
// Of two concurrent rotations with the same token only one succeeds.
func (m *Manager) Rotate(ctx context.Context, userID uuid.UUID, oldAccessID, provided string) (string, string, error) {
	if strings.TrimSpace(oldAccessID) == "" || strings.TrimSpace(provided) == "" {
		return "", "", ErrInvalidRefreshToken
	}
	raw, stored, err := m.load(ctx, oldAccessID)
	if err != nil {
		return "", "", err
	}
	if stored.UserID != userID.String() || subtle.ConstantTimeCompare([]byte(stored.Token), []byte(provided)) != 1 {
		return "", "", ErrInvalidRefreshToken
	}
	taken, err := m.store.Take(ctx, m.keyer.AccessSessionKey(oldAccessID))
	switch {
	case errors.Is(err, redislib.Nil):
		return "", "", ErrInvalidRefreshToken
	case err != nil:
		return "", "", err
	case taken != raw:
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.store.RemoveMember(ctx, m.keyer.UserSessionsKey(stored.UserID), oldAccessID); err != nil {
		return "", "", err
	}

	newAccessID := NewAccessID()
	newToken, err := generateRefreshToken()
	if err != nil {
		return "", "", err
	}
	if err := m.save(ctx, stored.UserID, newAccessID, newToken); err != nil {
		return "", "", err
	}
	return newAccessID, newToken, nil
}

// Revoke deletes the session tied to one access id.
func (m *Manager) Revoke(ctx context.Context, userID uuid.UUID, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return fmt.Errorf("access id is required")
	}
	return m.drop(ctx, userID.String(), accessID)
}

// RevokeAll signs the user out everywhere.
func (m *Manager) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	index := m.keyer.UserSessionsKey(userID.String())
	accessIDs, err := m.store.Members(ctx, index)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(accessIDs)+1)
	for _, id := range accessIDs {
		keys = append(keys, m.keyer.AccessSessionKey(id))
	}
	keys = append(keys, index)
	return m.store.Del(ctx, keys...)
}

// HasSession reports whether the access id still has an active refresh session.
func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, fmt.Errorf("access id is required")
	}
	if _, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		if errors.Is(err, redislib.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (m *Manager) save(ctx context.Context, userID, accessID, token string) error {
	payload, err := json.Marshal(record{UserID: userID, Token: token})
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, m.keyer.AccessSessionKey(accessID), string(payload), m.ttl); err != nil {
		return err
	}
	return m.store.AddMember(ctx, m.keyer.UserSessionsKey(userID), m.ttl, accessID)
}

func (m *Manager) load(ctx context.Context, accessID string) (string, record, error) {
	raw, err := m.store.Get(ctx, m.keyer.AccessSessionKey(accessID))
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", record{}, ErrInvalidRefreshToken
		}
		return "", record{}, err
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return "", record{}, ErrInvalidRefreshToken
	}
	return raw, rec, nil
}

func (m *Manager) drop(ctx context.Context, userID, accessID string) error {
	if err := m.store.Del(ctx, m.keyer.AccessSessionKey(accessID)); err != nil {
		return err
	}
	return m.store.RemoveMember(ctx, m.keyer.UserSessionsKey(userID), accessID)
}

// NewAccessID produces the identifier used as the JWT jti and session key.
func NewAccessID() string {
	return uuid.NewString()
}

func generateRefreshToken() (string, error) {
	bytes := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
