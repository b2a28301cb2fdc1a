package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/wanderlyst/tripmatch/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWeakPassword       = errors.New("password too short")
)

const (
	sessionTTL       = 30 * 24 * time.Hour
	sessionKeyPrefix = "session:"
	minPasswordLen   = 8
)

// generateSessionToken is swapped in tests for deterministic tokens.
var generateSessionToken = func() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type AuthService struct {
	users *UserService
	redis RedisClient
}

func NewAuthService(users *UserService, redis RedisClient) *AuthService {
	return &AuthService{users: users, redis: redis}
}

// Register creates a password-backed account and opens a session.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*models.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, "", ErrInvalidCredentials
	}
	if len(password) < minPasswordLen {
		return nil, "", ErrWeakPassword
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}
	hashStr := string(hash)

	user, err := s.users.Create(ctx, models.CreateUserParams{
		Email:        email,
		PasswordHash: &hashStr,
		Name:         name,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login verifies a password against the stored bcrypt hash and opens a
// session. Provider-only accounts have no hash and always fail here.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}
	if user.PasswordHash == nil || user.IsAssistant {
		return nil, "", ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.CreateSession(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// CreateSession stores a hashed token in redis and returns the raw token.
// Only the SHA-256 of the token ever touches the store.
func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := generateSessionToken()
	if err != nil {
		return "", err
	}

	if err := s.redis.Set(ctx, sessionKey(token), userID.String(), sessionTTL); err != nil {
		return "", fmt.Errorf("storing session: %w", err)
	}
	return token, nil
}

// ResolveSession maps a raw session token back to a user id, refreshing the
// session TTL on each hit.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrSessionNotFound
	}

	key := sessionKey(token)
	val, err := s.redis.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, ErrSessionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("loading session: %w", err)
	}

	userID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, ErrSessionNotFound
	}

	if err := s.redis.Expire(ctx, key, sessionTTL); err != nil {
		return uuid.Nil, fmt.Errorf("refreshing session: %w", err)
	}
	return userID, nil
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.redis.Del(ctx, sessionKey(token)); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func sessionKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return sessionKeyPrefix + hex.EncodeToString(sum[:])
}
