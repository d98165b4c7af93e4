package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 12 * time.Hour

// UserStore is the slice of the user repository the service needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	Get(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, u User) (int64, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// Service issues and validates bearer tokens backed by redis.
type Service struct {
	users  UserStore
	tokens *redis.Client
}

func NewService(users UserStore, tokens *redis.Client) *Service {
	return &Service{users: users, tokens: tokens}
}

func tokenKey(token string) string {
	return "auth:token:" + token
}

// Login checks the credentials and returns a fresh bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (string, *User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := newToken()
	if err != nil {
		return "", nil, err
	}
	if err := s.tokens.Set(ctx, tokenKey(token), user.ID, tokenTTL).Err(); err != nil {
		return "", nil, fmt.Errorf("store token: %w", err)
	}
	_ = s.users.TouchLastLogin(ctx, user.ID, time.Now().UTC())
	return token, user, nil
}

// Verify resolves a bearer token to its user and slides the expiry window.
func (s *Service) Verify(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrTokenInvalid
	}
	userID, err := s.tokens.Get(ctx, tokenKey(token)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, ErrTokenInvalid
	}
	if !user.IsActive {
		return nil, ErrTokenInvalid
	}
	_ = s.tokens.Expire(ctx, tokenKey(token), tokenTTL).Err()
	return user, nil
}

// Logout revokes a bearer token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Del(ctx, tokenKey(token)).Err()
}

// Register creates a new operator account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, username, fullName, password string) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id, err := s.users.Create(ctx, User{
		Username:     username,
		FullName:     fullName,
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	return s.users.Get(ctx, id)
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
