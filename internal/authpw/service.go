// Package authpw registers and authenticates username/password accounts.
package authpw

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"autodoc/api/internal/rbac"
	"autodoc/api/internal/store"
)

var (
	ErrMissingFields      = errors.New("username and password are required")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore is the account persistence the service needs.
type UserStore interface {
	UserExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, user store.User) error
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
}

type Service struct {
	store UserStore
}

func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// Register stores a new account. The role is always rbac.DefaultRole;
// callers cannot choose it.
func (s *Service) Register(ctx context.Context, username, password string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.User{}, ErrMissingFields
	}

	exists, err := s.store.UserExists(ctx, username)
	if err != nil {
		return store.User{}, fmt.Errorf("check username: %w", err)
	}
	if exists {
		return store.User{}, ErrUsernameTaken
	}

	record, err := HashPassword(password)
	if err != nil {
		return store.User{}, err
	}

	user := store.User{
		Username:     username,
		PasswordHash: record,
		Role:         string(rbac.DefaultRole),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		// lost a race with a concurrent registration of the same name
		if errors.Is(err, store.ErrConflict) {
			return store.User{}, ErrUsernameTaken
		}
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Authenticate returns the account when password matches. Unknown users and
// wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (store.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.TrimSpace(password) == "" {
		return store.User{}, ErrMissingFields
	}

	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		return store.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return store.User{}, fmt.Errorf("lookup user: %w", err)
	}
	if !VerifyPassword(password, user.PasswordHash) {
		return store.User{}, ErrInvalidCredentials
	}
	return user, nil
}
