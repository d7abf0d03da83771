// Package user guards the admin screens. There is a single configured admin
// credential; it is stored hashed like any other user.
package user

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/go-spares/internal/core"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("user: invalid credentials")

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

type Service interface {
	Create(ctx context.Context, user CreateUserRequest) (User, error)
	Login(ctx context.Context, username, password string) (User, error)
	EnsureAdmin(ctx context.Context, username, password string) error
}

type Repository interface {
	Create(ctx context.Context, user *User, tx ...core.UpdateOptions) error
	Get(ctx context.Context, username string, tx ...core.QueryOptions) (User, error)
	Delete(ctx context.Context, username string, tx ...core.UpdateOptions) error
}

type service struct {
	repo Repository
}

func (s *service) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	if req.Username == "" {
		return User{}, core.NewValidationError("username", "is required")
	}
	if req.PlainTextPassword == "" {
		return User{}, core.NewValidationError("password", "is required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.PlainTextPassword), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.WithStack(err)
	}
	user := &User{
		Username:       req.Username,
		HashedPassword: string(hash),
		IsAdmin:        req.IsAdmin,
		Created:        time.Now(),
	}
	if err = s.repo.Create(ctx, user); err != nil {
		return User{}, errors.WithStack(err)
	}
	return *user, nil
}

func (s *service) Login(ctx context.Context, username, password string) (User, error) {
	u, err := s.repo.Get(ctx, username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	return u, nil
}

// EnsureAdmin makes sure the configured admin exists with the configured
// password, replacing a stale entry if the password was changed.
func (s *service) EnsureAdmin(ctx context.Context, username, password string) error {
	u, err := s.repo.Get(ctx, username)
	switch {
	case err == nil:
		if u.IsAdmin && bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) == nil {
			return nil
		}
		log.Info().Str("username", username).Msg("replacing admin user")
		if err = s.repo.Delete(ctx, username); err != nil {
			return errors.WithStack(err)
		}
	case !errors.Is(err, core.ErrNotFound):
		return errors.WithStack(err)
	}

	log.Info().Str("username", username).Msg("creating admin user")
	_, err = s.Create(ctx, CreateUserRequest{Username: username, IsAdmin: true, PlainTextPassword: password})
	return err
}
