package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"tradesim/internal/models"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUsernameTaken    = errors.New("auth: username already taken")
	ErrPasswordPolicy   = errors.New("auth: password does not meet policy")
	ErrPasswordMismatch = errors.New("auth: passwords do not match")
	// ErrInvalidCredentials covers both unknown username and wrong
	// password so a caller cannot probe which usernames exist.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")
)

// Store is the subset of the user repository auth needs.
type Store interface {
	CreateUser(ctx context.Context, username, passwordHash string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
}

type Service struct {
	store Store
	log   *logrus.Logger
}

func New(store Store, log *logrus.Logger) *Service {
	return &Service{store: store, log: log}
}

// Register validates the password against policy, hashes it and creates
// the user. Only the bcrypt hash is ever stored.
func (s *Service) Register(ctx context.Context, username, password, confirmation string) (models.User, error) {
	username = strings.TrimSpace(username)
	if err := ValidatePassword(password); err != nil {
		return models.User{}, err
	}
	if password != confirmation {
		return models.User{}, ErrPasswordMismatch
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, string(hash))
	if err != nil {
		return models.User{}, err
	}
	s.log.Infof("registered user %q (id=%d)", user.Username, user.ID)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}
