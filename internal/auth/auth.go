// Package auth registers learners and maps bearer tokens to user IDs.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kalambet/tutord/internal/storage"
)

// DefaultTokenTTL is how long a login token stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Store is the persistence the service needs. *storage.Store implements it.
type Store interface {
	CreateUser(ctx context.Context, u storage.User) error
	GetUserByEmail(ctx context.Context, email string) (storage.User, error)
	CreateSession(ctx context.Context, s storage.Session) error
	GetSession(ctx context.Context, token string) (storage.Session, error)
	DeleteSession(ctx context.Context, token string) error
}

// Service implements signup, login and token resolution.
type Service struct {
	store Store
	ttl   time.Duration
	cost  int
	now   func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		ttl:   DefaultTokenTTL,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Signup registers a new user and returns its ID.
func (s *Service) Signup(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", ErrInvalidInput
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrInvalidInput
	}
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}

	u := storage.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("creating user: %w", err)
	}
	return u.ID, nil
}

// Login verifies the credentials and issues a new access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := s.now()
	sess := storage.Session{
		Token:     uuid.New().String(),
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return sess.Token, nil
}

// Resolve returns the user ID a live token belongs to.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	if _, err := uuid.Parse(token); err != nil {
		return "", ErrInvalidToken
	}
	sess, err := s.store.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", fmt.Errorf("looking up session: %w", err)
	}
	if !s.now().Before(sess.ExpiresAt) {
		return "", ErrInvalidToken
	}
	return sess.UserID, nil
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.store.DeleteSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrInvalidToken
	}
	return err
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidInput
	}
	return email, nil
}
