package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/fabline/fabline/internal/shared"
	"github.com/fabline/fabline/internal/users"
)

// UserLookup finds accounts by email.
type UserLookup interface {
	FindByEmail(ctx context.Context, email string) (*users.User, error)
}

// Service wraps authentication business rules.
type Service struct {
	users  UserLookup
	tokens *TokenStore
}

// NewService constructs a new Service.
func NewService(users UserLookup, tokens *TokenStore) *Service {
	return &Service{users: users, tokens: tokens}
}

// Session is the result of a successful login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Principal Principal `json:"principal"`
}

// Login validates email/password credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Active || !user.Role.IsValid() {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	p := Principal{UserID: user.ID, Role: user.Role}
	token, expiresAt, err := s.tokens.Issue(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: expiresAt, Principal: p}, nil
}

// Logout revokes token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// HashPassword returns a bcrypt hash for seeding accounts.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
