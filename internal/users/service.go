package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	Get(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ListByRoles(ctx context.Context, roles []Role) ([]User, error)
}

// Service is the read-only user directory used for authentication and
// notification recipients.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// FindByEmail returns a user by email.
func (s *Service) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.repo.FindByEmail(ctx, email)
}

// ListStaff returns active admin, backoffice and subadmin users.
func (s *Service) ListStaff(ctx context.Context) ([]User, error) {
	return s.repo.ListByRoles(ctx, StaffRoles)
}

// ListByRoles returns active users holding any of roles.
func (s *Service) ListByRoles(ctx context.Context, roles ...Role) ([]User, error) {
	return s.repo.ListByRoles(ctx, roles)
}
