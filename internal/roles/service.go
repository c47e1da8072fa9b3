package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/platform/httpx"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GrantPermission(ctx context.Context, roleID int64, code string) error
	RevokePermission(ctx context.Context, roleID int64, code string) error
	SetOverride(ctx context.Context, userID int64, code string, granted bool) error
}

// Service handles role business logic.
type Service struct {
	repo     RepositoryPort
	validate *validator.Validate
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, validate: validator.New()}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// Grant attaches a permission to a role.
func (s *Service) Grant(ctx context.Context, roleID int64, in GrantInput) (string, error) {
	code, err := s.canonical(in, in.Code)
	if err != nil {
		return "", err
	}
	return code, mapNotFound(s.repo.GrantPermission(ctx, roleID, code))
}

// Revoke detaches a permission from a role.
func (s *Service) Revoke(ctx context.Context, roleID int64, raw string) error {
	code, err := authz.ParseCode(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return mapNotFound(s.repo.RevokePermission(ctx, roleID, code.String()))
}

// Override grants or revokes a permission for a single user.
func (s *Service) Override(ctx context.Context, userID int64, in OverrideInput) (string, error) {
	code, err := s.canonical(in, in.Code)
	if err != nil {
		return "", err
	}
	return code, mapNotFound(s.repo.SetOverride(ctx, userID, code, *in.Granted))
}

// canonical validates the request body and rewrites the code into the form
// stored in the permissions table.
func (s *Service) canonical(in any, raw string) (string, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	code, err := authz.ParseCode(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return code.String(), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	}
	return err
}
