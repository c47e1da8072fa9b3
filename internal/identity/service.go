package identity

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/hireline/hireline/internal/catalog"
	"github.com/hireline/hireline/internal/shared"
)

// CredentialStore looks up login credentials.
type CredentialStore interface {
	CredentialsByEmail(ctx context.Context, email string) (*catalog.Credentials, error)
}

// Service wraps authentication rules.
type Service struct {
	store CredentialStore
}

// NewService constructs a Service.
func NewService(store CredentialStore) *Service {
	return &Service{store: store}
}

// Authenticate validates email/password credentials and returns the user id.
func (s *Service) Authenticate(ctx context.Context, email, password string) (int64, error) {
	creds, err := s.store.CredentialsByEmail(ctx, email)
	if err != nil {
		return 0, shared.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return 0, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return 0, shared.ErrInvalidCredentials
	}
	return creds.UserID, nil
}
