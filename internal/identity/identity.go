// Package identity resolves the authenticated actor from the request session
// and serves the JSON login endpoints that establish it.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/catalog"
	"github.com/hireline/hireline/internal/shared"
)

// UserLookup loads the actor record for a session user id.
type UserLookup interface {
	UserByID(ctx context.Context, id int64) (*authz.Actor, error)
}

// SessionIdentity implements authz.IdentityProvider over the request session.
type SessionIdentity struct {
	users  UserLookup
	logger *slog.Logger
}

// NewSessionIdentity constructs a SessionIdentity.
func NewSessionIdentity(users UserLookup, logger *slog.Logger) *SessionIdentity {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionIdentity{users: users, logger: logger}
}

// CurrentActor returns nil for anonymous requests and for sessions whose user
// has been deleted or deactivated.
func (s *SessionIdentity) CurrentActor(ctx context.Context) (*authz.Actor, error) {
	sess := shared.SessionFromContext(ctx)
	if sess == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.logger.Error("identity parse user id", slog.String("value", raw))
		return nil, fmt.Errorf("identity: session user %q: %w", raw, err)
	}
	actor, err := s.users.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity: load user %d: %w", id, err)
	}
	return actor, nil
}

var _ authz.IdentityProvider = (*SessionIdentity)(nil)
