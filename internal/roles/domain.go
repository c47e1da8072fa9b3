// Package roles administers the RBAC catalog: role grants and per-user
// permission overrides.
package roles

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a role, user or permission code does not exist.
var ErrNotFound = errors.New("roles: not found")

// Role is a persisted role with the permission codes it grants.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// GrantInput is the body of a role grant request.
type GrantInput struct {
	Code string `json:"code" validate:"required,max=120"`
}

// OverrideInput is the body of a user override request.
type OverrideInput struct {
	Code    string `json:"code" validate:"required,max=120"`
	Granted *bool  `json:"granted" validate:"required"`
}
