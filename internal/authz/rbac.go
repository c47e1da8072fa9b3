package authz

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// PermissionRow is one catalog permission joined through role_permissions.
type PermissionRow struct {
	ID     int64  `json:"id" validate:"gt=0"`
	Code   string `json:"code" validate:"required"`
	Module string `json:"module" validate:"required,lowercase"`
	Action string `json:"action" validate:"required"`
}

// Override is a per-user grant or revocation of a catalog permission.
type Override struct {
	Permission PermissionRow
	Granted    bool
}

// CatalogStore reads the persisted RBAC model.
type CatalogStore interface {
	RolePermissions(ctx context.Context, roleID int64) ([]PermissionRow, error)
	UserOverrides(ctx context.Context, userID int64) ([]Override, error)
}

// RBACProvider resolves permissions from roles, permissions and
// role_permissions, optionally adjusted by per-user overrides.
type RBACProvider struct {
	store     CatalogStore
	overrides bool
	validate  *validator.Validate
}

// RBACOption customises an RBACProvider.
type RBACOption func(*RBACProvider)

// WithUserOverrides toggles consultation of user_permission_overrides.
func WithUserOverrides(enabled bool) RBACOption {
	return func(p *RBACProvider) {
		p.overrides = enabled
	}
}

// NewRBACProvider constructs the provider over store.
func NewRBACProvider(store CatalogStore, opts ...RBACOption) *RBACProvider {
	p := &RBACProvider{store: store, validate: validator.New()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PermissionsFor implements RuleProvider.
func (p *RBACProvider) PermissionsFor(ctx context.Context, actor *Actor) (PermissionSet, error) {
	src := actor.Source()
	if src.Kind != SourceKindRBAC {
		return PermissionSet{}, nil
	}
	rows, err := p.store.RolePermissions(ctx, src.RoleID)
	if err != nil {
		return nil, fmt.Errorf("authz: role %d permissions: %w", src.RoleID, err)
	}
	set := make(PermissionSet, len(rows))
	for _, row := range rows {
		code, err := p.parseRow(row)
		if err != nil {
			return nil, err
		}
		set[code] = struct{}{}
	}
	if !p.overrides {
		return set, nil
	}

	overrides, err := p.store.UserOverrides(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("authz: user %d overrides: %w", actor.ID, err)
	}
	for _, o := range overrides {
		code, err := p.parseRow(o.Permission)
		if err != nil {
			return nil, err
		}
		if o.Granted {
			set[code] = struct{}{}
		} else {
			delete(set, code)
		}
	}
	return set, nil
}

func (p *RBACProvider) parseRow(row PermissionRow) (Code, error) {
	if err := p.validate.Struct(row); err != nil {
		return Code{}, fmt.Errorf("%w: permission %d: %v", ErrMalformedRule, row.ID, err)
	}
	code, err := ParseCode(row.Code)
	if err != nil {
		return Code{}, err
	}
	if code.Module != NormalizeToken(row.Module) {
		return Code{}, fmt.Errorf("%w: permission %d code %q outside module %q", ErrMalformedRule, row.ID, row.Code, row.Module)
	}
	return code, nil
}
