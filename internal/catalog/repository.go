// Package catalog reads the access-control tables: users, roles, the
// permission catalog and per-user overrides.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hireline/hireline/internal/authz"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("catalog: not found")

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Credentials are the login fields of a user account.
type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

// Repository implements authz.CatalogStore and authz.OwnerStore over Postgres.
type Repository struct {
	db     dbtx
	logger *slog.Logger
}

// NewRepository constructs a repository. db is usually a *pgxpool.Pool.
func NewRepository(db dbtx, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

const rolePermissionsSQL = `
SELECT p.id, p.code, p.module, p.action
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.code`

// RolePermissions returns every catalog row granted to roleID.
func (r *Repository) RolePermissions(ctx context.Context, roleID int64) ([]authz.PermissionRow, error) {
	rows, err := r.db.Query(ctx, rolePermissionsSQL, roleID)
	if err != nil {
		return nil, r.wrap("role permissions", err)
	}
	defer rows.Close()

	var out []authz.PermissionRow
	for rows.Next() {
		var p authz.PermissionRow
		if err := rows.Scan(&p.ID, &p.Code, &p.Module, &p.Action); err != nil {
			return nil, r.wrap("scan role permission", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("role permissions", err)
	}
	return out, nil
}

const userOverridesSQL = `
SELECT p.id, p.code, p.module, p.action, o.granted
FROM user_permission_overrides o
JOIN permissions p ON p.id = o.permission_id
WHERE o.user_id = $1
ORDER BY p.code`

// UserOverrides returns the per-user grants and revocations for userID.
func (r *Repository) UserOverrides(ctx context.Context, userID int64) ([]authz.Override, error) {
	rows, err := r.db.Query(ctx, userOverridesSQL, userID)
	if err != nil {
		return nil, r.wrap("user overrides", err)
	}
	defer rows.Close()

	var out []authz.Override
	for rows.Next() {
		var o authz.Override
		if err := rows.Scan(&o.Permission.ID, &o.Permission.Code, &o.Permission.Module, &o.Permission.Action, &o.Granted); err != nil {
			return nil, r.wrap("scan user override", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("user overrides", err)
	}
	return out, nil
}

// OwnerIDByCode maps the owner code stored on records to a user id.
func (r *Repository) OwnerIDByCode(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("%w: %w", ErrNotFound, authz.ErrUnknownOwner)
		}
		return 0, r.wrap("owner by code", err)
	}
	return id, nil
}

const actorSQL = `
SELECT u.id, u.code, COALESCE(u.level, ''), COALESCE(u.role_id, 0), COALESCE(r.name, '')
FROM users u
LEFT JOIN roles r ON r.id = u.role_id
WHERE u.is_active`

// UserByID loads the actor behind an authenticated session. Inactive users
// are reported as ErrNotFound.
func (r *Repository) UserByID(ctx context.Context, id int64) (*authz.Actor, error) {
	return r.actor(ctx, actorSQL+` AND u.id = $1`, id)
}

// UserByCode loads an active actor by user code.
func (r *Repository) UserByCode(ctx context.Context, code string) (*authz.Actor, error) {
	return r.actor(ctx, actorSQL+` AND u.code = $1`, code)
}

func (r *Repository) actor(ctx context.Context, query string, arg any) (*authz.Actor, error) {
	var a authz.Actor
	err := r.db.QueryRow(ctx, query, arg).Scan(&a.ID, &a.Code, &a.Level, &a.RoleID, &a.RoleName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.wrap("load user", err)
	}
	return &a, nil
}

// CredentialsByEmail returns the password hash for a login attempt.
func (r *Repository) CredentialsByEmail(ctx context.Context, email string) (*Credentials, error) {
	var c Credentials
	err := r.db.QueryRow(ctx,
		`SELECT id, password_hash, is_active FROM users WHERE lower(email) = lower($1)`, email,
	).Scan(&c.UserID, &c.PasswordHash, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, r.wrap("credentials", err)
	}
	return &c, nil
}

// ListPermissions returns the whole permission catalog, optionally limited to
// one module.
func (r *Repository) ListPermissions(ctx context.Context, module string) ([]authz.PermissionRow, error) {
	query := `SELECT id, code, module, action FROM permissions`
	var args []interface{}
	if module != "" {
		query += ` WHERE module = $1`
		args = append(args, module)
	}
	query += ` ORDER BY code`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.wrap("list permissions", err)
	}
	defer rows.Close()

	var out []authz.PermissionRow
	for rows.Next() {
		var p authz.PermissionRow
		if err := rows.Scan(&p.ID, &p.Code, &p.Module, &p.Action); err != nil {
			return nil, r.wrap("scan permission", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, r.wrap("list permissions", err)
	}
	return out, nil
}

func (r *Repository) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		r.logger.Error("catalog query failed",
			slog.String("op", op),
			slog.String("code", pgErr.Code),
			slog.String("table", pgErr.TableName),
			slog.String("message", pgErr.Message),
		)
	}
	return fmt.Errorf("catalog: %s: %w", op, err)
}

var (
	_ authz.CatalogStore = (*Repository)(nil)
	_ authz.OwnerStore   = (*Repository)(nil)
)
