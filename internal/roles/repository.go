package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hireline/hireline/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	db dbtx
	tx db.TxBeginner
}

// NewRepository constructs a repository. tx may be nil when writes run
// without an explicit transaction, e.g. in tests.
func NewRepository(conn dbtx, tx db.TxBeginner) *Repository {
	return &Repository{db: conn, tx: tx}
}

// ListRoles returns all roles with their granted codes.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `
		SELECT r.id, r.name, r.description, r.created_at,
		       COALESCE(array_agg(p.code ORDER BY p.code) FILTER (WHERE p.code IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		GROUP BY r.id
		ORDER BY r.id`)
	if err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.Permissions); err != nil {
			return nil, fmt.Errorf("roles: scan: %w", err)
		}
		out = append(out, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roles: list: %w", err)
	}
	return out, nil
}

// GrantPermission attaches code to roleID. Granting twice is a no-op.
func (r *Repository) GrantPermission(ctx context.Context, roleID int64, code string) error {
	return r.write(ctx, func(q dbtx) error {
		if err := exists(ctx, q, `SELECT 1 FROM roles WHERE id = $1`, roleID); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, id FROM permissions WHERE code = $2
			ON CONFLICT DO NOTHING`, roleID, code)
		if err != nil {
			return fmt.Errorf("roles: grant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return exists(ctx, q, `SELECT 1 FROM permissions WHERE code = $1`, code)
		}
		return nil
	})
}

// RevokePermission detaches code from roleID.
func (r *Repository) RevokePermission(ctx context.Context, roleID int64, code string) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM role_permissions
		WHERE role_id = $1 AND permission_id = (SELECT id FROM permissions WHERE code = $2)`, roleID, code)
	if err != nil {
		return fmt.Errorf("roles: revoke: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOverride upserts a per-user grant or revocation of code.
func (r *Repository) SetOverride(ctx context.Context, userID int64, code string, granted bool) error {
	return r.write(ctx, func(q dbtx) error {
		if err := exists(ctx, q, `SELECT 1 FROM users WHERE id = $1`, userID); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `
			INSERT INTO user_permission_overrides (user_id, permission_id, granted)
			SELECT $1, id, $3 FROM permissions WHERE code = $2
			ON CONFLICT (user_id, permission_id) DO UPDATE SET granted = EXCLUDED.granted`, userID, code, granted)
		if err != nil {
			return fmt.Errorf("roles: set override: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) write(ctx context.Context, fn func(dbtx) error) error {
	if r.tx == nil {
		return fn(r.db)
	}
	return db.WithTx(ctx, r.tx, func(_ context.Context, tx pgx.Tx) error { return fn(tx) })
}

func exists(ctx context.Context, q dbtx, query string, arg any) error {
	var one int
	if err := q.QueryRow(ctx, query, arg).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("roles: lookup: %w", err)
	}
	return nil
}
