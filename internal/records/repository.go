package records

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository reads record tables.
type Repository struct {
	db dbtx
}

// NewRepository constructs a repository.
func NewRepository(db dbtx) *Repository {
	return &Repository{db: db}
}

// List returns one page of records visible under req.Scope and the total
// number of visible rows.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Record, int, error) {
	t, ok := tables[req.Kind]
	if !ok {
		return nil, 0, fmt.Errorf("records: list %q: %w", req.Kind, ErrNotFound)
	}

	var conditions []string
	var args []interface{}
	argPos := 1

	scope, scopeArgs := ScopeClause(req.Scope, "owner_code", argPos)
	conditions = append(conditions, scope)
	args = append(args, scopeArgs...)
	argPos += len(scopeArgs)

	if req.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, req.Status)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("%s ILIKE $%d", t.title, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}
	whereClause := "WHERE " + strings.Join(conditions, " AND ")

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", t.name, whereClause)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("records: count %s: %w", t.name, err)
	}

	query := fmt.Sprintf(`
		SELECT id, %s, status, owner_code, created_at
		FROM %s
		%s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d OFFSET $%d`, t.title, t.name, whereClause, argPos, argPos+1)
	args = append(args, req.Limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("records: list %s: %w", t.name, err)
	}
	defer rows.Close()

	out := make([]Record, 0, req.Limit)
	for rows.Next() {
		rec := Record{Kind: req.Kind}
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Status, &rec.OwnerCode, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("records: scan %s: %w", t.name, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("records: list %s: %w", t.name, err)
	}
	return out, total, nil
}

// Get loads a single record by id without any access check.
func (r *Repository) Get(ctx context.Context, kind string, id int64) (*Record, error) {
	t, ok := tables[kind]
	if !ok {
		return nil, fmt.Errorf("records: get %q: %w", kind, ErrNotFound)
	}
	query := fmt.Sprintf(`SELECT id, %s, status, owner_code, created_at FROM %s WHERE id = $1`, t.title, t.name)
	rec := Record{Kind: kind}
	err := r.db.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Title, &rec.Status, &rec.OwnerCode, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("records: get %s: %w", t.name, err)
	}
	return &rec, nil
}
