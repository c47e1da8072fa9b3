package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireline/hireline/internal/authz"
)

// ============================================================================
// STUB DATABASE
// ============================================================================

type stubDB struct {
	rows     map[string][][]interface{}
	queryErr error
	lastSQL  string
	lastArgs []interface{}
}

func (s *stubDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (s *stubDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	s.lastSQL, s.lastArgs = sql, args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return &stubRows{values: s.match(sql), index: -1}, nil
}

func (s *stubDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	s.lastSQL, s.lastArgs = sql, args
	if s.queryErr != nil {
		return &stubRow{err: s.queryErr}
	}
	values := s.match(sql)
	if len(values) == 0 {
		return &stubRow{err: pgx.ErrNoRows}
	}
	return &stubRow{values: values[0]}
}

func (s *stubDB) match(sql string) [][]interface{} {
	for fragment, values := range s.rows {
		if strings.Contains(sql, fragment) {
			return values
		}
	}
	return nil
}

type stubRows struct {
	values [][]interface{}
	index  int
}

func (r *stubRows) Close()                                       { r.index = len(r.values) }
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.index+1 >= len(r.values) {
		r.index = len(r.values)
		return false
	}
	r.index++
	return true
}

func (r *stubRows) Scan(dest ...interface{}) error {
	if r.index < 0 || r.index >= len(r.values) {
		return fmt.Errorf("no row available")
	}
	return assign(r.values[r.index], dest)
}

func (r *stubRows) Values() ([]interface{}, error) {
	if r.index < 0 || r.index >= len(r.values) {
		return nil, fmt.Errorf("no row available")
	}
	return r.values[r.index], nil
}

type stubRow struct {
	values []interface{}
	err    error
}

func (r *stubRow) Scan(dest ...interface{}) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

func assign(values, dest []interface{}) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *int64:
			*d = v.(int64)
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		default:
			return fmt.Errorf("unsupported destination %T", dest[i])
		}
	}
	return nil
}

func newRepo(db *stubDB) *Repository {
	return NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// ============================================================================
// TESTS
// ============================================================================

func TestRolePermissions(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"FROM role_permissions": {
			{int64(1), "candidates.view.all", "candidates", "view.all"},
			{int64(2), "jobs.create", "jobs", "create"},
		},
	}}
	rows, err := newRepo(db).RolePermissions(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, []authz.PermissionRow{
		{ID: 1, Code: "candidates.view.all", Module: "candidates", Action: "view.all"},
		{ID: 2, Code: "jobs.create", Module: "jobs", Action: "create"},
	}, rows)
	assert.Equal(t, []interface{}{int64(4)}, db.lastArgs)
}

func TestUserOverrides(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"FROM user_permission_overrides": {
			{int64(9), "reports.view.all", "reports", "view.all", true},
			{int64(3), "jobs.delete", "jobs", "delete", false},
		},
	}}
	overrides, err := newRepo(db).UserOverrides(context.Background(), 12)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.True(t, overrides[0].Granted)
	assert.Equal(t, "reports.view.all", overrides[0].Permission.Code)
	assert.False(t, overrides[1].Granted)
}

func TestOwnerIDByCode(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"WHERE code = $1": {{int64(7)}},
	}}
	id, err := newRepo(db).OwnerIDByCode(context.Background(), "U-ALICE")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	_, err = newRepo(&stubDB{}).OwnerIDByCode(context.Background(), "U-NOBODY")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, authz.ErrUnknownOwner)
}

func TestUserByID(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"LEFT JOIN roles": {{int64(5), "U-5", "", int64(2), "admin"}},
	}}
	actor, err := newRepo(db).UserByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, &authz.Actor{ID: 5, Code: "U-5", RoleID: 2, RoleName: "admin"}, actor)
	assert.True(t, actor.IsAdmin())
	assert.Contains(t, db.lastSQL, "u.id = $1")

	_, err = newRepo(&stubDB{}).UserByCode(context.Background(), "U-6")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialsByEmail(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"password_hash": {{int64(3), "$2a$10$hash", true}},
	}}
	creds, err := newRepo(db).CredentialsByEmail(context.Background(), "Ann@Example.com")
	require.NoError(t, err)
	assert.Equal(t, &Credentials{UserID: 3, PasswordHash: "$2a$10$hash", IsActive: true}, creds)
}

func TestListPermissionsFiltersModule(t *testing.T) {
	db := &stubDB{rows: map[string][][]interface{}{
		"FROM permissions": {{int64(1), "jobs.create", "jobs", "create"}},
	}}
	repo := newRepo(db)

	rows, err := repo.ListPermissions(context.Background(), "jobs")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Contains(t, db.lastSQL, "WHERE module = $1")

	_, err = repo.ListPermissions(context.Background(), "")
	require.NoError(t, err)
	assert.NotContains(t, db.lastSQL, "WHERE")
	assert.Empty(t, db.lastArgs)
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "42P01", Message: `relation "permissions" does not exist`}
	db := &stubDB{queryErr: pgErr}
	repo := newRepo(db)

	_, err := repo.RolePermissions(context.Background(), 1)
	require.Error(t, err)
	var target *pgconn.PgError
	assert.True(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "catalog: role permissions")

	_, err = repo.OwnerIDByCode(context.Background(), "U-1")
	assert.False(t, errors.Is(err, ErrNotFound))
}
