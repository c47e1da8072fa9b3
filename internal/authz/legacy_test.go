package authz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLegacyTableCompiles(t *testing.T) {
	provider, err := NewLegacyProvider(DefaultLegacyTable)
	require.NoError(t, err)

	set, err := provider.PermissionsFor(context.Background(), &Actor{ID: 1, Level: "Recruiter"})
	require.NoError(t, err)
	assert.True(t, set.Owned(Code{Module: ModuleCandidates, Action: "edit"}))
	assert.True(t, set.Has(Code{Module: ModuleCandidates, Action: "create"}))
	assert.False(t, set.Has(Code{Module: ModuleCandidates, Action: "delete"}))
}

func TestLegacyProviderIgnoresRBACActors(t *testing.T) {
	provider, err := NewLegacyProvider(DefaultLegacyTable)
	require.NoError(t, err)

	set, err := provider.PermissionsFor(context.Background(), &Actor{ID: 1, Level: "manager", RoleID: 4})
	require.NoError(t, err)
	assert.Empty(t, set)
}

func TestLoadLegacyTable(t *testing.T) {
	doc := `
coordinator:
  candidates: [view_all, edit_own, Create]
  jobs:
    - view-all
`
	table, err := LoadLegacyTable(strings.NewReader(doc))
	require.NoError(t, err)

	provider, err := NewLegacyProvider(table)
	require.NoError(t, err)
	set, err := provider.PermissionsFor(context.Background(), &Actor{ID: 3, Level: "coordinator"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"candidates.create",
		"candidates.edit.own",
		"candidates.view.all",
		"jobs.view.all",
	}, set.Strings(""))
}

func TestLoadLegacyTableRejectsBadInput(t *testing.T) {
	_, err := LoadLegacyTable(strings.NewReader("recruiter: [not, a, map"))
	assert.Error(t, err)

	_, err = NewLegacyProvider(LegacyTable{"recruiter": {"jobs": {"edit.too.many.own"}}})
	assert.ErrorIs(t, err, ErrMalformedRule)
}
