package authz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// ============================================================================
// FAKE STORES
// ============================================================================

type fakeCatalog struct {
	mu        sync.Mutex
	roles     map[int64][]PermissionRow
	overrides map[int64][]Override
	nextID    int64

	roleReads     atomic.Int64
	overrideReads atomic.Int64

	// Error injection
	roleErr     error
	overrideErr error
	block       chan struct{}
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		roles:     make(map[int64][]PermissionRow),
		overrides: make(map[int64][]Override),
	}
}

func (f *fakeCatalog) row(code string) PermissionRow {
	f.nextID++
	parsed, err := ParseCode(code)
	if err != nil {
		panic(err)
	}
	return PermissionRow{ID: f.nextID, Code: code, Module: parsed.Module, Action: code[len(parsed.Module)+1:]}
}

func (f *fakeCatalog) grantRole(roleID int64, codes ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range codes {
		f.roles[roleID] = append(f.roles[roleID], f.row(c))
	}
}

func (f *fakeCatalog) override(userID int64, code string, granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[userID] = append(f.overrides[userID], Override{Permission: f.row(code), Granted: granted})
}

func (f *fakeCatalog) RolePermissions(ctx context.Context, roleID int64) ([]PermissionRow, error) {
	f.roleReads.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.roleErr != nil {
		return nil, f.roleErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PermissionRow(nil), f.roles[roleID]...), nil
}

func (f *fakeCatalog) UserOverrides(ctx context.Context, userID int64) ([]Override, error) {
	f.overrideReads.Add(1)
	if f.overrideErr != nil {
		return nil, f.overrideErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Override(nil), f.overrides[userID]...), nil
}

var errOwnerNotFound = fmt.Errorf("fake: %w", ErrUnknownOwner)

type fakeOwners struct {
	ids   map[string]int64
	reads atomic.Int64
	err   error
}

func (f *fakeOwners) OwnerIDByCode(ctx context.Context, code string) (int64, error) {
	f.reads.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	id, ok := f.ids[code]
	if !ok {
		return 0, errOwnerNotFound
	}
	return id, nil
}

type fakeIdentity struct {
	actor *Actor
	err   error
	calls atomic.Int64
}

func (f *fakeIdentity) CurrentActor(context.Context) (*Actor, error) {
	f.calls.Add(1)
	return f.actor, f.err
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) ObserveDecision(module, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[module+":"+outcome]++
}

func (r *countingRecorder) count(module, outcome string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outcomes[module+":"+outcome]
}
