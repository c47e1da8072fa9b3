package authz

import (
	"context"
	"sort"
)

// PermissionSet is the flattened set of codes granted to an actor.
type PermissionSet map[Code]struct{}

// NewPermissionSet builds a set from parsed codes.
func NewPermissionSet(codes ...Code) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, c := range codes {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether the exact code is present.
func (s PermissionSet) Has(c Code) bool {
	_, ok := s[c]
	return ok
}

// Unconditional reports whether the set grants (module, action) without an
// ownership condition, either unscoped or with ".all".
func (s PermissionSet) Unconditional(c Code) bool {
	base := c.Unscoped()
	return s.Has(base) || s.Has(base.WithScope(ScopeAll))
}

// Owned reports whether the set grants (module, action) on owned records.
func (s PermissionSet) Owned(c Code) bool {
	return s.Has(c.Unscoped().WithScope(ScopeOwn))
}

// Strings returns the canonical codes sorted, optionally limited to module.
func (s PermissionSet) Strings(module string) []string {
	out := make([]string, 0, len(s))
	for c := range s {
		if module != "" && c.Module != module {
			continue
		}
		out = append(out, c.String())
	}
	sort.Strings(out)
	return out
}

// RuleProvider loads the permission set governing an actor.
type RuleProvider interface {
	PermissionsFor(ctx context.Context, actor *Actor) (PermissionSet, error)
}

// ownerCheck is consulted only when a ".own" grant is the sole match.
type ownerCheck func() (bool, error)

// match is the single matching routine shared by every rule source. An error
// from owns is returned as is; the caller decides how to fail.
func match(set PermissionSet, req Code, ref OwnerRef, owns ownerCheck) (bool, string, error) {
	if set.Unconditional(req) {
		return true, "granted", nil
	}
	if req.Scope == ScopeAll {
		return false, "no unconditional grant", nil
	}
	if !set.Owned(req) {
		return false, "no matching grant", nil
	}
	if !ref.Present() {
		return false, "owner reference required", nil
	}
	owned, err := owns()
	if err != nil {
		return false, "owner lookup failed", err
	}
	if owned {
		return true, "granted on owned record", nil
	}
	return false, "record not owned", nil
}
