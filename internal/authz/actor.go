package authz

import (
	"context"
	"strconv"
)

// Legacy levels and RBAC role names that bypass every rule lookup.
const (
	LevelSuperAdmin = "super_admin"
	LevelAdmin      = "admin"
)

// Actor describes the authenticated identity attempting an operation.
type Actor struct {
	ID       int64
	Code     string
	Level    string
	RoleID   int64
	RoleName string
}

// IsAdmin reports whether the actor sits in the admin tier. Like rule
// dispatch, the RBAC role decides when one is assigned and the legacy level
// is ignored.
func (a *Actor) IsAdmin() bool {
	switch {
	case a == nil:
		return false
	case a.RoleID != 0:
		return isAdminName(a.RoleName)
	default:
		return isAdminName(a.Level)
	}
}

// Source resolves which rule provider governs the actor.
func (a *Actor) Source() RuleSource {
	switch {
	case a == nil:
		return RuleSource{}
	case a.RoleID != 0:
		return SourceRBAC(a.RoleID)
	case a.Level != "":
		return SourceLegacy(a.Level)
	default:
		return RuleSource{}
	}
}

func isAdminName(name string) bool {
	name = NormalizeToken(name)
	return name == LevelAdmin || name == LevelSuperAdmin
}

// IdentityProvider supplies the actor behind the current request. A nil
// actor with a nil error means the request is anonymous.
type IdentityProvider interface {
	CurrentActor(ctx context.Context) (*Actor, error)
}

// StaticIdentity is an IdentityProvider that always returns the same actor.
type StaticIdentity struct {
	Actor *Actor
}

// CurrentActor implements IdentityProvider.
func (s StaticIdentity) CurrentActor(context.Context) (*Actor, error) {
	return s.Actor, nil
}

// SourceKind tags a RuleSource.
type SourceKind uint8

const (
	SourceNone SourceKind = iota
	SourceKindRBAC
	SourceKindLegacy
)

// RuleSource is RBAC(roleID) | Legacy(level) | none.
type RuleSource struct {
	Kind   SourceKind
	RoleID int64
	Level  string
}

// SourceRBAC selects the persisted role model.
func SourceRBAC(roleID int64) RuleSource {
	return RuleSource{Kind: SourceKindRBAC, RoleID: roleID}
}

// SourceLegacy selects the static level table.
func SourceLegacy(level string) RuleSource {
	return RuleSource{Kind: SourceKindLegacy, Level: NormalizeToken(level)}
}

func (s RuleSource) String() string {
	switch s.Kind {
	case SourceKindRBAC:
		return "rbac:" + strconv.FormatInt(s.RoleID, 10)
	case SourceKindLegacy:
		return "legacy:" + s.Level
	default:
		return "none"
	}
}
