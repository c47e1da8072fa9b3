package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
)

type ownerKind uint8

const (
	ownerNone ownerKind = iota
	ownerByID
	ownerByCode
)

// OwnerRef points at the owner of a resource. The zero value means no owner
// was supplied.
type OwnerRef struct {
	kind ownerKind
	id   int64
	code string
}

// NoOwner is the absent owner reference.
var NoOwner = OwnerRef{}

// OwnerID references an owner by numeric actor id.
func OwnerID(id int64) OwnerRef {
	return OwnerRef{kind: ownerByID, id: id}
}

// OwnerCode references an owner by the code recorded on the resource.
func OwnerCode(code string) OwnerRef {
	if code == "" {
		return NoOwner
	}
	return OwnerRef{kind: ownerByCode, code: code}
}

// Present reports whether an owner was supplied.
func (r OwnerRef) Present() bool {
	return r.kind != ownerNone
}

func (r OwnerRef) String() string {
	switch r.kind {
	case ownerByID:
		return "id:" + strconv.FormatInt(r.id, 10)
	case ownerByCode:
		return "code:" + r.code
	default:
		return ""
	}
}

// OwnerStore translates resource owner codes to actor ids.
type OwnerStore interface {
	OwnerIDByCode(ctx context.Context, code string) (int64, error)
}

// OwnershipResolver bridges numeric actor identity and code-based owner
// fields.
type OwnershipResolver struct {
	store  OwnerStore
	logger *slog.Logger
}

// NewOwnershipResolver constructs a resolver over store.
func NewOwnershipResolver(store OwnerStore, logger *slog.Logger) *OwnershipResolver {
	return &OwnershipResolver{store: store, logger: logger}
}

// Owns reports whether actorID owns the referenced resource. Lookup failures
// are logged and reported as not owned.
func (o *OwnershipResolver) Owns(ctx context.Context, actorID int64, ref OwnerRef) bool {
	owned, err := o.Check(ctx, actorID, ref)
	if err != nil {
		if o != nil && o.logger != nil {
			o.logger.Warn("authz owner lookup", slog.String("owner", ref.String()), slog.Any("error", err))
		}
		return false
	}
	return owned
}

// Check is Owns for callers that must tell "not owned" from a failed lookup.
// An owner code matching no user is not an error.
func (o *OwnershipResolver) Check(ctx context.Context, actorID int64, ref OwnerRef) (bool, error) {
	switch ref.kind {
	case ownerByID:
		return ref.id == actorID, nil
	case ownerByCode:
		if o == nil || o.store == nil {
			return false, nil
		}
		id, err := o.store.OwnerIDByCode(ctx, ref.code)
		if errors.Is(err, ErrUnknownOwner) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("authz: owner %s: %w", ref.code, err)
		}
		return id == actorID, nil
	default:
		return false, nil
	}
}
