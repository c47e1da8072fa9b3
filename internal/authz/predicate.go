package authz

import "fmt"

// Modules known to the engine. Entity kinds for AccessiblePredicate must come
// from this registry, never from request input directly.
const (
	ModuleCandidates  = "candidates"
	ModuleJobs        = "jobs"
	ModuleSubmissions = "submissions"
	ModuleCompanies   = "companies"
	ModuleContacts    = "contacts"
	ModuleInterviews  = "interviews"
	ModulePlacements  = "placements"
	ModuleUsers       = "users"
	ModuleReports     = "reports"
)

// Registry is the fixed set of entity kinds.
type Registry map[string]struct{}

// DefaultRegistry lists every module the application exposes.
func DefaultRegistry() Registry {
	return NewRegistry(
		ModuleCandidates,
		ModuleJobs,
		ModuleSubmissions,
		ModuleCompanies,
		ModuleContacts,
		ModuleInterviews,
		ModulePlacements,
		ModuleUsers,
		ModuleReports,
	)
}

// NewRegistry builds a registry from module names.
func NewRegistry(modules ...string) Registry {
	r := make(Registry, len(modules))
	for _, m := range modules {
		r[NormalizeToken(m)] = struct{}{}
	}
	return r
}

// Lookup returns the canonical module name when kind is registered.
func (r Registry) Lookup(kind string) (string, bool) {
	kind = NormalizeToken(kind)
	_, ok := r[kind]
	return kind, ok
}

// Module is Lookup returning ErrUnknownEntity for unregistered kinds.
func (r Registry) Module(kind string) (string, error) {
	module, ok := r.Lookup(kind)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownEntity, kind)
	}
	return module, nil
}

// PredicateKind enumerates row scopes.
type PredicateKind uint8

const (
	AlwaysFalse PredicateKind = iota
	AlwaysTrue
	OwnedByActor
)

func (k PredicateKind) String() string {
	switch k {
	case AlwaysTrue:
		return "always_true"
	case OwnedByActor:
		return "owned_by_actor"
	default:
		return "always_false"
	}
}

// AccessPredicate is a storage-agnostic description of accessible rows.
// ActorID is set only for OwnedByActor.
type AccessPredicate struct {
	Kind    PredicateKind
	ActorID int64
}

// Allows reports whether a row owned by ownerID passes the predicate.
func (p AccessPredicate) Allows(ownerID int64) bool {
	switch p.Kind {
	case AlwaysTrue:
		return true
	case OwnedByActor:
		return ownerID == p.ActorID
	default:
		return false
	}
}

// FilterRows applies p to rows in memory.
func FilterRows[T any](rows []T, p AccessPredicate, ownerOf func(T) int64) []T {
	out := make([]T, 0, len(rows))
	for _, row := range rows {
		if p.Allows(ownerOf(row)) {
			out = append(out, row)
		}
	}
	return out
}
