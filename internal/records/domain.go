// Package records serves the recruiting records (candidates, jobs,
// submissions) with row-level scoping from the authorization engine.
package records

import (
	"errors"
	"time"

	"github.com/hireline/hireline/internal/authz"
)

// ErrNotFound indicates the record does not exist.
var ErrNotFound = errors.New("records: not found")

// Record is the common projection of every record table.
type Record struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	OwnerCode string    `json:"owner_code"`
	CreatedAt time.Time `json:"created_at"`
}

// ListRequest filters a listing.
type ListRequest struct {
	Kind   string
	Scope  authz.AccessPredicate
	Status string
	Search string
	Limit  int
	Offset int
}

type table struct {
	name  string
	title string
}

// tables maps modules to their storage. Kinds outside this map are
// registered with the engine but have no record listing.
var tables = map[string]table{
	authz.ModuleCandidates:  {name: "candidates", title: "full_name"},
	authz.ModuleJobs:        {name: "jobs", title: "title"},
	authz.ModuleSubmissions: {name: "submissions", title: "reference"},
}

// Listable reports whether kind has a backing table.
func Listable(kind string) bool {
	_, ok := tables[kind]
	return ok
}
