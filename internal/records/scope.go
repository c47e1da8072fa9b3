package records

import (
	"fmt"

	"github.com/hireline/hireline/internal/authz"
)

// ScopeClause renders an access predicate as a SQL boolean expression over
// ownerColumn. Positional arguments start at argPos; the returned args must be
// appended in order.
func ScopeClause(p authz.AccessPredicate, ownerColumn string, argPos int) (string, []interface{}) {
	switch p.Kind {
	case authz.AlwaysTrue:
		return "TRUE", nil
	case authz.OwnedByActor:
		return fmt.Sprintf("%s = (SELECT code FROM users WHERE id = $%d)", ownerColumn, argPos), []interface{}{p.ActorID}
	default:
		return "FALSE", nil
	}
}
