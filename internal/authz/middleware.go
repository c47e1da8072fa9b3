package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hireline/hireline/internal/platform/httpx"
)

type decisionContextKey struct{}

// WithDecisionContext stores d in ctx.
func WithDecisionContext(ctx context.Context, d *DecisionContext) context.Context {
	return context.WithValue(ctx, decisionContextKey{}, d)
}

// FromContext extracts the request's DecisionContext, or nil.
func FromContext(ctx context.Context) *DecisionContext {
	d, _ := ctx.Value(decisionContextKey{}).(*DecisionContext)
	return d
}

// Middleware wires the engine into HTTP handlers.
type Middleware struct {
	Engine   *Engine
	Identity IdentityProvider
	Logger   *slog.Logger
}

// Attach gives every request a fresh DecisionContext.
func (m Middleware) Attach(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d := m.Engine.NewContext(m.Identity)
		next.ServeHTTP(w, r.WithContext(WithDecisionContext(r.Context(), d)))
	})
}

// RequireAction rejects requests whose actor may not perform action on module
// without regard to ownership. Handlers that know the record owner should call
// Require themselves.
func (m Middleware) RequireAction(module, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := FromContext(r.Context())
			if d == nil {
				if m.Logger != nil {
					m.Logger.Error("authz middleware not attached", slog.String("path", r.URL.Path))
				}
				httpx.RespondError(w, NewPermissionError(defaultDenialMessage(module, action)))
				return
			}
			if err := d.Require(r.Context(), module, action, NoOwner, ""); err != nil {
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
