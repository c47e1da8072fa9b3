package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/identity"
	"github.com/hireline/hireline/internal/observability"
	"github.com/hireline/hireline/internal/platform/httpx"
	"github.com/hireline/hireline/internal/records"
	"github.com/hireline/hireline/internal/roles"
	"github.com/hireline/hireline/internal/shared"
)

// Pinger reports dependency health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	SessionManager     *shared.SessionManager
	CSRFManager        *shared.CSRFManager
	AuthzMiddleware    authz.Middleware
	SessionHandler     *identity.Handler
	PermissionsHandler *authz.PermissionsHandler
	RecordsHandler     *records.Handler
	RolesHandler       *roles.Handler
	Metrics            *observability.Metrics
	Health             map[string]Pinger
}

// NewRouter constructs the chi.Router with Hireline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", healthHandler(params.Health))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		for _, mw := range MiddlewareStack(MiddlewareConfig{
			Logger:         params.Logger,
			Config:         params.Config,
			SessionManager: params.SessionManager,
			CSRFManager:    params.CSRFManager,
			Metrics:        params.Metrics,
			Authz:          params.AuthzMiddleware,
		}) {
			r.Use(mw)
		}
		r.Use(chimw.Logger)

		if params.SessionHandler != nil {
			r.Route("/api/session", params.SessionHandler.MountRoutes)
		}
		if params.PermissionsHandler != nil {
			r.Route("/api/me/permissions", params.PermissionsHandler.MountRoutes)
		}
		if params.RecordsHandler != nil {
			r.Route("/api/records", params.RecordsHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/api/admin", params.RolesHandler.MountRoutes)
		}
	})

	return r
}

func healthHandler(deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		for name, dep := range deps {
			if err := dep.Ping(r.Context()); err != nil {
				status[name] = err.Error()
				status["status"] = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		httpx.JSON(w, code, status)
	}
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping implements Pinger.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}
