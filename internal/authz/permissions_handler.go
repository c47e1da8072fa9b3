package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hireline/hireline/internal/platform/httpx"
)

// PermissionLister reads the persisted permission catalog.
type PermissionLister interface {
	ListPermissions(ctx context.Context, module string) ([]PermissionRow, error)
}

// PermissionsHandler exposes the caller's evaluated grants and the catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	catalog PermissionLister
	authz   Middleware
}

// NewPermissionsHandler builds a PermissionsHandler. catalog may be nil, in
// which case the catalog route is not mounted.
func NewPermissionsHandler(logger *slog.Logger, catalog PermissionLister, mw Middleware) *PermissionsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionsHandler{logger: logger, catalog: catalog, authz: mw}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.mine)
	if h.catalog != nil {
		r.With(h.authz.RequireAction(ModuleUsers, "view")).Get("/catalog", h.listCatalog)
	}
}

type grantsResponse struct {
	ActorID int64    `json:"actor_id"`
	Module  string   `json:"module,omitempty"`
	Admin   bool     `json:"admin"`
	Codes   []string `json:"codes"`
}

func (h *PermissionsHandler) mine(w http.ResponseWriter, r *http.Request) {
	d := FromContext(r.Context())
	if d == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	actor := d.Actor(r.Context())
	if actor == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	module := NormalizeToken(r.URL.Query().Get("module"))
	grants, err := d.Grants(r.Context(), module)
	if err != nil {
		h.logger.Error("authz list grants", slog.Int64("actor_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	codes := grants.Codes
	if codes == nil {
		codes = []string{}
	}
	httpx.JSON(w, http.StatusOK, grantsResponse{ActorID: actor.ID, Module: module, Admin: grants.Admin, Codes: codes})
}

func (h *PermissionsHandler) listCatalog(w http.ResponseWriter, r *http.Request) {
	rows, err := h.catalog.ListPermissions(r.Context(), NormalizeToken(r.URL.Query().Get("module")))
	if err != nil {
		h.logger.Error("authz list catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}
