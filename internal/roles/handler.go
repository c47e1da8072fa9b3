package roles

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/platform/httpx"
)

// Handler manages role administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, authz: mw}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAction(authz.ModuleUsers, "view"))
		r.Get("/roles", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAction(authz.ModuleUsers, "edit"))
		r.Post("/roles/{id}/permissions", h.grant)
		r.Delete("/roles/{id}/permissions/{code}", h.revoke)
		r.Put("/users/{id}/overrides", h.override)
	})
}

type changeResponse struct {
	Code    string        `json:"code"`
	Granted bool          `json:"granted"`
	Grants  *authz.Grants `json:"grants,omitempty"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if roles == nil {
		roles = []Role{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": roles})
}

func (h *Handler) grant(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r)
	if !ok {
		return
	}
	var in GrantInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	code, err := h.service.Grant(r.Context(), roleID, in)
	if err != nil {
		h.fail(w, "grant role permission", err)
		return
	}
	h.logger.Info("role permission granted", slog.Int64("role_id", roleID), slog.String("code", code))
	h.respondChange(w, r, code, true)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	roleID, ok := pathID(w, r)
	if !ok {
		return
	}
	code := chi.URLParam(r, "code")
	if err := h.service.Revoke(r.Context(), roleID, code); err != nil {
		h.fail(w, "revoke role permission", err)
		return
	}
	h.logger.Info("role permission revoked", slog.Int64("role_id", roleID), slog.String("code", code))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) override(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r)
	if !ok {
		return
	}
	var in OverrideInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	code, err := h.service.Override(r.Context(), userID, in)
	if err != nil {
		h.fail(w, "set user override", err)
		return
	}
	h.logger.Info("user override set", slog.Int64("user_id", userID), slog.String("code", code), slog.Bool("granted", *in.Granted))
	h.respondChange(w, r, code, *in.Granted)
}

// respondChange drops the request's cached decisions so the echoed grants
// reflect the write.
func (h *Handler) respondChange(w http.ResponseWriter, r *http.Request, code string, granted bool) {
	resp := changeResponse{Code: code, Granted: granted}
	if d := authz.FromContext(r.Context()); d != nil {
		d.ClearCache()
		if grants, err := d.Grants(r.Context(), ""); err == nil {
			resp.Grants = &grants
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
