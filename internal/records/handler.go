package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hireline/hireline/internal/authz"
	"github.com/hireline/hireline/internal/platform/httpx"
	"github.com/hireline/hireline/internal/shared"
)

// Store is the persistence used by Handler.
type Store interface {
	List(ctx context.Context, req ListRequest) ([]Record, int, error)
	Get(ctx context.Context, kind string, id int64) (*Record, error)
}

// Handler serves scoped record listings.
type Handler struct {
	logger   *slog.Logger
	store    Store
	registry authz.Registry
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, store Store, registry authz.Registry) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = authz.DefaultRegistry()
	}
	return &Handler{logger: logger, store: store, registry: registry}
}

// MountRoutes registers record routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.list)
	r.Get("/{kind}/{id}", h.show)
}

type listResponse struct {
	Data       []Record          `json:"data"`
	Scope      string            `json:"scope"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	module, d, err := h.resolve(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx := r.Context()
	scope := d.AccessiblePredicate(ctx, module)
	page := shared.PageFromQuery(r.URL.Query())
	if scope.Kind == authz.AlwaysFalse {
		httpx.JSON(w, http.StatusOK, listResponse{Data: []Record{}, Scope: scope.Kind.String(), Pagination: page})
		return
	}

	rows, total, err := h.store.List(ctx, ListRequest{
		Kind:   module,
		Scope:  scope,
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  page.PerPage,
		Offset: page.Offset(),
	})
	if err != nil {
		h.logger.Error("list records", slog.String("kind", module), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{
		Data:       rows,
		Scope:      scope.Kind.String(),
		Pagination: shared.NewPagination(page.Page, page.PerPage, total),
	})
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	module, d, err := h.resolve(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", httpx.ErrValidation))
		return
	}

	ctx := r.Context()
	rec, err := h.store.Get(ctx, module, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, fmt.Errorf("%s %d: %w", module, id, httpx.ErrNotFound))
			return
		}
		h.logger.Error("get record", slog.String("kind", module), slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if err := d.Require(ctx, module, "view", authz.OwnerCode(rec.OwnerCode), ""); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) resolve(r *http.Request) (string, *authz.DecisionContext, error) {
	module, err := h.registry.Module(chi.URLParam(r, "kind"))
	if err != nil || !Listable(module) {
		return "", nil, fmt.Errorf("%w: %s", httpx.ErrNotFound, chi.URLParam(r, "kind"))
	}
	d := authz.FromContext(r.Context())
	if d == nil || d.Actor(r.Context()) == nil {
		return "", nil, httpx.ErrUnauthorized
	}
	return module, d, nil
}
