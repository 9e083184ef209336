package consistency

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gatehouse-fm/gatehouse/internal/audit"
	"github.com/gatehouse-fm/gatehouse/internal/auth"
	"github.com/gatehouse-fm/gatehouse/internal/platform/httpx"
)

// RunStore reads persisted sweep history.
type RunStore interface {
	ListRuns(ctx context.Context, limit int) ([]audit.Run, error)
	GetRun(ctx context.Context, id string) (audit.Run, []audit.ConflictRecord, error)
}

// Enqueuer submits a sweep to the background worker.
type Enqueuer interface {
	EnqueueSweep(ctx context.Context) (string, error)
}

// Handler exposes consistency checks over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	runs     RunStore
	enqueuer Enqueuer
	auth     auth.Middleware
}

// NewHandler builds a Handler. enqueuer may be nil; sweeps then always run inline.
func NewHandler(logger *slog.Logger, service *Service, runs RunStore, enqueuer Enqueuer, authmw auth.Middleware) *Handler {
	return &Handler{logger: logger, service: service, runs: runs, enqueuer: enqueuer, auth: authmw}
}

// MountRoutes registers consistency routes. Applying fixes and triggering
// sweeps is admin-only; inspection needs any valid token.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
		r.Get("/accounts/{id}", h.checkAccount)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.auth.RequireAdmin)
		r.Post("/sweep", h.sweep)
		r.Post("/accounts/{id}/resolve", h.resolveAccount)
	})
}

type resolvePayload struct {
	Apply bool `json:"apply"`
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("async") == "1" && h.enqueuer != nil {
		taskID, err := h.enqueuer.EnqueueSweep(r.Context())
		if err != nil {
			h.logger.Error("enqueue sweep", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
		return
	}

	summary, err := h.service.Sweep(r.Context())
	if err != nil {
		h.logger.Error("sweep", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, conflicts, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"run": run, "conflicts": conflicts})
}

func (h *Handler) checkAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	res, err := h.service.CheckAccount(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) resolveAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := h.accountID(w, r)
	if !ok {
		return
	}
	var payload resolvePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	resolution, err := h.service.Resolve(r.Context(), id, payload.Apply, auth.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("resolve account", slog.Int64("account", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolution)
}

func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "account id must be numeric")
		return 0, false
	}
	return id, true
}
