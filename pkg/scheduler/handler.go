package scheduler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/internal/httpserver"
)

// Handler exposes the on-demand run-now endpoint over the scheduler's lock
// path, so a forced run and a scheduled tick can never race each other.
type Handler struct {
	scheduler *Scheduler
}

func NewHandler(scheduler *Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/rules/{ruleID}/run-now", h.runNow)
}

type runNowResponse struct {
	InsertedAlerts int `json:"inserted_alerts"`
}

func (h *Handler) runNow(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")
	tenantID := r.URL.Query().Get("tenant")
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, string(apperr.CodeValidation), "tenant query parameter is required")
		return
	}

	inserted, conflict, err := h.scheduler.RunNow(r.Context(), ruleID, tenantID)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if conflict {
		httpserver.RespondError(w, http.StatusConflict, string(apperr.CodeConflict), "rule_busy")
		return
	}

	httpserver.Respond(w, http.StatusOK, runNowResponse{InsertedAlerts: inserted})
}
