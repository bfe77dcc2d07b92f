package rule

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/internal/httpserver"
)

// Handler exposes rule CRUD under /api/v2/rules.
type Handler struct {
	store  Store
	logger *slog.Logger
}

func NewHandler(store Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Mount registers rule routes onto r.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/rules", h.create)
	r.Get("/rules", h.list)
	r.Route("/rules/{ruleID}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rule := req.ToRule(uuid.NewString())
	if err := ValidateDedupKeySubset(rule); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	created, err := h.store.CreateRule(r.Context(), rule)
	if err != nil {
		h.logger.Error("creating rule", "error", err)
		httpserver.RespondAppError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(r.Context())
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusOK, map[string]any{"rules": rules, "count": len(rules)})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")
	rule, err := h.store.GetRule(r.Context(), ruleID)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if rule == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apperr.CodeNotFound), "rule not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, rule)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")

	var req UpdateRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rule := req.ToRule(ruleID)
	if err := ValidateDedupKeySubset(rule); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	updated, err := h.store.UpdateRule(r.Context(), rule)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if updated == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apperr.CodeNotFound), "rule not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, updated)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "ruleID")
	if err := h.store.DeleteRule(r.Context(), ruleID); err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	httpserver.Respond(w, http.StatusNoContent, nil)
}
