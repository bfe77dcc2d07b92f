package alert

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/internal/httpserver"
	"github.com/sentineldb/siemcore/pkg/coordgateway"
	"github.com/sentineldb/siemcore/pkg/tenant"
)

// ListFilter narrows a List call to a status and/or a rule, after an
// optional created_at cursor, up to Limit alerts.
type ListFilter struct {
	Status   Status
	RuleID   string
	AfterTS  httpserver.Cursor
	HasAfter bool
	Limit    int
}

// Store is the persistence boundary the alert package depends on. It is
// implemented by the store gateway, which executes it as a SQL query
// against the columnar event/alert store.
type Store interface {
	ListAlerts(ctx context.Context, tenantID string, f ListFilter) ([]Alert, error)
	GetAlert(ctx context.Context, tenantID, alertID string) (*Alert, error)
	UpdateAlertStatus(ctx context.Context, tenantID, alertID string, status Status) (*Alert, error)
}

// ActivityRecorder appends a status-change record to an investigation
// activity feed. Implemented by the coordination gateway's Redis Stream
// wrapper; nil disables recording.
type ActivityRecorder interface {
	Enqueue(ctx context.Context, name string, maxLen int64, fields map[string]any) (string, error)
}

// ActivityReader reads back entries from an investigation activity feed.
// Implemented by the coordination gateway's Redis Stream wrapper; nil
// disables the activity endpoint.
type ActivityReader interface {
	Range(ctx context.Context, name, start, end string, count int64) ([]coordgateway.ActivityEntry, error)
}

const (
	activityStreamMaxLen  = 10000
	activityFeedPageLimit = 200
)

// Handler exposes the alert read/update surface under /api/v2/alerts.
type Handler struct {
	store          Store
	activity       ActivityRecorder
	activityReader ActivityReader
	logger         *slog.Logger
}

func NewHandler(store Store, activity ActivityRecorder, activityReader ActivityReader, logger *slog.Logger) *Handler {
	return &Handler{store: store, activity: activity, activityReader: activityReader, logger: logger}
}

// Mount registers alert routes onto r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/alerts", h.list)
	r.Get("/alerts/{alertID}", h.get)
	r.Get("/alerts/{alertID}/activity", h.activityFeed)
	r.Post("/alerts/{alertID}/ack", h.acknowledge)
	r.Post("/alerts/{alertID}/close", h.close)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.FromContext(r.Context())
	if tenantID == "" {
		httpserver.RespondError(w, http.StatusBadRequest, string(apperr.CodeValidation), "missing tenant context")
		return
	}

	params, err := httpserver.ParseCursorParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, string(apperr.CodeValidation), err.Error())
		return
	}

	f := ListFilter{Limit: params.Limit + 1}
	if params.After != nil {
		f.AfterTS = *params.After
		f.HasAfter = true
	}
	if status := r.URL.Query().Get("status"); status != "" {
		f.Status = Status(status)
	}
	if ruleID := r.URL.Query().Get("rule_id"); ruleID != "" {
		f.RuleID = ruleID
	}

	alerts, err := h.store.ListAlerts(r.Context(), tenantID, f)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	page := httpserver.NewCursorPage(alerts, params.Limit, func(a Alert) httpserver.Cursor {
		id, _ := uuid.Parse(a.AlertID)
		return httpserver.Cursor{CreatedAt: a.CreatedAt, ID: id}
	})
	httpserver.Respond(w, http.StatusOK, page)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.FromContext(r.Context())
	alertID := chi.URLParam(r, "alertID")

	a, err := h.store.GetAlert(r.Context(), tenantID, alertID)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if a == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apperr.CodeNotFound), "alert not found")
		return
	}
	httpserver.Respond(w, http.StatusOK, a)
}

// activityFeed reads back the recorded status-change history for one alert
// from its tenant's investigation activity stream.
func (h *Handler) activityFeed(w http.ResponseWriter, r *http.Request) {
	tenantID := tenant.FromContext(r.Context())
	alertID := chi.URLParam(r, "alertID")

	entries := []coordgateway.ActivityEntry{}
	if h.activityReader != nil {
		stream := "alerts:activity:" + tenantID
		all, err := h.activityReader.Range(r.Context(), stream, "-", "+", activityFeedPageLimit)
		if err != nil {
			httpserver.RespondAppError(w, err)
			return
		}
		for _, e := range all {
			if e.Fields["alert_id"] == alertID {
				entries = append(entries, e)
			}
		}
	}
	httpserver.Respond(w, http.StatusOK, entries)
}

func (h *Handler) recordActivity(ctx context.Context, tenantID, alertID string, status Status) {
	if h.activity == nil {
		return
	}
	stream := "alerts:activity:" + tenantID
	if _, err := h.activity.Enqueue(ctx, stream, activityStreamMaxLen, map[string]any{
		"alert_id": alertID,
		"status":   string(status),
	}); err != nil && h.logger != nil {
		h.logger.Warn("recording alert activity", "error", err, "alert_id", alertID)
	}
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusAcknowledged)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, StatusClosed)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, status Status) {
	tenantID := tenant.FromContext(r.Context())
	alertID := chi.URLParam(r, "alertID")

	a, err := h.store.UpdateAlertStatus(r.Context(), tenantID, alertID, status)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if a == nil {
		httpserver.RespondError(w, http.StatusNotFound, string(apperr.CodeNotFound), "alert not found")
		return
	}
	h.recordActivity(r.Context(), tenantID, alertID, status)
	httpserver.Respond(w, http.StatusOK, a)
}
