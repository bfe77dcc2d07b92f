package intake

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/internal/httpserver"
	"github.com/sentineldb/siemcore/internal/telemetry"
	"github.com/sentineldb/siemcore/pkg/coordgateway"
	"github.com/sentineldb/siemcore/pkg/idempotency"
)

const maxIngestBody = 8 << 20 // 8 MiB

// RateLimiter is the subset of coordgateway.RateLimiter the handler needs.
type RateLimiter interface {
	Allow(ctx context.Context, tenant string, epsLimit, burstLimit int) (bool, error)
}

// Handler serves the NDJSON and bulk-JSON ingest endpoints.
type Handler struct {
	pipeline   *Pipeline
	idemp      *idempotency.Engine
	limiter    RateLimiter
	epsLimit   int
	burstLimit int
	pool       *workerPool
	logger     *slog.Logger
}

func NewHandler(pipeline *Pipeline, idemp *idempotency.Engine, limiter RateLimiter, epsLimit, burstLimit, workers, queueLen int, logger *slog.Logger) *Handler {
	return &Handler{
		pipeline:   pipeline,
		idemp:      idemp,
		limiter:    limiter,
		epsLimit:   epsLimit,
		burstLimit: burstLimit,
		pool:       newWorkerPool(workers, queueLen),
		logger:     logger,
	}
}

func (h *Handler) Mount(r chi.Router) {
	r.Post("/ingest/ndjson", h.handleNDJSON)
	r.Post("/ingest/bulk", h.handleBulk)
}

func (h *Handler) handleNDJSON(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, splitNDJSON)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, splitBulkArray)
}

// handle submits the request to the bounded worker pool, shedding with 429
// if the queue is already full, then blocks until the job completes.
func (h *Handler) handle(w http.ResponseWriter, r *http.Request, split func([]byte) ([][]byte, error)) {
	done := make(chan struct{})
	submitted := h.pool.trySubmit(func() {
		defer close(done)
		h.process(w, r, split)
	})
	if !submitted {
		httpserver.RespondError(w, http.StatusTooManyRequests, string(apperr.CodeRateLimited), "ingest queue is full")
		return
	}
	<-done
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request, split func([]byte) ([][]byte, error)) {
	ctx := r.Context()
	tenantParam := r.URL.Query().Get("tenant")
	route := r.URL.Path
	idempKey := r.Header.Get("Idempotency-Key")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "request body too large or unreadable")
		return
	}

	var bodyHash string
	if idempKey != "" {
		bodyHash, err = idempotency.CanonicalBodyHash(body)
		if err != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "could not hash request body")
			return
		}

		outcome, entry, err := h.idemp.Check(ctx, idempKey, route, bodyHash)
		if err != nil {
			httpserver.RespondAppError(w, err)
			return
		}
		switch outcome {
		case idempotency.OutcomeConflict:
			telemetry.IdempotencyConflictTotal.Inc()
			httpserver.RespondAppError(w, apperr.New(apperr.CodeConflict, "idempotency key already used with a different request body"))
			return
		case idempotency.OutcomeReplay:
			telemetry.IdempotencyReplayedTotal.Inc()
			if err := h.idemp.Touch(ctx, entry); err != nil {
				h.logger.Error("recording idempotency replay", "error", err, "key", idempKey, "route", route)
			}
			h.respondReplay(w, entry)
			return
		}
	}

	rateTenant := tenantParam
	if rateTenant == "" {
		rateTenant = "unknown"
	}
	allowed, err := h.limiter.Allow(ctx, rateTenant, h.epsLimit, h.burstLimit)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}
	if !allowed {
		telemetry.RateLimitedTotal.WithLabelValues(rateTenant).Inc()
		retryAfter := coordgateway.RetryAfterSeconds(h.epsLimit)
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		httpserver.RespondError(w, http.StatusTooManyRequests, string(apperr.CodeRateLimited), "rate limit exceeded")
		return
	}

	lines, err := split(body)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	result, err := h.pipeline.Run(ctx, tenantParam, lines)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	respBody, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("marshaling ingest response", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, string(apperr.CodeInternal), "internal error")
		return
	}

	if idempKey != "" {
		if err := h.idemp.Commit(ctx, idempKey, route, bodyHash, http.StatusOK, respBody, 0); err != nil {
			h.logger.Error("committing idempotency entry", "error", err, "key", idempKey, "route", route)
		}
	}

	httpserver.Respond(w, http.StatusOK, result)
}

// respondReplay writes the cached response for a replayed request,
// annotating it with replayed:true per the intake output contract.
func (h *Handler) respondReplay(w http.ResponseWriter, entry *idempotency.Entry) {
	var body map[string]any
	if err := json.Unmarshal(entry.Body, &body); err != nil || body == nil {
		body = map[string]any{}
	}
	body["replayed"] = true
	httpserver.Respond(w, entry.Status, body)
}
