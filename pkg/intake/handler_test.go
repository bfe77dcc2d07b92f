package intake

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sentineldb/siemcore/pkg/idempotency"
)

type fakeIdempStore struct {
	entries map[string]idempotency.Entry
}

func newFakeIdempStore() *fakeIdempStore {
	return &fakeIdempStore{entries: make(map[string]idempotency.Entry)}
}

func (s *fakeIdempStore) key(key, route string) string { return route + "|" + key }

func (s *fakeIdempStore) Get(ctx context.Context, key, route string) (*idempotency.Entry, error) {
	e, ok := s.entries[s.key(key, route)]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *fakeIdempStore) Put(ctx context.Context, e idempotency.Entry) error {
	s.entries[s.key(e.Key, e.Route)] = e
	return nil
}

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow(ctx context.Context, tenant string, epsLimit, burstLimit int) (bool, error) {
	return f.allow, nil
}

func newTestHandler(store *fakeStore, idempStore *fakeIdempStore, allow bool) *Handler {
	p := newTestPipeline(store)
	engine := idempotency.NewEngine(idempStore, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHandler(p, engine, fakeLimiter{allow: allow}, 1000, 2000, 2, 8, logger)
}

func TestHandler_NDJSON_Accepted(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store, newFakeIdempStore(), true)

	body := `{"tenant_id":"acme","event_timestamp":"2026-01-01T00:00:00Z","message":"m1"}` + "\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleNDJSON(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var result BatchResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Accepted != 1 {
		t.Errorf("Accepted = %d, want 1", result.Accepted)
	}
}

func TestHandler_Replay(t *testing.T) {
	store := &fakeStore{}
	idempStore := newFakeIdempStore()
	h := newTestHandler(store, idempStore, true)

	body := `{"tenant_id":"acme","event_timestamp":"2026-01-01T00:00:00Z","message":"m1"}` + "\n"

	req1 := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson", strings.NewReader(body))
	req1.Header.Set("Idempotency-Key", "k1")
	rec1 := httptest.NewRecorder()
	h.handleNDJSON(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson", strings.NewReader(body))
	req2.Header.Set("Idempotency-Key", "k1")
	rec2 := httptest.NewRecorder()
	h.handleNDJSON(rec2, req2)

	if rec2.Code != http.StatusOK {
		t.Fatalf("replay status = %d, body = %s", rec2.Code, rec2.Body.String())
	}
	var result map[string]any
	if err := json.Unmarshal(rec2.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode replay response: %v", err)
	}
	if replayed, _ := result["replayed"].(bool); !replayed {
		t.Error("expected replayed = true")
	}
	if len(store.events) != 1 {
		t.Errorf("expected events inserted exactly once, got %d", len(store.events))
	}
}

func TestHandler_ConflictOnDifferentBody(t *testing.T) {
	store := &fakeStore{}
	idempStore := newFakeIdempStore()
	h := newTestHandler(store, idempStore, true)

	body1 := `{"tenant_id":"acme","event_timestamp":"2026-01-01T00:00:00Z","message":"m1"}` + "\n"
	req1 := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson", strings.NewReader(body1))
	req1.Header.Set("Idempotency-Key", "k1")
	rec1 := httptest.NewRecorder()
	h.handleNDJSON(rec1, req1)

	body2 := `{"tenant_id":"acme","event_timestamp":"2026-01-01T00:00:00Z","message":"different"}` + "\n"
	req2 := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson", strings.NewReader(body2))
	req2.Header.Set("Idempotency-Key", "k1")
	rec2 := httptest.NewRecorder()
	h.handleNDJSON(rec2, req2)

	if rec2.Code != http.StatusConflict {
		t.Fatalf("status = %d, body = %s", rec2.Code, rec2.Body.String())
	}
}

func TestHandler_RateLimited(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store, newFakeIdempStore(), false)

	body := `{"tenant_id":"acme","event_timestamp":"2026-01-01T00:00:00Z","message":"m1"}` + "\n"
	req := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/ndjson?tenant=acme", strings.NewReader(body))
	rec := httptest.NewRecorder()

	h.handleNDJSON(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if len(store.events) != 0 {
		t.Error("expected no events inserted on rate-limit denial")
	}
}

func TestHandler_Bulk_MalformedEnvelopeRejected(t *testing.T) {
	store := &fakeStore{}
	h := newTestHandler(store, newFakeIdempStore(), true)

	req := httptest.NewRequest(http.MethodPost, "/api/v2/ingest/bulk", strings.NewReader(`not an array`))
	rec := httptest.NewRecorder()

	h.handleBulk(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}
