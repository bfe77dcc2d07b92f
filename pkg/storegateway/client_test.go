package storegateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentineldb/siemcore/internal/apperr"
)

func TestExecuteQuery_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("path = %s, want /query", r.URL.Path)
		}
		var req queryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Params["tenant"] != "acme" {
			t.Errorf("params[tenant] = %v, want acme", req.Params["tenant"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(queryResponse{Rows: []map[string]any{{"n": float64(3)}}})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	rows, err := c.ExecuteQuery(context.Background(), "SELECT count() AS n FROM events WHERE tenant_id = :tenant",
		map[string]any{"tenant": "acme"})
	if err != nil {
		t.Fatalf("ExecuteQuery() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["n"] != float64(3) {
		t.Errorf("rows = %v", rows)
	}
}

func TestExecuteQuery_UpstreamDownOn5xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.ExecuteQuery(context.Background(), "SELECT 1", nil)
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	if ae.Code != apperr.CodeUpstream {
		t.Errorf("code = %v, want %v", ae.Code, apperr.CodeUpstream)
	}
}

func TestExecuteQuery_QueryErrorOn400(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.ExecuteQuery(context.Background(), "SELECT bogus", nil)
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	if ae.Code != apperr.CodeQuery {
		t.Errorf("code = %v, want %v", ae.Code, apperr.CodeQuery)
	}
}

func TestExecuteQuery_CircuitOpensAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, FailThreshold: 2})
	ctx := context.Background()

	_, _ = c.ExecuteQuery(ctx, "SELECT 1", nil)
	_, _ = c.ExecuteQuery(ctx, "SELECT 1", nil)

	_, err := c.ExecuteQuery(ctx, "SELECT 1", nil)
	ae, ok := apperr.As(err)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %v", err)
	}
	if ae.Code != apperr.CodeUpstream {
		t.Errorf("code = %v, want %v", ae.Code, apperr.CodeUpstream)
	}
}

func TestInsertRows_NoopOnEmpty(t *testing.T) {
	c := New(Config{BaseURL: "http://unused.invalid"})
	if err := c.InsertRows(context.Background(), "events", nil); err != nil {
		t.Errorf("InsertRows() with no rows should be a no-op, got %v", err)
	}
}

func TestPing_UsesQueryEndpoint(t *testing.T) {
	var hit bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
		_ = json.NewEncoder(w).Encode(queryResponse{Rows: nil})
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if !hit {
		t.Error("expected ping to hit the query endpoint")
	}
}
