package tenant

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_InjectsTenant(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderName, "acme")
	Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if got != "acme" {
		t.Errorf("tenant = %q, want %q", got, "acme")
	}
}

func TestMiddleware_NoHeaderLeavesContextEmpty(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if got != "" {
		t.Errorf("expected empty tenant, got %q", got)
	}
}
