package tenant

import (
	"net/http"
)

// HeaderName is the header used to identify the calling tenant for the
// query/investigation API. Ingestion instead accepts tenant_id in the body
// or a `tenant` query parameter, per the intake contract.
const HeaderName = "X-Tenant-ID"

// Middleware resolves the tenant ID from HeaderName and injects it into the
// request context. It does not reject missing tenants itself — handlers
// that require one check tenant.FromContext and respond accordingly, since
// some routes (health, metrics) are tenant-agnostic.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderName); id != "" {
			r = r.WithContext(NewContext(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
