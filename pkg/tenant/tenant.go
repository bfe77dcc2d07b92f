// Package tenant resolves and carries the tenant identity for a request.
// Tenancy here is a column value, not a schema or database: every query
// issued to the columnar store or the coordination store is scoped by a
// tenant_id predicate rather than by connection routing.
package tenant

import "context"

type contextKey string

const idKey contextKey = "tenant_id"

// NewContext stores the tenant ID in the context.
func NewContext(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, idKey, tenantID)
}

// FromContext extracts the tenant ID from the context, or "" if unset.
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(idKey).(string)
	return v
}
