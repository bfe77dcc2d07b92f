package tenant

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := FromContext(ctx); got != "" {
		t.Fatalf("expected empty tenant, got %q", got)
	}

	ctx = NewContext(ctx, "acme")
	if got := FromContext(ctx); got != "acme" {
		t.Errorf("tenant = %q, want %q", got, "acme")
	}
}
