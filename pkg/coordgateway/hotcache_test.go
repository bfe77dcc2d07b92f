package coordgateway

import "testing"

func TestIdempKey(t *testing.T) {
	got := idempKey("/api/v2/ingest/ndjson", "key-1")
	want := "idemp:/api/v2/ingest/ndjson:key-1"
	if got != want {
		t.Errorf("idempKey() = %q, want %q", got, want)
	}
}
