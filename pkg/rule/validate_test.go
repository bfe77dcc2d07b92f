package rule

import "testing"

func TestValidateDedupKeySubset(t *testing.T) {
	r := Rule{
		CompiledQuery: "SELECT event_id, event_timestamp, user, host FROM events WHERE tenant_id=:tenant",
		DedupKey:      []string{"user", "host"},
	}
	if err := ValidateDedupKeySubset(r); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidateDedupKeySubset_MissingColumn(t *testing.T) {
	r := Rule{
		CompiledQuery: "SELECT event_id, event_timestamp FROM events WHERE tenant_id=:tenant",
		DedupKey:      []string{"user"},
	}
	if err := ValidateDedupKeySubset(r); err == nil {
		t.Error("expected error for missing dedup_key column")
	}
}

func TestToRule_Defaults(t *testing.T) {
	req := CreateRequest{
		TenantScope:     ScopeAll,
		Name:            "r1",
		Severity:        "high",
		CompiledQuery:   "SELECT 1",
		ScheduleSeconds: 60,
		DedupKey:        []string{"user"},
	}
	r := req.ToRule("rule-1")
	if r.Mode != ModeBatch {
		t.Errorf("Mode = %q, want %q", r.Mode, ModeBatch)
	}
	if r.LagSeconds != DefaultLagSeconds {
		t.Errorf("LagSeconds = %d, want %d", r.LagSeconds, DefaultLagSeconds)
	}
}
