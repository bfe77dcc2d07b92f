package parser

import (
	"encoding/json"
	"testing"
)

func TestResolve_KnownSourceType(t *testing.T) {
	r := NewRegistry(nil)
	n := r.Resolve("generic_waf")
	res := n.Normalize("acme", json.RawMessage(`{"client_ip":"1.2.3.4","message":"blocked"}`))
	if res.Event.SourceIP != "1.2.3.4" {
		t.Errorf("SourceIP = %q, want 1.2.3.4", res.Event.SourceIP)
	}
	if res.Event.SourceType != "generic_waf" {
		t.Errorf("SourceType = %q, want generic_waf", res.Event.SourceType)
	}
}

func TestResolve_UnknownFallsBackToIdentity(t *testing.T) {
	r := NewRegistry(nil)
	n := r.Resolve("totally_unknown_vendor")
	res := n.Normalize("acme", json.RawMessage(`{"message":"m1"}`))
	if res.Event.Message != "m1" {
		t.Errorf("Message = %q, want m1", res.Event.Message)
	}
}

func TestNormalize_InvalidJSONReturnsParseError(t *testing.T) {
	r := NewRegistry(nil)
	n := r.Resolve("generic_edr")
	res := n.Normalize("acme", json.RawMessage(`not json`))
	if res.ParseErrorMsg == "" {
		t.Error("expected ParseErrorMsg for invalid JSON")
	}
}

func TestCoverage_PartialFieldsBelowWarningThreshold(t *testing.T) {
	r := NewRegistry(nil)
	n := r.Resolve("generic_waf")
	res := n.Normalize("acme", json.RawMessage(`{}`))
	if res.Coverage >= 0.3 {
		t.Errorf("coverage = %v, want < 0.3 for empty record", res.Coverage)
	}
}

func TestExtraNormalizerOverridesBuiltin(t *testing.T) {
	called := false
	extra := map[string]Normalizer{
		"generic_waf": NormalizerFunc(func(tenantID string, raw json.RawMessage) Result {
			called = true
			return Result{}
		}),
	}
	r := NewRegistry(extra)
	r.Resolve("generic_waf").Normalize("acme", json.RawMessage(`{}`))
	if !called {
		t.Error("expected custom normalizer override to be used")
	}
}
