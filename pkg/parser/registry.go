// Package parser resolves (tenant, source_type) to a Normalizer that maps
// a raw record into the canonical event shape.
package parser

import (
	"encoding/json"

	"github.com/sentineldb/siemcore/pkg/event"
)

// canonicalFieldCount is the number of top-level canonical fields coverage
// is measured against (excluding event_id/tenant_id/event_timestamp/
// ingestion_timestamp/raw_event, which are always populated by the
// pipeline rather than the normalizer).
const canonicalFieldCount = 9

// Result is what a Normalizer produces from one raw record.
type Result struct {
	Event         event.Event
	Coverage      float64
	ParseErrorMsg string
}

// Normalizer maps a raw record of a specific source_type into the
// canonical event shape. It never panics: on partial failure it returns
// whatever fields it could extract plus ParseErrorMsg.
type Normalizer interface {
	Normalize(tenantID string, raw json.RawMessage) Result
}

// NormalizerFunc adapts a function to a Normalizer.
type NormalizerFunc func(tenantID string, raw json.RawMessage) Result

func (f NormalizerFunc) Normalize(tenantID string, raw json.RawMessage) Result {
	return f(tenantID, raw)
}

// Registry is a copy-on-write map of source_type -> Normalizer, built at
// startup. There is no dynamic plugin loading: normalizers are compiled in.
type Registry struct {
	normalizers map[string]Normalizer
}

// NewRegistry builds a registry with the built-in normalizers plus any
// extras, keyed by source_type.
func NewRegistry(extra map[string]Normalizer) *Registry {
	m := map[string]Normalizer{
		"generic_waf": NormalizerFunc(normalizeGenericWAF),
		"generic_edr": NormalizerFunc(normalizeGenericEDR),
	}
	for k, v := range extra {
		m[k] = v
	}
	return &Registry{normalizers: m}
}

// Resolve returns the normalizer for source_type, falling back to the
// built-in identity normalizer for unknown types.
func (r *Registry) Resolve(sourceType string) Normalizer {
	if n, ok := r.normalizers[sourceType]; ok {
		return n
	}
	return NormalizerFunc(normalizeIdentity)
}
