// Package intake implements the ingest HTTP surface: idempotency check,
// per-tenant rate limiting, parse/validate/quarantine, normalization,
// threat-intel enrichment, event_id assignment, and batched persistence.
package intake

import (
	"context"
	"log/slog"
	"time"

	"github.com/sentineldb/siemcore/internal/telemetry"
	"github.com/sentineldb/siemcore/pkg/event"
	"github.com/sentineldb/siemcore/pkg/intel"
	"github.com/sentineldb/siemcore/pkg/parser"
)

// lowCoverageWarningThreshold is the coverage below which a normalized
// event is surfaced as a warning rather than silently accepted.
const lowCoverageWarningThreshold = 0.3

// EventStore is the persistence boundary the pipeline writes through.
type EventStore interface {
	InsertEvents(ctx context.Context, events []event.Event) error
	InsertQuarantine(ctx context.Context, records []event.QuarantineRecord) error
}

// BatchResult is the intake output contract.
type BatchResult struct {
	Accepted    int  `json:"accepted"`
	Quarantined int  `json:"quarantined"`
	Replayed    bool `json:"replayed"`
}

// Pipeline wires together the stages run over every ingested batch.
type Pipeline struct {
	store    EventStore
	registry *parser.Registry
	intel    *intel.Set
	logger   *slog.Logger
}

func NewPipeline(store EventStore, registry *parser.Registry, intelSet *intel.Set, logger *slog.Logger) *Pipeline {
	return &Pipeline{store: store, registry: registry, intel: intelSet, logger: logger}
}

// Run executes stages 3-7 of the intake contract over one batch of
// already-split record lines: parse + validate, normalize, intel enrich,
// assign event_id, and persist. Stages 1 (idempotency) and 2 (rate limit)
// are handled by the caller before Run is invoked, since they can short
// circuit the whole request without touching the store.
func (p *Pipeline) Run(ctx context.Context, tenantParam string, lines [][]byte) (BatchResult, error) {
	now := time.Now().UTC()

	var events []event.Event
	var quarantined []event.QuarantineRecord

	for _, line := range lines {
		fields, err := decodeLine(line)
		if err != nil {
			quarantined = append(quarantined, event.NewQuarantineRecord(tenantParam, "", event.ReasonInvalidJSON, line))
			continue
		}

		tenantID := fieldString(fields, "tenant_id")
		if tenantID == "" {
			tenantID = tenantParam
		}
		sourceType := fieldString(fields, "source_type")

		if tenantID == "" {
			quarantined = append(quarantined, event.NewQuarantineRecord("", sourceType, event.ReasonMissingTenant, line))
			continue
		}

		ts, ok := coerceTimestamp(fields)
		if !ok {
			reason := event.ReasonMissingTimestamp
			if _, present := fields["event_timestamp"]; present {
				reason = event.ReasonBadTimestamp
			}
			quarantined = append(quarantined, event.NewQuarantineRecord(tenantID, sourceType, reason, line))
			continue
		}

		clamped, wasClamped := event.ClampTimestamp(ts, now)

		normalizer := p.registry.Resolve(sourceType)
		result := normalizer.Normalize(tenantID, line)
		if result.Coverage < lowCoverageWarningThreshold {
			telemetry.LowCoverageNormalizeTotal.WithLabelValues(sourceType).Inc()
			if p.logger != nil {
				p.logger.Warn("low field coverage normalizing event",
					"source_type", sourceType, "tenant_id", tenantID, "coverage", result.Coverage)
			}
		}
		e := result.Event
		e.TenantID = tenantID
		e.EventTimestamp = clamped
		e.IngestionTimestamp = now
		if e.RawEvent == nil {
			e.RawEvent = line
		}
		if result.ParseErrorMsg != "" {
			e.ParsedFields = setParsedField(e.ParsedFields, "parse_error_msg", event.String(result.ParseErrorMsg))
		}
		if wasClamped {
			e.ParsedFields = setParsedField(e.ParsedFields, "clock_skew_fixed", event.Bool(true))
		}

		p.intel.Enrich(&e)

		var zero event.ID
		if e.EventID == zero {
			e.EventID = event.DeriveEventID(e.TenantID, e.EventTimestamp, e.SourceType, e.RawEvent)
		}

		events = append(events, e)
	}

	if len(quarantined) > 0 {
		if err := p.store.InsertQuarantine(ctx, quarantined); err != nil {
			return BatchResult{}, err
		}
		for _, q := range quarantined {
			telemetry.EventsQuarantinedTotal.WithLabelValues(string(q.Reason)).Inc()
		}
	}

	if len(events) > 0 {
		byTenant := make(map[string][]event.Event)
		var tenants []string
		for _, e := range events {
			if _, ok := byTenant[e.TenantID]; !ok {
				tenants = append(tenants, e.TenantID)
			}
			byTenant[e.TenantID] = append(byTenant[e.TenantID], e)
		}
		for _, tenant := range tenants {
			if err := p.store.InsertEvents(ctx, byTenant[tenant]); err != nil {
				return BatchResult{}, err
			}
		}
		for _, tenant := range tenants {
			telemetry.EventsAcceptedTotal.WithLabelValues(tenant).Add(float64(len(byTenant[tenant])))
		}
	}

	return BatchResult{Accepted: len(events), Quarantined: len(quarantined)}, nil
}

func setParsedField(m map[string]event.Value, key string, v event.Value) map[string]event.Value {
	if m == nil {
		m = make(map[string]event.Value, 1)
	}
	m[key] = v
	return m
}
