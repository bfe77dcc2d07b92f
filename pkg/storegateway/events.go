package storegateway

import (
	"context"
	"encoding/json"

	"github.com/sentineldb/siemcore/pkg/event"
)

// Gateway adapts Client to the domain-specific store operations used by the
// intake pipeline, rule registry, rule evaluator, and alert API.
type Gateway struct {
	client *Client
}

func NewGateway(client *Client) *Gateway {
	return &Gateway{client: client}
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.client.Ping(ctx)
}

// ExecuteQuery runs arbitrary parameterized SQL text against the store,
// passed straight through to the underlying client. It exists so the rule
// evaluator can render and submit its own INSERT ... SELECT statements
// without the gateway needing a dedicated method per query shape.
func (g *Gateway) ExecuteQuery(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	return g.client.ExecuteQuery(ctx, sql, params)
}

// InsertEvents writes a batch of normalized events in one call, per the
// intake contract's "one batched call per tenant" requirement.
func (g *Gateway) InsertEvents(ctx context.Context, events []event.Event) error {
	rows := make([]map[string]any, 0, len(events))
	for _, e := range events {
		raw := json.RawMessage(e.RawEvent)
		if raw == nil {
			raw = json.RawMessage("{}")
		}
		rows = append(rows, map[string]any{
			"event_id":            e.EventID.String(),
			"tenant_id":           e.TenantID,
			"event_timestamp":     e.EventTimestamp.UnixMilli(),
			"ingestion_timestamp": e.IngestionTimestamp.UnixMilli(),
			"source_type":         e.SourceType,
			"severity":            string(e.Severity),
			"event_category":      e.EventCategory,
			"event_action":        e.EventAction,
			"event_outcome":       e.EventOutcome,
			"source_ip":           e.SourceIP,
			"destination_ip":      e.DestinationIP,
			"user":                e.User,
			"host":                e.Host,
			"message":             e.Message,
			"raw_event":           raw,
			"parsed_fields":       e.ParsedFields,
			"ti_hits":             e.TIHits,
			"ti_match":            e.TIMatch,
		})
	}
	return g.client.InsertRows(ctx, "events", rows)
}

// InsertQuarantine writes a batch of quarantine records.
func (g *Gateway) InsertQuarantine(ctx context.Context, records []event.QuarantineRecord) error {
	rows := make([]map[string]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			"received_at": r.ReceivedAt.UnixMilli(),
			"tenant_id":   r.TenantID,
			"source":      r.Source,
			"reason":      string(r.Reason),
			"payload":     json.RawMessage(r.Payload),
		})
	}
	return g.client.InsertRows(ctx, "events_quarantine", rows)
}

// CountEvents is a small convenience that counts a tenant's stored events;
// it is not part of the hot ingest path.
func (g *Gateway) CountEvents(ctx context.Context, tenantID string) (int64, error) {
	rows, err := g.client.ExecuteQuery(ctx,
		"SELECT count() AS n FROM events WHERE tenant_id = :tenant",
		map[string]any{"tenant": tenantID})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, _ := rows[0]["n"].(float64)
	return int64(n), nil
}
