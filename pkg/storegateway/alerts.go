package storegateway

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/pkg/alert"
	"github.com/sentineldb/siemcore/pkg/event"
)

var _ alert.Store = (*Gateway)(nil)

func (g *Gateway) ListAlerts(ctx context.Context, tenantID string, f alert.ListFilter) ([]alert.Alert, error) {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM alerts WHERE tenant_id = :tenant_id")
	params := map[string]any{"tenant_id": tenantID, "limit": f.Limit}

	if f.Status != "" {
		sb.WriteString(" AND status = :status")
		params["status"] = string(f.Status)
	}
	if f.RuleID != "" {
		sb.WriteString(" AND rule_id = :rule_id")
		params["rule_id"] = f.RuleID
	}
	if f.HasAfter {
		sb.WriteString(" AND created_at > :after")
		params["after"] = f.AfterTS.CreatedAt.UnixMilli()
	}
	sb.WriteString(" ORDER BY created_at ASC LIMIT :limit")

	rows, err := g.client.ExecuteQuery(ctx, sb.String(), params)
	if err != nil {
		return nil, err
	}

	out := make([]alert.Alert, 0, len(rows))
	for _, row := range rows {
		a, err := rowToAlert(row)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "decoding alert row", err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (g *Gateway) GetAlert(ctx context.Context, tenantID, alertID string) (*alert.Alert, error) {
	rows, err := g.client.ExecuteQuery(ctx,
		"SELECT * FROM alerts WHERE tenant_id = :tenant_id AND alert_id = :alert_id",
		map[string]any{"tenant_id": tenantID, "alert_id": alertID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	a, err := rowToAlert(rows[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "decoding alert row", err)
	}
	return &a, nil
}

func (g *Gateway) UpdateAlertStatus(ctx context.Context, tenantID, alertID string, status alert.Status) (*alert.Alert, error) {
	existing, err := g.GetAlert(ctx, tenantID, alertID)
	if err != nil || existing == nil {
		return existing, err
	}

	_, err = g.client.ExecuteQuery(ctx,
		"ALTER TABLE alerts UPDATE status = :status WHERE tenant_id = :tenant_id AND alert_id = :alert_id",
		map[string]any{"status": string(status), "tenant_id": tenantID, "alert_id": alertID})
	if err != nil {
		return nil, err
	}
	existing.Status = status
	return existing, nil
}

func rowToAlert(row map[string]any) (alert.Alert, error) {
	var refs []event.ID
	if raw, ok := row["event_refs"]; ok && raw != nil {
		var hexRefs []string
		switch v := raw.(type) {
		case string:
			_ = json.Unmarshal([]byte(v), &hexRefs)
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok {
					hexRefs = append(hexRefs, s)
				}
			}
		}
		for _, h := range hexRefs {
			var id event.ID
			b := []byte(h)
			if len(b) == 32 {
				for i := 0; i < 16; i++ {
					var hi, lo byte
					hi = hexNibble(b[i*2])
					lo = hexNibble(b[i*2+1])
					id[i] = hi<<4 | lo
				}
			}
			refs = append(refs, id)
		}
	}

	return alert.Alert{
		AlertID:        asString(row["alert_id"]),
		TenantID:       asString(row["tenant_id"]),
		RuleID:         asString(row["rule_id"]),
		AlertKey:       asString(row["alert_key"]),
		Severity:       event.Severity(asString(row["severity"])),
		AlertTimestamp: millisToTime(row["alert_timestamp"]),
		EventRefs:      refs,
		Status:         alert.Status(asString(row["status"])),
		CreatedAt:      millisToTime(row["created_at"]),
	}, nil
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return 0
	}
}
