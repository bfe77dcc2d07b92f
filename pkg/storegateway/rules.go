package storegateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/pkg/rule"
)

var _ rule.Store = (*Gateway)(nil)

func (g *Gateway) CreateRule(ctx context.Context, r rule.Rule) (*rule.Rule, error) {
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	dedup, _ := json.Marshal(r.DedupKey)
	_, err := g.client.ExecuteQuery(ctx, `
INSERT INTO rules (rule_id, tenant_scope, name, severity, enabled, compiled_query,
                    schedule_seconds, dedup_key, throttle_seconds, lag_seconds, mode,
                    created_at, updated_at)
VALUES (:rule_id, :tenant_scope, :name, :severity, :enabled, :compiled_query,
        :schedule_seconds, :dedup_key, :throttle_seconds, :lag_seconds, :mode,
        :created_at, :updated_at)`,
		map[string]any{
			"rule_id":          r.RuleID,
			"tenant_scope":     r.TenantScope,
			"name":             r.Name,
			"severity":         r.Severity,
			"enabled":          r.Enabled,
			"compiled_query":   r.CompiledQuery,
			"schedule_seconds": r.ScheduleSeconds,
			"dedup_key":        json.RawMessage(dedup),
			"throttle_seconds": r.ThrottleSeconds,
			"lag_seconds":      r.LagSeconds,
			"mode":             string(r.Mode),
			"created_at":       r.CreatedAt.UnixMilli(),
			"updated_at":       r.UpdatedAt.UnixMilli(),
		})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (g *Gateway) GetRule(ctx context.Context, ruleID string) (*rule.Rule, error) {
	rows, err := g.client.ExecuteQuery(ctx,
		"SELECT * FROM rules WHERE rule_id = :rule_id", map[string]any{"rule_id": ruleID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r, err := rowToRule(rows[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "decoding rule row", err)
	}
	return &r, nil
}

func (g *Gateway) UpdateRule(ctx context.Context, r rule.Rule) (*rule.Rule, error) {
	existing, err := g.GetRule(ctx, r.RuleID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()

	dedup, _ := json.Marshal(r.DedupKey)
	_, err = g.client.ExecuteQuery(ctx, `
ALTER TABLE rules UPDATE tenant_scope=:tenant_scope, name=:name, severity=:severity,
    enabled=:enabled, compiled_query=:compiled_query, schedule_seconds=:schedule_seconds,
    dedup_key=:dedup_key, throttle_seconds=:throttle_seconds, lag_seconds=:lag_seconds,
    mode=:mode, updated_at=:updated_at
WHERE rule_id = :rule_id`,
		map[string]any{
			"rule_id":          r.RuleID,
			"tenant_scope":     r.TenantScope,
			"name":             r.Name,
			"severity":         r.Severity,
			"enabled":          r.Enabled,
			"compiled_query":   r.CompiledQuery,
			"schedule_seconds": r.ScheduleSeconds,
			"dedup_key":        json.RawMessage(dedup),
			"throttle_seconds": r.ThrottleSeconds,
			"lag_seconds":      r.LagSeconds,
			"mode":             string(r.Mode),
			"updated_at":       r.UpdatedAt.UnixMilli(),
		})
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (g *Gateway) DeleteRule(ctx context.Context, ruleID string) error {
	_, err := g.client.ExecuteQuery(ctx,
		"ALTER TABLE rules DELETE WHERE rule_id = :rule_id", map[string]any{"rule_id": ruleID})
	return err
}

func (g *Gateway) ListRules(ctx context.Context) ([]rule.Rule, error) {
	rows, err := g.client.ExecuteQuery(ctx, "SELECT * FROM rules ORDER BY rule_id", nil)
	if err != nil {
		return nil, err
	}
	out := make([]rule.Rule, 0, len(rows))
	for _, row := range rows {
		r, err := rowToRule(row)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "decoding rule row", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// DueRules returns enabled rules whose last successful run is due, ordered
// (last_run ASC, rule_id) for fairness across the fleet.
func (g *Gateway) DueRules(ctx context.Context, now time.Time) ([]rule.Rule, error) {
	rows, err := g.client.ExecuteQuery(ctx, `
SELECT r.* FROM rules r
LEFT JOIN (
    SELECT rule_id, max(last_success_ts) AS last_run FROM rule_state GROUP BY rule_id
) s ON s.rule_id = r.rule_id
WHERE r.enabled = 1
  AND r.mode = 'batch'
  AND coalesce(s.last_run, 0) + r.schedule_seconds * 1000 <= :now
ORDER BY coalesce(s.last_run, 0) ASC, r.rule_id ASC`,
		map[string]any{"now": now.UnixMilli()})
	if err != nil {
		return nil, err
	}
	out := make([]rule.Rule, 0, len(rows))
	for _, row := range rows {
		r, err := rowToRule(row)
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInternal, "decoding rule row", err)
		}
		out = append(out, r)
	}
	return out, nil
}

// ActiveTenants lists tenants with at least one ingested event.
func (g *Gateway) ActiveTenants(ctx context.Context) ([]string, error) {
	rows, err := g.client.ExecuteQuery(ctx, "SELECT DISTINCT tenant_id FROM events", nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if t, ok := row["tenant_id"].(string); ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (g *Gateway) GetRuleState(ctx context.Context, ruleID, tenantID string) (*rule.State, error) {
	rows, err := g.client.ExecuteQuery(ctx,
		"SELECT * FROM rule_state WHERE rule_id = :rule_id AND tenant_id = :tenant_id",
		map[string]any{"rule_id": ruleID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	st, err := rowToRuleState(rows[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "decoding rule_state row", err)
	}
	return &st, nil
}

func (g *Gateway) UpsertRuleState(ctx context.Context, st rule.State) error {
	st.UpdatedAt = time.Now().UTC()
	_, err := g.client.ExecuteQuery(ctx, `
INSERT INTO rule_state (rule_id, tenant_id, watermark_ts, last_success_ts, last_error, updated_at)
VALUES (:rule_id, :tenant_id, :watermark_ts, :last_success_ts, :last_error, :updated_at)`,
		map[string]any{
			"rule_id":         st.RuleID,
			"tenant_id":       st.TenantID,
			"watermark_ts":    st.WatermarkTS.UnixMilli(),
			"last_success_ts": st.LastSuccessTS.UnixMilli(),
			"last_error":      st.LastError,
			"updated_at":      st.UpdatedAt.UnixMilli(),
		})
	return err
}

func rowToRule(row map[string]any) (rule.Rule, error) {
	var dedup []string
	if raw, ok := row["dedup_key"]; ok && raw != nil {
		switch v := raw.(type) {
		case string:
			_ = json.Unmarshal([]byte(v), &dedup)
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok {
					dedup = append(dedup, s)
				}
			}
		}
	}

	return rule.Rule{
		RuleID:          asString(row["rule_id"]),
		TenantScope:     asString(row["tenant_scope"]),
		Name:            asString(row["name"]),
		Severity:        asString(row["severity"]),
		Enabled:         asBool(row["enabled"]),
		CompiledQuery:   asString(row["compiled_query"]),
		ScheduleSeconds: int(asFloat(row["schedule_seconds"])),
		DedupKey:        dedup,
		ThrottleSeconds: int(asFloat(row["throttle_seconds"])),
		LagSeconds:      int(asFloat(row["lag_seconds"])),
		Mode:            rule.Mode(asString(row["mode"])),
		CreatedAt:       millisToTime(row["created_at"]),
		UpdatedAt:       millisToTime(row["updated_at"]),
	}, nil
}

func rowToRuleState(row map[string]any) (rule.State, error) {
	return rule.State{
		RuleID:        asString(row["rule_id"]),
		TenantID:      asString(row["tenant_id"]),
		WatermarkTS:   millisToTime(row["watermark_ts"]),
		LastSuccessTS: millisToTime(row["last_success_ts"]),
		LastError:     asString(row["last_error"]),
		UpdatedAt:     millisToTime(row["updated_at"]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asBool(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return false
	}
}

func asFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func millisToTime(v any) time.Time {
	f, ok := v.(float64)
	if !ok || f == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(f)).UTC()
}
