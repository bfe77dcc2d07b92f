// Package evaluator builds and runs the per-rule alert-insertion query:
// an INSERT ... SELECT over the rule's compiled query, deduplicated via a
// LEFT ANTI JOIN against existing alerts within the throttle window.
package evaluator

import (
	"fmt"
	"strings"
	"time"

	"github.com/sentineldb/siemcore/pkg/alert"
	"github.com/sentineldb/siemcore/pkg/rule"
)

// BuildInsertQuery renders the store-native SQL text for one evaluation run
// of r over the window (lo, hi] for tenantID, along with its bound
// parameters. The dedup_key column list is substituted verbatim into the
// hash() calls, the GROUP BY, and the anti-join predicate; compiled_query
// is embedded unmodified as the inner subquery.
func BuildInsertQuery(r rule.Rule, tenantID string, lo, hi time.Time) (string, map[string]any) {
	dedupFields := strings.Join(r.DedupKey, ", ")
	alertKeyExpr := fmt.Sprintf("hash(:rule_id, %s)", dedupFields)

	maxRefs := alert.MaxEventRefs
	sql := fmt.Sprintf(`INSERT INTO alerts (alert_id, tenant_id, rule_id, alert_key, severity,
                    alert_timestamp, event_refs, status, created_at)
SELECT generate_id(), :tenant, :rule_id,
       %s,
       :severity, max(event_timestamp),
       array_slice(group_array(event_id), 0, :max_refs),
       'OPEN', now()
FROM ( %s ) m
LEFT ANTI JOIN alerts a
  ON a.tenant_id=:tenant AND a.rule_id=:rule_id
 AND a.alert_key = %s
 AND a.created_at > now() - :throttle_seconds
GROUP BY %s`, alertKeyExpr, r.CompiledQuery, alertKeyExpr, dedupFields)

	params := map[string]any{
		"tenant":           tenantID,
		"rule_id":          r.RuleID,
		"severity":         string(r.Severity),
		"max_refs":         maxRefs,
		"throttle_seconds": r.ThrottleSeconds,
		"lo":               lo.UnixMilli(),
		"hi":               hi.UnixMilli(),
	}
	return sql, params
}
