package evaluator

import (
	"context"
	"time"

	"github.com/sentineldb/siemcore/internal/telemetry"
	"github.com/sentineldb/siemcore/pkg/rule"
)

// Executor runs the rendered SQL against the store and returns whatever
// rows it yields; the evaluator treats a row with an "inserted" column as
// the affected-row count, falling back to the row count itself.
type Executor interface {
	ExecuteQuery(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error)
}

// Evaluator runs one rule-evaluation pass: watermark computation, query
// execution, and watermark advancement on success.
type Evaluator struct {
	executor Executor
	states   rule.Store
}

func NewEvaluator(executor Executor, states rule.Store) *Evaluator {
	return &Evaluator{executor: executor, states: states}
}

// Run evaluates r for tenantID at now, advancing the watermark on success.
// Returns the number of alerts inserted (0 for a no-op window).
func (e *Evaluator) Run(ctx context.Context, r rule.Rule, tenantID string, now time.Time) (int, error) {
	start := time.Now()

	st, err := e.states.GetRuleState(ctx, r.RuleID, tenantID)
	if err != nil {
		return 0, err
	}
	var lo time.Time
	if st != nil {
		lo = st.WatermarkTS
	}
	hi := now.Add(-time.Duration(r.LagSeconds) * time.Second)
	if !hi.After(lo) {
		telemetry.RuleRunsTotal.WithLabelValues("noop").Inc()
		return 0, nil
	}

	sql, params := BuildInsertQuery(r, tenantID, lo, hi)
	rows, execErr := e.executor.ExecuteQuery(ctx, sql, params)
	telemetry.RuleRunDuration.WithLabelValues(r.RuleID).Observe(time.Since(start).Seconds())

	if execErr != nil {
		telemetry.RuleRunsTotal.WithLabelValues("error").Inc()
		var lastSuccess time.Time
		if st != nil {
			lastSuccess = st.LastSuccessTS
		}
		_ = e.states.UpsertRuleState(ctx, rule.State{
			RuleID:        r.RuleID,
			TenantID:      tenantID,
			WatermarkTS:   lo,
			LastSuccessTS: lastSuccess,
			LastError:     execErr.Error(),
			UpdatedAt:     now,
		})
		return 0, execErr
	}

	inserted := insertedCount(rows)
	telemetry.RuleRunsTotal.WithLabelValues("success").Inc()
	if inserted > 0 {
		telemetry.AlertsInsertedTotal.WithLabelValues(r.RuleID).Add(float64(inserted))
	}

	if err := e.states.UpsertRuleState(ctx, rule.State{
		RuleID:        r.RuleID,
		TenantID:      tenantID,
		WatermarkTS:   hi,
		LastSuccessTS: now,
		UpdatedAt:     now,
	}); err != nil {
		return inserted, err
	}

	return inserted, nil
}

func insertedCount(rows []map[string]any) int {
	if len(rows) == 0 {
		return 0
	}
	if v, ok := rows[0]["inserted"]; ok {
		if f, ok := v.(float64); ok {
			return int(f)
		}
	}
	return len(rows)
}
