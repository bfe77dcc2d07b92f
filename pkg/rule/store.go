package rule

import (
	"context"
	"time"
)

// Store is the persistence boundary for rules and rule state, implemented
// by the store gateway.
type Store interface {
	CreateRule(ctx context.Context, r Rule) (*Rule, error)
	GetRule(ctx context.Context, ruleID string) (*Rule, error)
	UpdateRule(ctx context.Context, r Rule) (*Rule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	ListRules(ctx context.Context) ([]Rule, error)

	// DueRules returns enabled rules whose last successful run is old
	// enough to run again, ordered (last_run ASC, rule_id) for fairness.
	DueRules(ctx context.Context, now time.Time) ([]Rule, error)

	// ActiveTenants lists tenants with at least one ingested event, used to
	// fan out tenant_scope="all" rules.
	ActiveTenants(ctx context.Context) ([]string, error)

	GetRuleState(ctx context.Context, ruleID, tenantID string) (*State, error)
	UpsertRuleState(ctx context.Context, st State) error
}
