// Package rule owns CRUD for correlation rules and their per-tenant
// evaluation state.
package rule

import "time"

// Mode selects how a rule is scheduled.
type Mode string

const (
	ModeBatch  Mode = "batch"
	ModeStream Mode = "stream"
)

// TenantScope is either "all" (fan out per active tenant) or a single
// tenant ID.
const ScopeAll = "all"

// Rule is a correlation rule definition.
type Rule struct {
	RuleID          string    `json:"rule_id"`
	TenantScope     string    `json:"tenant_scope"`
	Name            string    `json:"name"`
	Severity        string    `json:"severity"`
	Enabled         bool      `json:"enabled"`
	CompiledQuery   string    `json:"compiled_query"`
	ScheduleSeconds int       `json:"schedule_seconds"`
	DedupKey        []string  `json:"dedup_key"`
	ThrottleSeconds int       `json:"throttle_seconds"`
	LagSeconds      int       `json:"lag_seconds"`
	Mode            Mode      `json:"mode"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DefaultLagSeconds is used when a rule omits lag_seconds.
const DefaultLagSeconds = 120

// State is the per-(rule,tenant) watermark and run bookkeeping row.
type State struct {
	RuleID        string    `json:"rule_id"`
	TenantID      string    `json:"tenant_id"`
	WatermarkTS   time.Time `json:"watermark_ts"`
	LastSuccessTS time.Time `json:"last_success_ts"`
	LastError     string    `json:"last_error,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// IsDue reports whether the rule is eligible to run at `now`, given the
// state's last successful run.
func IsDue(r Rule, st State, now time.Time) bool {
	if !r.Enabled {
		return false
	}
	next := st.LastSuccessTS.Add(time.Duration(r.ScheduleSeconds) * time.Second)
	return !now.Before(next)
}
