package rule

import (
	"fmt"
	"strings"

	"github.com/sentineldb/siemcore/internal/apperr"
)

// CreateRequest is the payload for creating a rule.
type CreateRequest struct {
	TenantScope     string   `json:"tenant_scope" validate:"required"`
	Name            string   `json:"name" validate:"required,min=1,max=200"`
	Severity        string   `json:"severity" validate:"required,oneof=info low medium high critical"`
	Enabled         bool     `json:"enabled"`
	CompiledQuery   string   `json:"compiled_query" validate:"required"`
	ScheduleSeconds int      `json:"schedule_seconds" validate:"required,gte=1"`
	DedupKey        []string `json:"dedup_key" validate:"required,min=1"`
	ThrottleSeconds int      `json:"throttle_seconds" validate:"gte=0"`
	LagSeconds      int      `json:"lag_seconds"`
	Mode            Mode     `json:"mode" validate:"omitempty,oneof=batch stream"`
}

// UpdateRequest is the payload for updating a rule. Fields mirror
// CreateRequest; the rule_id comes from the URL.
type UpdateRequest = CreateRequest

// ValidateDedupKeySubset best-effort verifies that every dedup_key column
// name appears as a literal token in compiled_query. This can't prove the
// rule actually projects those columns (the query is opaque store-native
// text) but it catches the common typo/rename mistake at create time.
func ValidateDedupKeySubset(r Rule) error {
	lower := strings.ToLower(r.CompiledQuery)
	for _, k := range r.DedupKey {
		if !strings.Contains(lower, strings.ToLower(k)) {
			return apperr.New(apperr.CodeValidation,
				fmt.Sprintf("dedup_key column %q not found in compiled_query", k))
		}
	}
	return nil
}

// ToRule fills in defaults and converts a request into a Rule.
func (req CreateRequest) ToRule(ruleID string) Rule {
	mode := req.Mode
	if mode == "" {
		mode = ModeBatch
	}
	lag := req.LagSeconds
	if lag <= 0 {
		lag = DefaultLagSeconds
	}
	return Rule{
		RuleID:          ruleID,
		TenantScope:     req.TenantScope,
		Name:            req.Name,
		Severity:        req.Severity,
		Enabled:         req.Enabled,
		CompiledQuery:   req.CompiledQuery,
		ScheduleSeconds: req.ScheduleSeconds,
		DedupKey:        req.DedupKey,
		ThrottleSeconds: req.ThrottleSeconds,
		LagSeconds:      lag,
		Mode:            mode,
	}
}
