// Package alert defines the Alert data model and the list/read API over it.
package alert

import (
	"time"

	"github.com/sentineldb/siemcore/pkg/event"
)

// Status is the alert lifecycle status enum.
type Status string

const (
	StatusOpen         Status = "OPEN"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusClosed       Status = "CLOSED"
	StatusRolledBack   Status = "ROLLED_BACK"
)

// MaxEventRefs bounds how many contributing event IDs an alert retains.
const MaxEventRefs = 100

// Alert is a row in the alerts table, keyed by (tenant_id, rule_id,
// alert_key, bucketed alert_timestamp) for anti-join dedup.
type Alert struct {
	AlertID        string         `json:"alert_id"`
	TenantID       string         `json:"tenant_id"`
	RuleID         string         `json:"rule_id"`
	AlertKey       string         `json:"alert_key"`
	Severity       event.Severity `json:"severity"`
	AlertTimestamp time.Time      `json:"alert_timestamp"`
	EventRefs      []event.ID     `json:"event_refs"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
}
