package event

import (
	"encoding/json"
	"time"
)

// QuarantineReason is the enum of reasons a record lands in quarantine
// instead of the event store.
type QuarantineReason string

const (
	ReasonMissingTenant    QuarantineReason = "missing_tenant"
	ReasonBadTimestamp     QuarantineReason = "bad_timestamp"
	ReasonMissingTimestamp QuarantineReason = "missing_timestamp"
	ReasonInvalidJSON      QuarantineReason = "invalid_json"
	ReasonSchemaMismatch   QuarantineReason = "schema_mismatch"
	ReasonRateLimitShed    QuarantineReason = "rate_limit_shed"
)

// maxQuarantinePayload bounds how much of the raw payload is retained.
const maxQuarantinePayload = 16 * 1024

// QuarantineRecord is a write-once landing zone entry for records that could
// not be normalized into an Event.
type QuarantineRecord struct {
	ReceivedAt time.Time        `json:"received_at"`
	TenantID   string           `json:"tenant_id,omitempty"`
	Source     string           `json:"source"`
	Reason     QuarantineReason `json:"reason"`
	Payload    json.RawMessage  `json:"payload"`
}

// NewQuarantineRecord builds a record, truncating payload to the bounded size.
func NewQuarantineRecord(tenantID, source string, reason QuarantineReason, payload []byte) QuarantineRecord {
	if len(payload) > maxQuarantinePayload {
		payload = payload[:maxQuarantinePayload]
	}
	return QuarantineRecord{
		ReceivedAt: time.Now().UTC(),
		TenantID:   tenantID,
		Source:     source,
		Reason:     reason,
		Payload:    json.RawMessage(payload),
	}
}
