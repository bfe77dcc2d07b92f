// Package event defines the normalized event shape shared by the intake
// pipeline, parser registry, and rule evaluator.
package event

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Severity is the normalized severity enum.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ValidSeverity reports whether s is one of the recognized severities.
func ValidSeverity(s Severity) bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// ID is an opaque 128-bit identifier, hex-encoded for transport and storage.
type ID [16]byte

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func (id ID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// TIHit is a single threat-intelligence indicator match against an event field.
type TIHit struct {
	Field     string `json:"field"`
	Indicator string `json:"indicator"`
	Source    string `json:"source_feed"`
}

// Event is the canonical, normalized event shape persisted to the store.
type Event struct {
	EventID            ID               `json:"event_id"`
	TenantID           string           `json:"tenant_id"`
	EventTimestamp     time.Time        `json:"event_timestamp"`
	IngestionTimestamp time.Time        `json:"ingestion_timestamp"`
	SourceType         string           `json:"source_type"`
	Severity           Severity         `json:"severity"`
	EventCategory      string           `json:"event_category,omitempty"`
	EventAction        string           `json:"event_action,omitempty"`
	EventOutcome       string           `json:"event_outcome,omitempty"`
	SourceIP           string           `json:"source_ip,omitempty"`
	DestinationIP      string           `json:"destination_ip,omitempty"`
	User               string           `json:"user,omitempty"`
	Host               string           `json:"host,omitempty"`
	Message            string           `json:"message,omitempty"`
	RawEvent           json.RawMessage  `json:"raw_event,omitempty"`
	ParsedFields       map[string]Value `json:"parsed_fields,omitempty"`
	TIHits             []TIHit          `json:"ti_hits,omitempty"`
	TIMatch            bool             `json:"ti_match"`
}

// SkewBound is the maximum amount ingestion_timestamp may precede
// event_timestamp before normalization is considered incorrect.
const SkewBound = 15 * time.Minute

// ClampWindow bounds how far event_timestamp may deviate from wall clock
// before it is clamped rather than quarantined, per the intake spec.
const (
	ClampPast   = 90 * 24 * time.Hour
	ClampFuture = 15 * time.Minute
)

// ClampTimestamp clamps t into [now-ClampPast, now+ClampFuture] and reports
// whether clamping occurred.
func ClampTimestamp(t, now time.Time) (time.Time, bool) {
	lo := now.Add(-ClampPast)
	hi := now.Add(ClampFuture)
	switch {
	case t.Before(lo):
		return lo, true
	case t.After(hi):
		return hi, true
	default:
		return t, false
	}
}

// DeriveEventID computes the deterministic 128-bit event_id hash used when a
// record arrives without one. Using (tenant_id, event_timestamp_ms,
// source_type, raw_event) guarantees collector-retry idempotence at the row
// level: retried deliveries of the same payload land on the same event_id.
func DeriveEventID(tenantID string, eventTimestamp time.Time, sourceType string, raw json.RawMessage) ID {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|", tenantID, eventTimestamp.UnixMilli(), sourceType)
	h.Write(raw)
	sum := h.Sum(nil)
	var id ID
	copy(id[:], sum[:16])
	return id
}
