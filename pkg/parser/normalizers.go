package parser

import (
	"encoding/json"
	"fmt"

	"github.com/sentineldb/siemcore/pkg/event"
)

// rawRecord is the superset of fields normalizers read from. Collectors
// rarely agree on field names, so each normalizer probes its own set of
// aliases rather than sharing one strict schema.
type rawRecord map[string]any

func decodeRaw(raw json.RawMessage) (rawRecord, error) {
	var m rawRecord
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func str(m rawRecord, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// normalizeIdentity is the built-in fallback for unknown source types: it
// copies recognized canonical field names verbatim. Other keys are not
// copied into parsed_fields; they remain only in raw_event.
func normalizeIdentity(tenantID string, raw json.RawMessage) Result {
	m, err := decodeRaw(raw)
	if err != nil {
		return Result{ParseErrorMsg: fmt.Sprintf("invalid JSON record: %v", err)}
	}

	e := event.Event{
		TenantID:      tenantID,
		SourceType:    str(m, "source_type"),
		EventCategory: str(m, "event_category"),
		EventAction:   str(m, "event_action"),
		EventOutcome:  str(m, "event_outcome"),
		SourceIP:      str(m, "source_ip"),
		DestinationIP: str(m, "destination_ip"),
		User:          str(m, "user"),
		Host:          str(m, "host"),
		Message:       str(m, "message"),
	}
	return Result{Event: e, Coverage: coverage(e)}
}

// normalizeGenericWAF maps a generic web-application-firewall record shape.
func normalizeGenericWAF(tenantID string, raw json.RawMessage) Result {
	m, err := decodeRaw(raw)
	if err != nil {
		return Result{ParseErrorMsg: fmt.Sprintf("invalid JSON record: %v", err)}
	}

	e := event.Event{
		TenantID:      tenantID,
		SourceType:    "generic_waf",
		EventCategory: "web",
		EventAction:   str(m, "action", "rule_action"),
		EventOutcome:  str(m, "outcome", "verdict"),
		SourceIP:      str(m, "client_ip", "src_ip", "source_ip"),
		DestinationIP: str(m, "server_ip", "dst_ip", "destination_ip"),
		User:          str(m, "user", "remote_user"),
		Host:          str(m, "host", "vhost"),
		Message:       str(m, "message", "rule_message", "msg"),
	}
	return Result{Event: e, Coverage: coverage(e)}
}

// normalizeGenericEDR maps a generic endpoint-detection-and-response record shape.
func normalizeGenericEDR(tenantID string, raw json.RawMessage) Result {
	m, err := decodeRaw(raw)
	if err != nil {
		return Result{ParseErrorMsg: fmt.Sprintf("invalid JSON record: %v", err)}
	}

	e := event.Event{
		TenantID:      tenantID,
		SourceType:    "generic_edr",
		EventCategory: "process",
		EventAction:   str(m, "action", "event_type"),
		EventOutcome:  str(m, "outcome", "detection_status"),
		Host:          str(m, "hostname", "host", "device_name"),
		User:          str(m, "username", "user"),
		Message:       str(m, "detection_name", "rule_name", "message"),
	}
	return Result{Event: e, Coverage: coverage(e)}
}

// coverage computes fields_set/total_canonical_fields across the fields a
// normalizer is responsible for populating.
func coverage(e event.Event) float64 {
	set := 0
	if e.EventCategory != "" {
		set++
	}
	if e.EventAction != "" {
		set++
	}
	if e.EventOutcome != "" {
		set++
	}
	if e.SourceIP != "" {
		set++
	}
	if e.DestinationIP != "" {
		set++
	}
	if e.User != "" {
		set++
	}
	if e.Host != "" {
		set++
	}
	if e.Message != "" {
		set++
	}
	if e.Severity != "" {
		set++
	}
	return float64(set) / float64(canonicalFieldCount)
}
