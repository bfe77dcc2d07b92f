package event

import "testing"

func TestNewQuarantineRecord_TruncatesPayload(t *testing.T) {
	payload := make([]byte, maxQuarantinePayload+100)
	for i := range payload {
		payload[i] = 'a'
	}

	rec := NewQuarantineRecord("t", "ndjson", ReasonInvalidJSON, payload)
	if len(rec.Payload) != maxQuarantinePayload {
		t.Errorf("payload len = %d, want %d", len(rec.Payload), maxQuarantinePayload)
	}
	if rec.Reason != ReasonInvalidJSON {
		t.Errorf("reason = %q, want %q", rec.Reason, ReasonInvalidJSON)
	}
	if rec.ReceivedAt.IsZero() {
		t.Error("expected ReceivedAt to be set")
	}
}

func TestNewQuarantineRecord_ShortPayloadUnchanged(t *testing.T) {
	rec := NewQuarantineRecord("t", "ndjson", ReasonMissingTenant, []byte(`{"a":1}`))
	if string(rec.Payload) != `{"a":1}` {
		t.Errorf("payload = %s, want unchanged", rec.Payload)
	}
}
