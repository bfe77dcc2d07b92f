package rule

import (
	"testing"
	"time"
)

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	r := Rule{Enabled: true, ScheduleSeconds: 60}
	st := State{LastSuccessTS: now.Add(-90 * time.Second)}
	if !IsDue(r, st, now) {
		t.Error("expected rule to be due")
	}

	st = State{LastSuccessTS: now.Add(-30 * time.Second)}
	if IsDue(r, st, now) {
		t.Error("expected rule not to be due yet")
	}

	r.Enabled = false
	st = State{LastSuccessTS: now.Add(-90 * time.Second)}
	if IsDue(r, st, now) {
		t.Error("disabled rule should never be due")
	}
}
