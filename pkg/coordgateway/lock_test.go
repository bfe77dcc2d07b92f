package coordgateway

import "testing"

func TestLockKey(t *testing.T) {
	got := LockKey("rule-1", "acme")
	want := "lock:rule:rule-1:acme"
	if got != want {
		t.Errorf("LockKey() = %q, want %q", got, want)
	}
}
