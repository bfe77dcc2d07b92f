package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sentineldb/siemcore/pkg/coordgateway"
	"github.com/sentineldb/siemcore/pkg/rule"
)

// newTestLocker returns a LockManager pointed at an address nothing is
// listening on, so every TryAcquire falls through to the process-local
// fallback path deterministically, without a live Redis instance.
func newTestLocker() *coordgateway.LockManager {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	return coordgateway.NewLockManager(rdb)
}

type fakeRuleStore struct {
	mu    sync.Mutex
	rules map[string]rule.Rule
	due   []rule.Rule
}

func newFakeRuleStore(rules ...rule.Rule) *fakeRuleStore {
	m := make(map[string]rule.Rule, len(rules))
	for _, r := range rules {
		m[r.RuleID] = r
	}
	return &fakeRuleStore{rules: m, due: rules}
}

func (f *fakeRuleStore) CreateRule(ctx context.Context, r rule.Rule) (*rule.Rule, error) { return nil, nil }
func (f *fakeRuleStore) UpdateRule(ctx context.Context, r rule.Rule) (*rule.Rule, error) { return nil, nil }
func (f *fakeRuleStore) DeleteRule(ctx context.Context, ruleID string) error             { return nil }
func (f *fakeRuleStore) ListRules(ctx context.Context) ([]rule.Rule, error)              { return nil, nil }
func (f *fakeRuleStore) ActiveTenants(ctx context.Context) ([]string, error)             { return []string{"acme"}, nil }
func (f *fakeRuleStore) GetRuleState(ctx context.Context, ruleID, tenantID string) (*rule.State, error) {
	return nil, nil
}
func (f *fakeRuleStore) UpsertRuleState(ctx context.Context, st rule.State) error { return nil }

func (f *fakeRuleStore) GetRule(ctx context.Context, ruleID string) (*rule.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[ruleID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRuleStore) DueRules(ctx context.Context, now time.Time) ([]rule.Rule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.due, nil
}

type fakeEvaluator struct {
	calls   int32
	insert  int
	err     error
	delay   time.Duration
}

func (f *fakeEvaluator) Run(ctx context.Context, r rule.Rule, tenantID string, now time.Time) (int, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return f.insert, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunNow_SuccessAndConflict(t *testing.T) {
	r := rule.Rule{RuleID: "r1", TenantScope: "acme", Enabled: true, ScheduleSeconds: 60}
	store := newFakeRuleStore(r)
	eval := &fakeEvaluator{insert: 3}
	s := NewScheduler(store, newTestLocker(), eval, 2, time.Second, testLogger())

	inserted, conflict, err := s.RunNow(context.Background(), "r1", "acme")
	if err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if conflict {
		t.Fatal("expected no conflict on first call")
	}
	if inserted != 3 {
		t.Errorf("inserted = %d, want 3", inserted)
	}
}

func TestRunNow_UnknownRule(t *testing.T) {
	store := newFakeRuleStore()
	eval := &fakeEvaluator{}
	s := NewScheduler(store, newTestLocker(), eval, 2, time.Second, testLogger())

	_, _, err := s.RunNow(context.Background(), "missing", "acme")
	if err == nil {
		t.Fatal("expected error for unknown rule")
	}
}

func TestRunNow_ConcurrentCallsOneWinsOneConflicts(t *testing.T) {
	r := rule.Rule{RuleID: "r1", TenantScope: "acme", Enabled: true, ScheduleSeconds: 60}
	store := newFakeRuleStore(r)
	eval := &fakeEvaluator{insert: 1, delay: 50 * time.Millisecond}
	s := NewScheduler(store, newTestLocker(), eval, 2, time.Second, testLogger())

	var wg sync.WaitGroup
	results := make([]bool, 2) // conflict flags
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, conflict, err := s.RunNow(context.Background(), "r1", "acme")
			results[i] = conflict
			errs[i] = err
		}()
	}
	wg.Wait()

	conflicts := 0
	for i, c := range results {
		if errs[i] != nil {
			t.Fatalf("unexpected error: %v", errs[i])
		}
		if c {
			conflicts++
		}
	}
	if conflicts != 1 {
		t.Errorf("expected exactly one conflict, got %d", conflicts)
	}
}

func TestScheduler_BackoffSkipsRetryUntilWindowElapses(t *testing.T) {
	r := rule.Rule{RuleID: "r1", TenantScope: "acme", Enabled: true, ScheduleSeconds: 1}
	s := NewScheduler(newFakeRuleStore(r), newTestLocker(), &fakeEvaluator{}, 1, time.Second, testLogger())

	now := time.Now().UTC()
	s.recordFailure("r1", "acme", 1)
	if !s.inBackoff("r1", "acme", now) {
		t.Fatal("expected rule to be in backoff immediately after a failure")
	}
	if s.inBackoff("r1", "acme", now.Add(10*time.Second)) {
		t.Fatal("expected backoff to have elapsed after 10s for a 1s schedule")
	}
}

func TestScheduler_ClearBackoffAllowsImmediateRetry(t *testing.T) {
	s := NewScheduler(newFakeRuleStore(), newTestLocker(), &fakeEvaluator{}, 1, time.Second, testLogger())
	now := time.Now().UTC()
	s.recordFailure("r1", "acme", 60)
	s.clearBackoff("r1", "acme")
	if s.inBackoff("r1", "acme", now) {
		t.Fatal("expected backoff to be cleared")
	}
}
