// Package scheduler drives periodic rule evaluation: a tick loop fetches
// due rules, fans them out per active tenant, and runs each under a
// single-flight lock so at most one executor evaluates a given
// (rule, tenant) at a time across the fleet.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sentineldb/siemcore/internal/apperr"
	"github.com/sentineldb/siemcore/internal/telemetry"
	"github.com/sentineldb/siemcore/pkg/coordgateway"
	"github.com/sentineldb/siemcore/pkg/rule"
)

const maxLockTTL = 300 * time.Second

var errRuleNotFound = apperr.New(apperr.CodeNotFound, "rule not found")

// RuleExecutor evaluates a single rule for a single tenant.
type RuleExecutor interface {
	Run(ctx context.Context, r rule.Rule, tenantID string, now time.Time) (int, error)
}

// Locker is the single-flight lock primitive the scheduler runs every
// evaluation under. *coordgateway.LockManager satisfies this.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*coordgateway.Lock, bool, error)
}

// Scheduler owns the tick loop and the bounded worker pool that runs due
// rules. Backoff state is held in-process: it resets on restart, which
// only means a rule that errored right before a crash gets retried a
// little sooner than its backoff would have allowed — never later.
type Scheduler struct {
	rules     rule.Store
	locks     Locker
	evaluator RuleExecutor
	workers   int
	tick      time.Duration
	logger    *slog.Logger

	mu              sync.Mutex
	backoffUntil    map[string]time.Time
	backoffAttempts map[string]int
}

func NewScheduler(rules rule.Store, locks Locker, evaluator RuleExecutor, workers int, tickInterval time.Duration, logger *slog.Logger) *Scheduler {
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		rules:           rules,
		locks:           locks,
		evaluator:       evaluator,
		workers:         workers,
		tick:            tickInterval,
		logger:          logger,
		backoffUntil:    make(map[string]time.Time),
		backoffAttempts: make(map[string]int),
	}
}

// Run blocks ticking until ctx is cancelled, then waits for in-flight
// evaluations to drain.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
			s.runTick(ctx, sem, &wg)
		}
	}
}

func (s *Scheduler) runTick(ctx context.Context, sem chan struct{}, wg *sync.WaitGroup) {
	now := time.Now().UTC()
	due, err := s.rules.DueRules(ctx, now)
	if err != nil {
		s.logger.Error("fetching due rules", "error", err)
		return
	}

	for _, r := range due {
		tenants := []string{r.TenantScope}
		if r.TenantScope == rule.ScopeAll {
			active, err := s.rules.ActiveTenants(ctx)
			if err != nil {
				s.logger.Error("listing active tenants", "error", err, "rule_id", r.RuleID)
				continue
			}
			tenants = active
		}

		for _, tenant := range tenants {
			r, tenant := r, tenant
			if s.inBackoff(r.RuleID, tenant, now) {
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				s.runTenant(ctx, r, tenant)
			}()
		}
	}
}

func (s *Scheduler) runTenant(ctx context.Context, r rule.Rule, tenantID string) {
	inserted, acquired, err := s.evaluateLocked(ctx, r, tenantID)
	if !acquired {
		return // lock contention; already counted in evaluateLocked
	}
	if err != nil {
		s.recordFailure(r.RuleID, tenantID, r.ScheduleSeconds)
		s.logger.Error("rule evaluation failed", "error", err, "rule_id", r.RuleID, "tenant_id", tenantID)
		return
	}
	s.clearBackoff(r.RuleID, tenantID)
	s.logger.Info("rule evaluated", "rule_id", r.RuleID, "tenant_id", tenantID, "inserted_alerts", inserted)
}

// evaluateLocked acquires the (rule, tenant) lock, runs the evaluator under
// it with a lock-refresh goroutine and an abort deadline of schedule*2, and
// releases the lock. acquired is false only on lock contention, which is
// the routine "someone else is already running this" case, not an error.
func (s *Scheduler) evaluateLocked(ctx context.Context, r rule.Rule, tenantID string) (inserted int, acquired bool, err error) {
	ttl := lockTTL(r.ScheduleSeconds)
	key := coordgateway.LockKey(r.RuleID, tenantID)

	lock, ok, lockErr := s.locks.TryAcquire(ctx, key, ttl)
	if lockErr != nil {
		return 0, false, lockErr
	}
	if !ok {
		telemetry.LockBlockedTotal.Inc()
		return 0, false, nil
	}
	defer func() {
		if relErr := lock.Release(context.Background()); relErr != nil {
			s.logger.Error("releasing rule lock", "error", relErr, "rule_id", r.RuleID, "tenant_id", tenantID)
		}
	}()

	extendCtx, cancelExtend := context.WithCancel(ctx)
	defer cancelExtend()
	go refreshLock(extendCtx, lock, ttl, s.logger)

	// The scheduler aborts an evaluator that runs longer than 2x its own
	// schedule interval, to keep one stuck rule from starving the pool.
	evalCtx, cancel := context.WithTimeout(ctx, time.Duration(r.ScheduleSeconds)*2*time.Second)
	defer cancel()

	inserted, err = s.evaluator.Run(evalCtx, r, tenantID, time.Now().UTC())
	return inserted, true, err
}

func refreshLock(ctx context.Context, lock *coordgateway.Lock, ttl time.Duration, logger *slog.Logger) {
	interval := ttl / 3
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lock.Extend(ctx); err != nil {
				logger.Warn("extending rule lock", "error", err)
			}
		}
	}
}

func lockTTL(scheduleSeconds int) time.Duration {
	secs := scheduleSeconds
	if secs <= 0 {
		secs = int(maxLockTTL / time.Second)
	}
	if time.Duration(secs)*time.Second > maxLockTTL {
		secs = int(maxLockTTL / time.Second)
	}
	return time.Duration(secs) * time.Second
}

func backoffKey(ruleID, tenantID string) string { return ruleID + "|" + tenantID }

func (s *Scheduler) inBackoff(ruleID, tenantID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.backoffUntil[backoffKey(ruleID, tenantID)]
	return ok && now.Before(until)
}

func (s *Scheduler) recordFailure(ruleID, tenantID string, scheduleSeconds int) {
	key := backoffKey(ruleID, tenantID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.backoffAttempts[key]++
	attempt := s.backoffAttempts[key]

	base := time.Duration(scheduleSeconds) * time.Second
	if base <= 0 {
		base = time.Second
	}
	max := base * 4

	backoff := base * time.Duration(1<<uint(attempt-1))
	if backoff <= 0 || backoff > max {
		backoff = max
	}
	s.backoffUntil[key] = time.Now().UTC().Add(backoff)
}

func (s *Scheduler) clearBackoff(ruleID, tenantID string) {
	key := backoffKey(ruleID, tenantID)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.backoffUntil, key)
	delete(s.backoffAttempts, key)
}

// RunNow evaluates rule ruleID for tenantID immediately, following the same
// lock path as the tick loop. conflict is true when another execution
// already holds the lock.
func (s *Scheduler) RunNow(ctx context.Context, ruleID, tenantID string) (inserted int, conflict bool, err error) {
	r, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return 0, false, err
	}
	if r == nil {
		return 0, false, errRuleNotFound
	}

	inserted, acquired, err := s.evaluateLocked(ctx, *r, tenantID)
	if !acquired && err == nil {
		return 0, true, nil
	}
	return inserted, false, err
}
