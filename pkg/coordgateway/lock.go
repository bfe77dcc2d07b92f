package coordgateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	redislib "github.com/redis/go-redis/v9"

	"github.com/sentineldb/siemcore/internal/telemetry"
)

// Lock is a held single-flight lock; release is token-matched so a lock
// acquired by a later owner can never be released by an earlier one's
// stale handle.
type Lock struct {
	mutex    *redsync.Mutex
	fallback *sync.Mutex
}

// LockManager guards rule evaluation with a distributed single-flight lock,
// falling back to an in-process mutex registry when Redis is unreachable.
type LockManager struct {
	rs *redsync.Redsync

	mu       sync.Mutex
	fallback map[string]*sync.Mutex
}

// NewLockManager creates a lock manager backed by rdb.
func NewLockManager(rdb *redislib.Client) *LockManager {
	pool := goredis.NewPool(rdb)
	return &LockManager{
		rs:       redsync.New(pool),
		fallback: make(map[string]*sync.Mutex),
	}
}

// LockKey builds the canonical key for a (rule, tenant) pair.
func LockKey(ruleID, tenantID string) string {
	return fmt.Sprintf("lock:rule:%s:%s", ruleID, tenantID)
}

// TryAcquire attempts to acquire the named lock with the given TTL. It
// returns (nil, false, nil) on contention — not an error — since losing a
// race for a lock is an expected, routine outcome.
func (lm *LockManager) TryAcquire(ctx context.Context, key string, ttl time.Duration) (*Lock, bool, error) {
	mutex := lm.rs.NewMutex(key, redsync.WithExpiry(ttl), redsync.WithTries(1))
	err := mutex.TryLockContext(ctx)
	if err == nil {
		telemetry.DegradedModeGauge.Set(0)
		return &Lock{mutex: mutex}, true, nil
	}
	if isLockContention(err) {
		// Another node genuinely holds this lock right now. Do not fall
		// back to a local mutex here — that would let this node proceed
		// with its own uncontended mutex while the real owner is still
		// evaluating, defeating single-flight.
		telemetry.DegradedModeGauge.Set(0)
		return nil, false, nil
	}
	// Redis itself is unreachable, not merely contended. Degrade to a
	// process-local mutex so this node still serializes its own
	// evaluations under degraded mode.
	telemetry.DegradedModeGauge.Set(1)
	return lm.tryFallback(key)
}

// isLockContention reports whether err means "a quorum of nodes say this
// lock is already held", as opposed to a transport/connectivity failure.
func isLockContention(err error) bool {
	var taken redsync.ErrTaken
	if errors.As(err, &taken) {
		return true
	}
	var nodeTaken *redsync.ErrNodeTaken
	return errors.As(err, &nodeTaken)
}

func (lm *LockManager) tryFallback(key string) (*Lock, bool, error) {
	lm.mu.Lock()
	m, ok := lm.fallback[key]
	if !ok {
		m = &sync.Mutex{}
		lm.fallback[key] = m
	}
	lm.mu.Unlock()

	if !m.TryLock() {
		return nil, false, nil
	}
	return &Lock{fallback: m}, true, nil
}

// Release releases the lock by token, refusing to release a lock that a
// later owner now holds.
func (l *Lock) Release(ctx context.Context) error {
	if l.fallback != nil {
		l.fallback.Unlock()
		return nil
	}
	_, err := l.mutex.UnlockContext(ctx)
	return err
}

// Extend refreshes the lock's TTL; called periodically (every ttl/3) while
// a long-running evaluation is in progress.
func (l *Lock) Extend(ctx context.Context) error {
	if l.mutex == nil {
		return nil
	}
	_, err := l.mutex.ExtendContext(ctx)
	return err
}
