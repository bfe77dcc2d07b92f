package idempotency

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

type fakeStore struct {
	entries map[string]Entry
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

func (f *fakeStore) Get(ctx context.Context, key, route string) (*Entry, error) {
	e, ok := f.entries[route+"|"+key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeStore) Put(ctx context.Context, e Entry) error {
	f.entries[e.Route+"|"+e.Key] = e
	return nil
}

func TestCanonicalBodyHash_KeyOrderIndependent(t *testing.T) {
	a, err := CanonicalBodyHash([]byte(`{"a":1,"b":2}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := CanonicalBodyHash([]byte(`{"b":2,"a":1}`))
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a != b {
		t.Errorf("hashes differ by key order: %q != %q", a, b)
	}
}

func TestCanonicalBodyHash_DifferentValueDifferentHash(t *testing.T) {
	a, _ := CanonicalBodyHash([]byte(`{"a":1}`))
	b, _ := CanonicalBodyHash([]byte(`{"a":2}`))
	if a == b {
		t.Error("expected different values to hash differently")
	}
}

func TestEngine_NewReplayConflict(t *testing.T) {
	store := newFakeStore()
	eng := NewEngine(store, nil)
	ctx := context.Background()

	hash1, _ := CanonicalBodyHash([]byte(`{"a":1}`))

	outcome, _, err := eng.Check(ctx, "key1", "/ingest", hash1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome != OutcomeNew {
		t.Fatalf("outcome = %v, want OutcomeNew", outcome)
	}

	if err := eng.Commit(ctx, "key1", "/ingest", hash1, 200, json.RawMessage(`{"accepted":1}`), 0); err != nil {
		t.Fatalf("commit: %v", err)
	}

	outcome, entry, err := eng.Check(ctx, "key1", "/ingest", hash1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome != OutcomeReplay {
		t.Fatalf("outcome = %v, want OutcomeReplay", outcome)
	}
	if entry.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", entry.Attempts)
	}

	hash2, _ := CanonicalBodyHash([]byte(`{"a":2}`))
	outcome, _, err = eng.Check(ctx, "key1", "/ingest", hash2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("outcome = %v, want OutcomeConflict", outcome)
	}
}

func TestEngine_TouchIncrementsAttempts(t *testing.T) {
	store := newFakeStore()
	eng := NewEngine(store, nil)
	ctx := context.Background()

	hash1, _ := CanonicalBodyHash([]byte(`{"a":1}`))
	if err := eng.Commit(ctx, "key1", "/ingest", hash1, 200, json.RawMessage(`{"accepted":1}`), 0); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, entry, err := eng.Check(ctx, "key1", "/ingest", hash1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if err := eng.Touch(ctx, entry); err != nil {
		t.Fatalf("touch: %v", err)
	}

	_, entry, err = eng.Check(ctx, "key1", "/ingest", hash1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if entry.Attempts != 2 {
		t.Errorf("attempts = %d, want 2 after one replay touch", entry.Attempts)
	}
}

type fakeHotCache struct {
	seen map[string]string
}

func newFakeHotCache() *fakeHotCache {
	return &fakeHotCache{seen: make(map[string]string)}
}

func (f *fakeHotCache) GetSetNX(ctx context.Context, route, key, value string, ttl time.Duration) (bool, string, error) {
	k := route + "|" + key
	if existing, ok := f.seen[k]; ok {
		return false, existing, nil
	}
	f.seen[k] = value
	return true, value, nil
}

func TestEngine_CheckSkipsStoreOnHotCacheMiss(t *testing.T) {
	store := newFakeStore()
	hot := newFakeHotCache()
	eng := NewEngine(store, hot)
	ctx := context.Background()

	hash1, _ := CanonicalBodyHash([]byte(`{"a":1}`))
	outcome, entry, err := eng.Check(ctx, "key1", "/ingest", hash1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome != OutcomeNew {
		t.Fatalf("outcome = %v, want OutcomeNew", outcome)
	}
	if entry != nil {
		t.Errorf("expected nil entry on a hot-cache-resolved new outcome")
	}
}

func TestEngine_CheckDetectsConflictFromHotCache(t *testing.T) {
	store := newFakeStore()
	hot := newFakeHotCache()
	eng := NewEngine(store, hot)
	ctx := context.Background()

	hash1, _ := CanonicalBodyHash([]byte(`{"a":1}`))
	hash2, _ := CanonicalBodyHash([]byte(`{"a":2}`))

	if _, _, err := eng.Check(ctx, "key1", "/ingest", hash1); err != nil {
		t.Fatalf("check: %v", err)
	}
	outcome, _, err := eng.Check(ctx, "key1", "/ingest", hash2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if outcome != OutcomeConflict {
		t.Fatalf("outcome = %v, want OutcomeConflict", outcome)
	}
}
