// Package intel holds the threat-intelligence indicator set used to
// enrich events during intake, refreshed from the store on a timer.
package intel

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sentineldb/siemcore/pkg/event"
)

// IndicatorType is the enum of IOC kinds.
type IndicatorType string

const (
	TypeIP     IndicatorType = "ip"
	TypeDomain IndicatorType = "domain"
	TypeUser   IndicatorType = "user"
	TypeHost   IndicatorType = "host"
)

// Indicator is a single threat-intel record.
type Indicator struct {
	Value        string        `json:"indicator"`
	Type         IndicatorType `json:"indicator_type"`
	SourceFeed   string        `json:"source_feed"`
	SeverityHint string        `json:"severity_hint"`
}

// Loader fetches the full indicator set from the store.
type Loader interface {
	LoadIndicators(ctx context.Context) ([]Indicator, error)
}

// snapshot is an immutable, pre-indexed view of the indicator set.
type snapshot struct {
	byValue map[string][]Indicator // keyed by lowercase indicator value
}

func newSnapshot(indicators []Indicator) *snapshot {
	m := make(map[string][]Indicator, len(indicators))
	for _, ind := range indicators {
		key := strings.ToLower(ind.Value)
		m[key] = append(m[key], ind)
	}
	return &snapshot{byValue: m}
}

// Set holds the current IOC snapshot, swapped atomically by Refresh. Reads
// never block a concurrent refresh and never see a partially-built snapshot.
type Set struct {
	current atomic.Pointer[snapshot]
	loader  Loader
}

// NewSet creates an empty set; call Refresh (directly or via the
// background loop) to populate it before enrichment is meaningful.
func NewSet(loader Loader) *Set {
	s := &Set{loader: loader}
	s.current.Store(newSnapshot(nil))
	return s
}

// Refresh reloads the indicator set from the loader and swaps it in.
func (s *Set) Refresh(ctx context.Context) error {
	indicators, err := s.loader.LoadIndicators(ctx)
	if err != nil {
		return err
	}
	s.current.Store(newSnapshot(indicators))
	return nil
}

// Run refreshes the set every interval until ctx is cancelled, logging
// nothing itself — callers that want visibility wrap Refresh.
func (s *Set) Run(ctx context.Context, interval time.Duration, onError func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && onError != nil {
				onError(err)
			}
		}
	}
}

// Lookup checks value against the current snapshot.
func (s *Set) Lookup(value string) ([]Indicator, bool) {
	if value == "" {
		return nil, false
	}
	snap := s.current.Load()
	hits, ok := snap.byValue[strings.ToLower(value)]
	return hits, ok
}

// Enrich populates ti_hits and ti_match on e by checking its
// source_ip/destination_ip/user/host fields against the current snapshot.
func (s *Set) Enrich(e *event.Event) {
	fields := map[string]string{
		"source_ip":      e.SourceIP,
		"destination_ip": e.DestinationIP,
		"user":           e.User,
		"host":           e.Host,
	}
	for field, value := range fields {
		hits, ok := s.Lookup(value)
		if !ok {
			continue
		}
		for _, h := range hits {
			e.TIHits = append(e.TIHits, event.TIHit{
				Field:     field,
				Indicator: h.Value,
				Source:    h.SourceFeed,
			})
		}
	}
	e.TIMatch = len(e.TIHits) > 0
}
