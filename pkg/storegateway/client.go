// Package storegateway talks to the columnar event/alert store. The store
// is an external collaborator exposed only via an HTTP SQL/JSON-row
// contract (ClickHouse-flavored SQL: group_array, array_slice,
// generate_id(), LEFT ANTI JOIN) — this package never assumes a local
// database connection.
package storegateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"

	"github.com/sentineldb/siemcore/internal/apperr"
)

// Config configures the HTTP client and circuit breaker.
type Config struct {
	BaseURL        string
	Database       string
	User           string
	Password       string
	FailThreshold  uint32
	CooldownMs     int
	RequestTimeout time.Duration // deadline for reads; defaults to 5s if unset
	InsertTimeout  time.Duration // deadline for inserts; defaults to 15s if unset
}

// maxCooldownMultiple caps the doubled half-open-failure cooldown at 8x the
// configured base, matching the scheduler's own backoff cap pattern.
const maxCooldownMultiple = 8

// Client executes queries and inserts against the store over HTTP, with a
// circuit breaker guarding against cascading failure when the store is down.
type Client struct {
	cfg       Config
	readHTTP  *http.Client
	writeHTTP *http.Client

	baseCooldown time.Duration
	maxCooldown  time.Duration

	cbMu sync.Mutex
	cb   atomic.Pointer[gobreaker.CircuitBreaker]
}

// New creates a store gateway client.
func New(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.InsertTimeout <= 0 {
		cfg.InsertTimeout = 15 * time.Second
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 5
	}
	if cfg.CooldownMs == 0 {
		cfg.CooldownMs = 5000
	}

	c := &Client{
		cfg:          cfg,
		readHTTP:     &http.Client{Timeout: cfg.RequestTimeout},
		writeHTTP:    &http.Client{Timeout: cfg.InsertTimeout},
		baseCooldown: time.Duration(cfg.CooldownMs) * time.Millisecond,
	}
	c.maxCooldown = c.baseCooldown * maxCooldownMultiple
	c.cb.Store(c.newBreaker(c.baseCooldown))
	return c
}

// newBreaker builds a circuit breaker with the given Open-state cooldown.
// OnStateChange doubles the cooldown (capped) on a half-open probe that
// fails, and resets it to the base once a probe succeeds and the breaker
// closes, per spec.md §4.A's "failure -> Open (cooldown doubled up to a
// cap)" transition.
func (c *Client) newBreaker(cooldown time.Duration) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store-gateway",
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= c.cfg.FailThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.cbMu.Lock()
			defer c.cbMu.Unlock()

			switch {
			case to == gobreaker.StateClosed:
				c.cb.Store(c.newBreaker(c.baseCooldown))
			case to == gobreaker.StateOpen && from == gobreaker.StateHalfOpen:
				next := cooldown * 2
				if next > c.maxCooldown {
					next = c.maxCooldown
				}
				c.cb.Store(c.newBreaker(next))
			}
		},
	})
}

// State reports the current circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.Load().State()
}

// queryRequest is the body posted to the store's query endpoint.
type queryRequest struct {
	Database string         `json:"database"`
	SQL      string         `json:"sql"`
	Params   map[string]any `json:"params,omitempty"`
}

type queryResponse struct {
	Rows []map[string]any `json:"rows"`
}

// ExecuteQuery runs a parameterized SQL statement and decodes the returned
// rows. It retries once on a transport error or a 5xx response (not on
// 4xx responses or timeouts) and is wrapped by the circuit breaker.
func (c *Client) ExecuteQuery(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	var rows []map[string]any

	result, err := c.cb.Load().Execute(func() (any, error) {
		return c.doQuery(ctx, sql, params)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperr.Upstream("store", "store gateway circuit open", err)
		}
		return nil, err
	}

	rows = result.([]map[string]any)
	return rows, nil
}

// Ping verifies the store is reachable, bypassing the circuit breaker so
// health checks can observe recovery without tripping it further.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doQuery(ctx, "SELECT 1", nil)
	return err
}

func (c *Client) doQuery(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rows, err := c.attemptQuery(ctx, sql, params)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) attemptQuery(ctx context.Context, sql string, params map[string]any) ([]map[string]any, error) {
	body, err := json.Marshal(queryRequest{Database: c.cfg.Database, SQL: sql, Params: params})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "marshaling query request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "building query request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	resp, err := c.readHTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperr.Timeout("store", "query deadline exceeded", err)
		}
		return nil, apperr.Upstream("store", "query transport error", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout {
		return nil, apperr.Timeout("store", fmt.Sprintf("store returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= 500 {
		return nil, apperr.Upstream("store", fmt.Sprintf("store returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusBadRequest {
		return nil, apperr.New(apperr.CodeQuery, fmt.Sprintf("store rejected query: %d", resp.StatusCode))
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, apperr.New(apperr.CodeConstraint, "store reported a constraint violation")
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "decoding query response", err)
	}
	return qr.Rows, nil
}

type insertRequest struct {
	Database string           `json:"database"`
	Table    string           `json:"table"`
	Rows     []map[string]any `json:"rows"`
}

// InsertRows performs a single batched insert into table. Used by the
// intake pipeline to write one batch per tenant per request.
func (c *Client) InsertRows(ctx context.Context, table string, rows []map[string]any) error {
	if len(rows) == 0 {
		return nil
	}

	_, err := c.cb.Load().Execute(func() (any, error) {
		return nil, c.attemptInsert(ctx, table, rows)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return apperr.Upstream("store", "store gateway circuit open", err)
		}
		return err
	}
	return nil
}

func (c *Client) attemptInsert(ctx context.Context, table string, rows []map[string]any) error {
	body, err := json.Marshal(insertRequest{Database: c.cfg.Database, Table: table, Rows: rows})
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "marshaling insert request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/insert", bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.CodeInternal, "building insert request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.User != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	resp, err := c.writeHTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apperr.Timeout("store", "insert deadline exceeded", err)
		}
		return apperr.Upstream("store", "insert transport error", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return apperr.Timeout("store", fmt.Sprintf("store returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		return apperr.Upstream("store", fmt.Sprintf("store returned %d", resp.StatusCode), nil)
	case resp.StatusCode == http.StatusConflict:
		return apperr.New(apperr.CodeConstraint, "store reported a constraint violation")
	case resp.StatusCode >= 400:
		return apperr.New(apperr.CodeQuery, fmt.Sprintf("store rejected insert: %d", resp.StatusCode))
	}
	return nil
}

// isTransient reports whether err represents a transport-level failure
// worth a single retry (as opposed to an application-level rejection).
func isTransient(err error) bool {
	ae, ok := apperr.As(err)
	if !ok {
		return true
	}
	return ae.Code == apperr.CodeUpstream
}
