package storegateway

import (
	"context"
	"encoding/json"

	"github.com/sentineldb/siemcore/pkg/idempotency"
)

var _ idempotency.Store = (*Gateway)(nil)

func (g *Gateway) Get(ctx context.Context, key, route string) (*idempotency.Entry, error) {
	rows, err := g.client.ExecuteQuery(ctx,
		"SELECT * FROM idempotency_keys WHERE key = :key AND route = :route",
		map[string]any{"key": key, "route": route})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	row := rows[0]
	var body json.RawMessage
	if raw, ok := row["body"]; ok && raw != nil {
		if s, ok := raw.(string); ok {
			body = json.RawMessage(s)
		}
	}

	return &idempotency.Entry{
		Key:       asString(row["key"]),
		Route:     asString(row["route"]),
		BodyHash:  asString(row["body_hash"]),
		Status:    int(asFloat(row["status"])),
		Body:      body,
		Attempts:  int(asFloat(row["attempts"])),
		CreatedAt: millisToTime(row["created_at"]),
		UpdatedAt: millisToTime(row["updated_at"]),
	}, nil
}

func (g *Gateway) Put(ctx context.Context, e idempotency.Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = e.UpdatedAt
	}
	return g.client.InsertRows(ctx, "idempotency_keys", []map[string]any{
		{
			"key":        e.Key,
			"route":      e.Route,
			"body_hash":  e.BodyHash,
			"status":     e.Status,
			"body":       string(e.Body),
			"attempts":   e.Attempts,
			"created_at": e.CreatedAt.UnixMilli(),
			"updated_at": e.UpdatedAt.UnixMilli(),
		},
	})
}
