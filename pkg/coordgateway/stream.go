package coordgateway

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Stream provides a thin wrapper over Redis Streams, used to record
// low-latency notifications (e.g. the alert investigation activity feed)
// without going through the columnar store.
type Stream struct {
	redis *redis.Client
}

func NewStream(rdb *redis.Client) *Stream {
	return &Stream{redis: rdb}
}

// Enqueue appends fields to the named stream, capped to maxLen entries
// (approximate trim, per XAdd's MAXLEN ~ form).
func (s *Stream) Enqueue(ctx context.Context, name string, maxLen int64, fields map[string]any) (string, error) {
	return s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: name,
		MaxLen: maxLen,
		Approx: true,
		Values: fields,
	}).Result()
}

// ActivityEntry is one entry read back from a stream, with field values
// converted to strings so callers don't need to import go-redis.
type ActivityEntry struct {
	ID     string
	Fields map[string]string
}

// Range reads entries between start and end IDs (Redis Streams ID syntax,
// e.g. "-" and "+" for the full range).
func (s *Stream) Range(ctx context.Context, name, start, end string, count int64) ([]ActivityEntry, error) {
	msgs, err := s.redis.XRangeN(ctx, name, start, end, count).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ActivityEntry, 0, len(msgs))
	for _, m := range msgs {
		fields := make(map[string]string, len(m.Values))
		for k, v := range m.Values {
			fields[k] = fmt.Sprintf("%v", v)
		}
		out = append(out, ActivityEntry{ID: m.ID, Fields: fields})
	}
	return out, nil
}
