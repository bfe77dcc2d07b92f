package intake

import (
	"encoding/json"
	"time"
)

// decodeLine parses a single NDJSON line or bulk-array element into its
// loosely-typed field map, ahead of the quarantine checks and normalization.
func decodeLine(line []byte) (map[string]any, error) {
	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func fieldString(fields map[string]any, key string) string {
	v, _ := fields[key].(string)
	return v
}

// coerceTimestamp converts the decoded event_timestamp field (an RFC3339
// string, or a number treated as epoch milliseconds) into a time.Time,
// reporting false if it is missing or cannot be coerced.
func coerceTimestamp(fields map[string]any) (time.Time, bool) {
	v, ok := fields["event_timestamp"]
	if !ok || v == nil {
		return time.Time{}, false
	}

	switch x := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339Nano, x); err == nil {
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t, true
		}
		return time.Time{}, false
	case float64:
		return time.UnixMilli(int64(x)).UTC(), true
	default:
		return time.Time{}, false
	}
}
