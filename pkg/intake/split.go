package intake

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
)

// splitNDJSON splits a request body into non-blank lines. It never fails:
// a line that turns out not to be valid JSON is quarantined individually
// by the pipeline rather than rejecting the whole batch.
func splitNDJSON(body []byte) ([][]byte, error) {
	var lines [][]byte
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	return lines, scanner.Err()
}

// splitBulkArray decodes a JSON array envelope into its elements. Unlike
// NDJSON, a malformed envelope is a request-level error: there is no way
// to quarantine individual records out of JSON that doesn't parse at all.
func splitBulkArray(body []byte) ([][]byte, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("body is not a JSON array: %w", err)
	}
	lines := make([][]byte, len(raw))
	for i, r := range raw {
		lines[i] = r
	}
	return lines, nil
}
