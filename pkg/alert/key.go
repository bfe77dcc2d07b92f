package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// DeriveAlertKey computes the deterministic dedup key used for the
// anti-join against recent alerts. dedupValues is a map of dedup_key
// column name to its string-rendered value for the matched row; keys are
// sorted before hashing so column order in the rule definition never
// changes the result.
func DeriveAlertKey(ruleID string, dedupValues map[string]string) string {
	names := make([]string, 0, len(dedupValues))
	for k := range dedupValues {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(ruleID)
	for _, n := range names {
		b.WriteByte('|')
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(dedupValues[n])
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
