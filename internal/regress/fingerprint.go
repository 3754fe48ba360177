package regress

import (
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// Fingerprint identity fields, in the fixed order they contribute to the
// digest input. The order and the "field:value;" join format are part of the
// on-the-wire contract: baselines captured by one build must stay comparable
// to results captured by another.
var fingerprintFields = []string{"rule_id", "file_path", "line_number", "message", "severity"}

// Fingerprint computes the stable identity of an issue. Values are
// lower-cased and trimmed so cosmetic scanner-version differences in message
// text do not break matching; absent fields (empty file path, line 0)
// contribute nothing. Tool-supplied partial fingerprints are folded in after
// the fixed fields, in sorted key order so the digest input is stable no
// matter how the hint map was built.
//
// Two duplicate findings that share every contributing field collapse to one
// fingerprint. The comparator's set semantics treat such duplicates as a
// single entity; that is accepted behavior for regression counting.
func Fingerprint(issue CanonicalIssue) string {
	var b strings.Builder
	for _, field := range fingerprintFields {
		value, ok := fingerprintValue(issue, field)
		if !ok {
			continue
		}
		b.WriteString(field)
		b.WriteByte(':')
		b.WriteString(normalizeToken(value))
		b.WriteByte(';')
	}
	for _, key := range sortedKeys(issue.PartialFingerprints) {
		b.WriteString(key)
		b.WriteByte(':')
		b.WriteString(issue.PartialFingerprints[key])
		b.WriteByte(';')
	}
	h1, h2 := murmur3.Sum128([]byte(b.String()))
	digest := make([]byte, 16)
	putUint64(digest[0:8], h1)
	putUint64(digest[8:16], h2)
	return hex.EncodeToString(digest)
}

func fingerprintValue(issue CanonicalIssue, field string) (string, bool) {
	switch field {
	case "rule_id":
		return issue.RuleID, issue.RuleID != ""
	case "file_path":
		return issue.FilePath, issue.FilePath != ""
	case "line_number":
		return strconv.Itoa(issue.LineNumber), issue.LineNumber > 0
	case "message":
		return issue.Message, issue.Message != ""
	case "severity":
		return issue.Severity, issue.Severity != ""
	default:
		return "", false
	}
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
