package regress

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func sampleResult() CanonicalResult {
	duration := 3.2
	return CanonicalResult{
		Project:         "insecure-go",
		Tool:            "semgrep",
		Timestamp:       "2026-08-29T10:00:00Z",
		DurationSeconds: &duration,
		Issues: []CanonicalIssue{
			{
				Tool: "semgrep", RuleID: "rule-a", FilePath: "a.py", LineNumber: 1,
				Severity: "error", Message: "m1",
				PartialFingerprints: map[string]string{"primaryLocationLineHash": "rule-a:a.py:1"},
			},
			{Tool: "semgrep", RuleID: "rule-b", FilePath: "b.py", LineNumber: 2, Severity: "warning", Message: "m2"},
			{Tool: "semgrep", RuleID: "rule-c", FilePath: "c.py", LineNumber: 3, Severity: "warning", Message: "m3"},
		},
		Metadata: map[string]interface{}{"tool_version": "1.50.0"},
	}
}

func TestResultJSONRoundTrip(t *testing.T) {
	original := sampleResult()
	encoded, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}
	var decoded CanonicalResult
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatal(err)
	}
	// Raw is a debug passthrough and deliberately not serialized.
	if diff := cmp.Diff(original, decoded, cmpopts.IgnoreFields(CanonicalIssue{}, "Raw")); diff != "" {
		t.Fatalf("round trip changed the result (-want +got):\n%s", diff)
	}
}

func TestResultJSONCarriesDerivedCounts(t *testing.T) {
	encoded, err := json.Marshal(sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		t.Fatal(err)
	}
	if doc["issue_count"] != float64(3) {
		t.Fatalf("unexpected issue_count: %v", doc["issue_count"])
	}
	severities, ok := doc["issues_by_severity"].(map[string]interface{})
	if !ok {
		t.Fatalf("issues_by_severity missing: %v", doc)
	}
	if severities["error"] != float64(1) || severities["warning"] != float64(2) {
		t.Fatalf("unexpected severity histogram: %v", severities)
	}
	if _, ok := doc["duration_seconds"]; !ok {
		t.Fatal("duration_seconds must be present even when null elsewhere")
	}
}

func TestResultNilDurationStaysNull(t *testing.T) {
	result := sampleResult()
	result.DurationSeconds = nil
	encoded, err := json.Marshal(result)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		t.Fatal(err)
	}
	if v, ok := doc["duration_seconds"]; !ok || v != nil {
		t.Fatalf("expected explicit null duration, got %v (present=%v)", v, ok)
	}
}

func TestIssuesBySeverity(t *testing.T) {
	result := sampleResult()
	histogram := result.IssuesBySeverity()
	if histogram["error"] != 1 || histogram["warning"] != 2 {
		t.Fatalf("unexpected histogram: %v", histogram)
	}
	empty := CanonicalResult{}
	if len(empty.IssuesBySeverity()) != 0 {
		t.Fatal("empty result should yield an empty histogram")
	}
}

func TestIssueOptionalFieldsOmitted(t *testing.T) {
	issue := CanonicalIssue{Tool: "t", RuleID: "r", FilePath: "f", LineNumber: 1, Severity: "warning", Message: "m"}
	encoded, err := json.Marshal(issue)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(encoded, &doc); err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"rule_name", "column_number", "end_line", "end_column", "category", "cwe_id", "partial_fingerprints", "properties"} {
		if _, ok := doc[absent]; ok {
			t.Fatalf("expected %s omitted when unset", absent)
		}
	}
	for _, present := range []string{"tool", "rule_id", "file_path", "line_number", "severity", "message"} {
		if _, ok := doc[present]; !ok {
			t.Fatalf("expected %s always present", present)
		}
	}
}
