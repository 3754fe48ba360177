package regress

import "encoding/json"

const (
	DefaultRuleID   = "unknown"
	DefaultSeverity = "warning"
)

// Comparison status thresholds on recall percentage. Policy constants, not
// derived values.
const (
	StatusGood    = "good"
	StatusWarning = "warning"
	StatusBad     = "bad"

	goodRecallFloor    = 90.0
	warningRecallFloor = 70.0
)

// CanonicalIssue is one normalized finding. Raw carries the original record
// for debugging only; it is excluded from serialization and comparison.
type CanonicalIssue struct {
	Tool                string                 `json:"tool"`
	RuleID              string                 `json:"rule_id"`
	RuleName            string                 `json:"rule_name,omitempty"`
	FilePath            string                 `json:"file_path"`
	LineNumber          int                    `json:"line_number"`
	ColumnNumber        int                    `json:"column_number,omitempty"`
	EndLine             int                    `json:"end_line,omitempty"`
	EndColumn           int                    `json:"end_column,omitempty"`
	Severity            string                 `json:"severity"`
	Message             string                 `json:"message"`
	Category            string                 `json:"category,omitempty"`
	CWEID               string                 `json:"cwe_id,omitempty"`
	PartialFingerprints map[string]string      `json:"partial_fingerprints,omitempty"`
	Properties          map[string]interface{} `json:"properties,omitempty"`
	Raw                 json.RawMessage        `json:"-"`
}

// CanonicalResult is one tool run against one project. Issue order is run
// order and carries no meaning for comparison.
type CanonicalResult struct {
	Project         string                 `json:"project"`
	Tool            string                 `json:"tool"`
	Timestamp       string                 `json:"timestamp"`
	DurationSeconds *float64               `json:"duration_seconds"`
	Issues          []CanonicalIssue       `json:"issues"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

func (r *CanonicalResult) IssueCount() int {
	return len(r.Issues)
}

func (r *CanonicalResult) IssuesBySeverity() map[string]int {
	out := map[string]int{}
	for _, issue := range r.Issues {
		out[issue.Severity]++
	}
	return out
}

// resultDocument is the on-disk shape: the result plus its derived counts.
// Counts are recomputed on every marshal so they can never drift from the
// issue list.
type resultDocument struct {
	Project          string                 `json:"project"`
	Tool             string                 `json:"tool"`
	Timestamp        string                 `json:"timestamp"`
	DurationSeconds  *float64               `json:"duration_seconds"`
	IssueCount       int                    `json:"issue_count"`
	IssuesBySeverity map[string]int         `json:"issues_by_severity"`
	Issues           []CanonicalIssue       `json:"issues"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

func (r CanonicalResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultDocument{
		Project:          r.Project,
		Tool:             r.Tool,
		Timestamp:        r.Timestamp,
		DurationSeconds:  r.DurationSeconds,
		IssueCount:       r.IssueCount(),
		IssuesBySeverity: r.IssuesBySeverity(),
		Issues:           r.Issues,
		Metadata:         r.Metadata,
	})
}

func (r *CanonicalResult) UnmarshalJSON(b []byte) error {
	var doc resultDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return err
	}
	r.Project = doc.Project
	r.Tool = doc.Tool
	r.Timestamp = doc.Timestamp
	r.DurationSeconds = doc.DurationSeconds
	r.Issues = doc.Issues
	r.Metadata = doc.Metadata
	return nil
}

// Statistics are the raw counts of one baseline/current comparison.
type Statistics struct {
	BaselineIssues int `json:"baseline_issues"`
	CurrentIssues  int `json:"current_issues"`
	MatchedIssues  int `json:"matched_issues"`
	NewIssues      int `json:"new_issues"`
	MissingIssues  int `json:"missing_issues"`
}

// Metrics are the derived quality ratios. Every ratio is 0.0 when its
// denominator is zero; none of them can be NaN.
type Metrics struct {
	Recall                  float64 `json:"recall"`
	RecallPercentage        float64 `json:"recall_percentage"`
	FPDelta                 int     `json:"fp_delta"`
	NewIssuesPercentage     float64 `json:"new_issues_percentage"`
	MissingIssuesPercentage float64 `json:"missing_issues_percentage"`
	F1Score                 float64 `json:"f1_score"`
}

// Status classifies the recall percentage for display.
func (m Metrics) Status() string {
	switch {
	case m.RecallPercentage >= goodRecallFloor:
		return StatusGood
	case m.RecallPercentage >= warningRecallFloor:
		return StatusWarning
	default:
		return StatusBad
	}
}

// Details holds sampled issue lists for the report, capped to keep report
// size bounded; the totals carry the uncapped counts.
type Details struct {
	MatchedIssues []CanonicalIssue `json:"matched_issues"`
	NewIssues     []CanonicalIssue `json:"new_issues"`
	MissingIssues []CanonicalIssue `json:"missing_issues"`
	TotalMatched  int              `json:"total_matched"`
	TotalNew      int              `json:"total_new"`
	TotalMissing  int              `json:"total_missing"`
}

// ComparisonResult is the outcome of comparing a baseline against a current
// result for one (project, tool) pair. Never mutated after creation.
type ComparisonResult struct {
	Project    string     `json:"project"`
	Tool       string     `json:"tool"`
	Timestamp  string     `json:"timestamp"`
	Statistics Statistics `json:"statistics"`
	Metrics    Metrics    `json:"metrics"`
	Details    Details    `json:"details"`
}
