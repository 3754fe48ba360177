package regress

import (
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrMalformedInput signals raw scanner output missing the expected
// structure (not a JSON object, or no runs). Callers log it and carry on
// with the empty result; it never fails a batch.
var ErrMalformedInput = errors.New("malformed scanner output")

// Raw scanner output schema. Every scanner hands the harness a SARIF-like
// document of this shape; tool-specific adapters pre-map their native
// dialects before this point.
type rawDocument struct {
	Runs []rawRun `json:"runs"`
}

type rawRun struct {
	Tool    rawTool               `json:"tool"`
	Results []jsoniter.RawMessage `json:"results"`
}

type rawTool struct {
	Driver rawDriver `json:"driver"`
}

type rawDriver struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type rawResult struct {
	RuleID              string                 `json:"ruleId"`
	RuleName            string                 `json:"ruleName"`
	Level               string                 `json:"level"`
	Message             rawText                `json:"message"`
	Locations           []rawLocation          `json:"locations"`
	PartialFingerprints map[string]string      `json:"partialFingerprints"`
	Properties          map[string]interface{} `json:"properties"`
}

// rawText accepts both the SARIF message object and the bare string some
// converters emit.
type rawText struct {
	Text string
}

func (m *rawText) UnmarshalJSON(b []byte) error {
	var s string
	if err := jsonAPI.Unmarshal(b, &s); err == nil {
		m.Text = s
		return nil
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := jsonAPI.Unmarshal(b, &obj); err != nil {
		return err
	}
	m.Text = obj.Text
	return nil
}

type rawLocation struct {
	PhysicalLocation rawPhysicalLocation `json:"physicalLocation"`
}

type rawPhysicalLocation struct {
	ArtifactLocation rawArtifactLocation `json:"artifactLocation"`
	Region           rawRegion           `json:"region"`
}

type rawArtifactLocation struct {
	URI string `json:"uri"`
}

type rawRegion struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn"`
	EndLine     int `json:"endLine"`
	EndColumn   int `json:"endColumn"`
}

// Normalizer converts raw SARIF-like scanner output into a CanonicalResult.
type Normalizer struct {
	log *zap.Logger
	now func() time.Time
}

func NewNormalizer(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log, now: time.Now}
}

// Normalize maps one raw scanner document onto the canonical issue model.
// Malformed documents yield an empty result plus ErrMalformedInput;
// malformed individual result entries are skipped with a warning so one bad
// entry never aborts the rest of the run.
func (n *Normalizer) Normalize(project, tool string, payload []byte, durationSeconds *float64) (CanonicalResult, error) {
	result := CanonicalResult{
		Project:         project,
		Tool:            tool,
		Timestamp:       n.now().UTC().Format(time.RFC3339),
		DurationSeconds: durationSeconds,
		Issues:          []CanonicalIssue{},
		Metadata: map[string]interface{}{
			"normalization_timestamp": n.now().UTC().Format(time.RFC3339),
		},
	}

	var doc rawDocument
	if err := jsonAPI.Unmarshal(payload, &doc); err != nil {
		n.log.Warn("scanner output is not a SARIF-like document",
			zap.String("project", project), zap.String("tool", tool), zap.Error(err))
		return result, ErrMalformedInput
	}
	if len(doc.Runs) == 0 {
		n.log.Warn("scanner output has no runs",
			zap.String("project", project), zap.String("tool", tool))
		return result, ErrMalformedInput
	}

	for _, run := range doc.Runs {
		toolName := firstNonEmpty(run.Tool.Driver.Name, tool, DefaultRuleID)
		if v := run.Tool.Driver.Version; v != "" {
			result.Metadata["tool_version"] = v
		}
		for _, rawEntry := range run.Results {
			var entry rawResult
			if err := jsonAPI.Unmarshal(rawEntry, &entry); err != nil {
				n.log.Warn("skipping malformed result entry",
					zap.String("project", project), zap.String("tool", toolName), zap.Error(err))
				continue
			}
			result.Issues = append(result.Issues, n.normalizeResult(toolName, entry, rawEntry))
		}
	}

	n.log.Info("normalized scanner output",
		zap.String("project", project), zap.String("tool", tool),
		zap.Int("issues", len(result.Issues)))
	return result, nil
}

func (n *Normalizer) normalizeResult(toolName string, entry rawResult, raw []byte) CanonicalIssue {
	issue := CanonicalIssue{
		Tool:     toolName,
		RuleID:   firstNonEmpty(entry.RuleID, DefaultRuleID),
		RuleName: entry.RuleName,
		Severity: firstNonEmpty(normalizeToken(entry.Level), DefaultSeverity),
		Message:  entry.Message.Text,
		Raw:      append([]byte(nil), raw...),
	}

	// First-location-wins: additional locations are not modeled. A finding
	// with no location at all is still kept, with line 0 meaning unknown.
	if len(entry.Locations) > 0 {
		physical := entry.Locations[0].PhysicalLocation
		issue.FilePath = normalizePath(physical.ArtifactLocation.URI)
		issue.LineNumber = physical.Region.StartLine
		issue.ColumnNumber = physical.Region.StartColumn
		issue.EndLine = physical.Region.EndLine
		issue.EndColumn = physical.Region.EndColumn
	}

	if len(entry.PartialFingerprints) > 0 {
		issue.PartialFingerprints = entry.PartialFingerprints
	}
	if len(entry.Properties) > 0 {
		issue.Properties = entry.Properties
	}
	return issue
}
