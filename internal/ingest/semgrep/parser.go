// Package semgrep maps semgrep's native JSON report onto the SARIF-like
// document model.
package semgrep

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solardome/sast-regress/internal/ingest"
)

const infoURI = "https://semgrep.dev"

type report struct {
	Results []finding `json:"results"`
}

type finding struct {
	CheckID string   `json:"check_id"`
	Path    string   `json:"path"`
	Start   position `json:"start"`
	End     position `json:"end"`
	Extra   extra    `json:"extra"`
}

type position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

type extra struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Convert maps one semgrep JSON report onto the SARIF-like document. An
// absent results array yields an empty document, not an error.
func Convert(payload []byte, toolVersion string) (ingest.Document, error) {
	doc := ingest.NewDocument("semgrep", toolVersion, infoURI)

	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		return doc, fmt.Errorf("parse semgrep json: %w", err)
	}

	for _, f := range r.Results {
		ruleID := f.CheckID
		if ruleID == "" {
			ruleID = "unknown"
		}
		startLine, startCol := orOne(f.Start.Line), orOne(f.Start.Col)
		endLine, endCol := f.End.Line, f.End.Col
		if endLine == 0 {
			endLine = startLine
		}
		if endCol == 0 {
			endCol = startCol
		}
		message := f.Extra.Message
		if message == "" {
			message = "No message"
		}
		doc.Runs[0].Results = append(doc.Runs[0].Results, ingest.Result{
			RuleID:  ruleID,
			Level:   severityLevel(f.Extra.Severity),
			Message: ingest.Message{Text: message},
			Locations: []ingest.Location{{
				PhysicalLocation: ingest.PhysicalLocation{
					ArtifactLocation: ingest.ArtifactLocation{URI: strings.TrimPrefix(f.Path, "/src/")},
					Region: ingest.Region{
						StartLine:   startLine,
						StartColumn: startCol,
						EndLine:     endLine,
						EndColumn:   endCol,
					},
				},
			}},
			PartialFingerprints: map[string]string{
				"primaryLocationLineHash": ingest.LineHash(ruleID, f.Path, startLine),
			},
		})
	}
	return doc, nil
}

func severityLevel(s string) string {
	switch strings.ToUpper(s) {
	case "ERROR":
		return "error"
	case "WARNING":
		return "warning"
	case "INFO":
		return "note"
	default:
		return "warning"
	}
}

func orOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
