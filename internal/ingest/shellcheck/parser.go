// Package shellcheck maps shellcheck's JSON array output onto the
// SARIF-like document model.
package shellcheck

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/solardome/sast-regress/internal/ingest"
)

const infoURI = "https://www.shellcheck.net"

type comment struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	EndLine   int    `json:"endLine"`
	Column    int    `json:"column"`
	EndColumn int    `json:"endColumn"`
	Level     string `json:"level"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
}

// Convert maps one shellcheck JSON report onto the SARIF-like document.
func Convert(payload []byte, toolVersion string) (ingest.Document, error) {
	doc := ingest.NewDocument("shellcheck", toolVersion, infoURI)

	var comments []comment
	if err := json.Unmarshal(payload, &comments); err != nil {
		return doc, fmt.Errorf("parse shellcheck json: %w", err)
	}

	for _, c := range comments {
		ruleID := scRule(c.Code)
		line, col := orOne(c.Line), orOne(c.Column)
		endLine, endCol := c.EndLine, c.EndColumn
		if endLine == 0 {
			endLine = line
		}
		if endCol == 0 {
			endCol = col
		}
		message := c.Message
		if message == "" {
			message = "No message"
		}
		doc.Runs[0].Results = append(doc.Runs[0].Results, ingest.Result{
			RuleID:  ruleID,
			Level:   severityLevel(c.Level),
			Message: ingest.Message{Text: message},
			Locations: []ingest.Location{{
				PhysicalLocation: ingest.PhysicalLocation{
					ArtifactLocation: ingest.ArtifactLocation{URI: strings.TrimPrefix(c.File, "/src/")},
					Region: ingest.Region{
						StartLine:   line,
						StartColumn: col,
						EndLine:     endLine,
						EndColumn:   endCol,
					},
				},
			}},
			PartialFingerprints: map[string]string{
				"primaryLocationLineHash": ingest.LineHash(ruleID, c.File, line),
			},
		})
	}
	return doc, nil
}

func scRule(code int) string {
	if code <= 0 {
		return "SC0000"
	}
	return fmt.Sprintf("SC%d", code)
}

func severityLevel(s string) string {
	switch strings.ToLower(s) {
	case "error":
		return "error"
	case "warning":
		return "warning"
	case "info", "style":
		return "note"
	default:
		return "note"
	}
}

func orOne(v int) int {
	if v <= 0 {
		return 1
	}
	return v
}
