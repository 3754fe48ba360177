// Package cppcheck maps cppcheck's XML version 2 report onto the SARIF-like
// document model.
package cppcheck

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/solardome/sast-regress/internal/ingest"
)

const infoURI = "https://cppcheck.sourceforge.net"

// Convert maps one cppcheck XML v2 report onto the SARIF-like document.
// Findings without a location element are kept with an empty locations list.
func Convert(payload []byte, toolVersion string) (ingest.Document, error) {
	doc := ingest.NewDocument("cppcheck", toolVersion, infoURI)

	xml := etree.NewDocument()
	if err := xml.ReadFromBytes(payload); err != nil {
		return doc, fmt.Errorf("parse cppcheck xml: %w", err)
	}
	root := xml.SelectElement("results")
	if root == nil {
		return doc, fmt.Errorf("parse cppcheck xml: missing results element")
	}
	errs := root.SelectElement("errors")
	if errs == nil {
		return doc, nil
	}

	for _, e := range errs.SelectElements("error") {
		ruleID := e.SelectAttrValue("id", "unknown")
		result := ingest.Result{
			RuleID:    ruleID,
			Level:     severityLevel(e.SelectAttrValue("severity", "style")),
			Message:   ingest.Message{Text: messageText(e)},
			Locations: []ingest.Location{},
		}
		if loc := e.SelectElement("location"); loc != nil {
			file := loc.SelectAttrValue("file", "")
			line, err := strconv.Atoi(loc.SelectAttrValue("line", "1"))
			if err != nil || line <= 0 {
				line = 1
			}
			result.Locations = append(result.Locations, ingest.Location{
				PhysicalLocation: ingest.PhysicalLocation{
					ArtifactLocation: ingest.ArtifactLocation{URI: strings.TrimPrefix(file, "/src/")},
					Region:           ingest.Region{StartLine: line, StartColumn: 1},
				},
			})
			result.PartialFingerprints = map[string]string{
				"primaryLocationLineHash": ingest.LineHash(ruleID, file, line),
			}
		}
		doc.Runs[0].Results = append(doc.Runs[0].Results, result)
	}
	return doc, nil
}

func messageText(e *etree.Element) string {
	if msg := e.SelectAttrValue("msg", ""); msg != "" {
		return msg
	}
	return "No message"
}

func severityLevel(s string) string {
	switch strings.ToLower(s) {
	case "error":
		return "error"
	case "warning", "performance":
		return "warning"
	case "style", "portability":
		return "note"
	default:
		return "note"
	}
}
