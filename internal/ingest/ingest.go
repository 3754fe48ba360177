// Package ingest holds the SARIF-like document model that tool adapters
// emit. Scanners speak their own dialects; each adapter subpackage maps one
// dialect onto this shape before normalization.
package ingest

import "fmt"

const (
	SchemaURI     = "https://json.schemastore.org/sarif-2.1.0.json"
	SchemaVersion = "2.1.0"
)

type Document struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name           string `json:"name"`
	Version        string `json:"version,omitempty"`
	InformationURI string `json:"informationUri,omitempty"`
}

type Result struct {
	RuleID              string            `json:"ruleId"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
}

type Message struct {
	Text string `json:"text"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI string `json:"uri"`
}

type Region struct {
	StartLine   int `json:"startLine"`
	StartColumn int `json:"startColumn,omitempty"`
	EndLine     int `json:"endLine,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// NewDocument builds a document with one empty run for the given driver.
func NewDocument(name, version, infoURI string) Document {
	return Document{
		Schema:  SchemaURI,
		Version: SchemaVersion,
		Runs: []Run{{
			Tool:    Tool{Driver: Driver{Name: name, Version: version, InformationURI: infoURI}},
			Results: []Result{},
		}},
	}
}

// LineHash synthesizes the primaryLocationLineHash partial fingerprint from
// the finding's identity as the scanner reported it.
func LineHash(rule, file string, line int) string {
	return fmt.Sprintf("%s:%s:%d", rule, file, line)
}
