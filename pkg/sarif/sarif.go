// Package sarif renders aggregated scan findings as a SARIF 2.1.0 log so
// results can be imported by code scanning services and editors.
// https://docs.oasis-open.org/sarif/sarif/v2.1.0/sarif-v2.1.0.html
package sarif

import (
	"strings"

	"github.com/asura-sec/asura/pkg/finding"
)

// Log represents the top-level SARIF log object.
type Log struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

// Run represents a single run of an analysis tool.
type Run struct {
	Tool    Tool     `json:"tool"`
	Results []Result `json:"results"`
}

// Tool describes the analysis tool that produced the results.
type Tool struct {
	Driver Driver `json:"driver"`
}

// Driver describes the tool component that produced the results.
type Driver struct {
	Name           string `json:"name"`
	InformationURI string `json:"informationUri,omitempty"`
	Version        string `json:"version,omitempty"`
}

// Result represents a single result from the analysis.
type Result struct {
	RuleID     string         `json:"ruleId"`
	Level      string         `json:"level"`
	Message    Message        `json:"message"`
	Locations  []Location     `json:"locations"`
	Properties map[string]any `json:"properties,omitempty"`
}

// Message contains text describing a result or rule.
type Message struct {
	Text string `json:"text"`
}

// Location describes a location relevant to a result.
type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

// PhysicalLocation describes a physical location in a file.
type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           *Region          `json:"region,omitempty"`
}

// ArtifactLocation describes the location of an artifact.
type ArtifactLocation struct {
	URI string `json:"uri"`
}

// Region describes a region within an artifact.
type Region struct {
	StartLine int `json:"startLine"`
}

const schemaURI = "https://json.schemastore.org/sarif-2.1.0.json"

// NewLog converts a scan result into one SARIF run covering every tool.
func NewLog(result *finding.ScanResult, version string) Log {
	results := make([]Result, 0, len(result.Findings))
	for _, f := range result.Findings {
		results = append(results, newResult(f))
	}
	return Log{
		Schema:  schemaURI,
		Version: "2.1.0",
		Runs: []Run{
			{
				Tool: Tool{
					Driver: Driver{
						Name:           "asura",
						InformationURI: "https://github.com/asura-sec/asura",
						Version:        version,
					},
				},
				Results: results,
			},
		},
	}
}

func newResult(f finding.Finding) Result {
	location := Location{
		PhysicalLocation: PhysicalLocation{
			// SARIF artifact URIs are relative to the scanned root.
			ArtifactLocation: ArtifactLocation{URI: strings.TrimLeft(f.FilePath, `/\`)},
		},
	}
	if f.LineNumber > 0 {
		location.PhysicalLocation.Region = &Region{StartLine: f.LineNumber}
	}
	properties := map[string]any{"tool": string(f.Tool)}
	if f.Confidence != "" {
		properties["confidence"] = f.Confidence
	}
	if f.CWEID != "" {
		properties["cwe_id"] = f.CWEID
	}
	if f.CodeSnippet != "" {
		properties["code_snippet"] = f.CodeSnippet
	}
	return Result{
		RuleID:     string(f.Tool) + "/" + f.TypeID,
		Level:      level(f.Severity),
		Message:    Message{Text: f.Description},
		Locations:  []Location{location},
		Properties: properties,
	}
}

func level(severity finding.Severity) string {
	switch severity {
	case finding.SeverityCritical, finding.SeverityHigh:
		return "error"
	case finding.SeverityMedium:
		return "warning"
	case finding.SeverityLow:
		return "note"
	}
	return "note"
}
