// Package finding defines the canonical vulnerability model shared by every
// analysis tool adapter and the scan controller. Adapters map tool-native
// results into Finding values; the controller aggregates them into a
// ScanResult together with per-tool statuses and the health score.
package finding

import (
	"strings"
)

// Tool identifies one of the known external analyzers.
type Tool string

const (
	ToolBandit     Tool = "bandit"
	ToolSafety     Tool = "safety"
	ToolNpmAudit   Tool = "npm-audit"
	ToolSemgrep    Tool = "semgrep"
	ToolTrufflehog Tool = "trufflehog"
)

// Tools returns all known tools in the fixed precedence order used to
// aggregate findings. The order is part of the engine's contract: aggregated
// output is reproducible across runs regardless of completion order.
func Tools() []Tool {
	return []Tool{ToolBandit, ToolSafety, ToolNpmAudit, ToolSemgrep, ToolTrufflehog}
}

// Severity is the canonical four-level scale. Adapters must map tool-native
// vocabularies onto it and never pass native values through.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Severities returns the canonical severities ordered from lowest to highest.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Finding is one normalized vulnerability record.
type Finding struct {
	Tool        Tool     `json:"tool"`
	Severity    Severity `json:"severity"`
	FilePath    string   `json:"file_path"`
	LineNumber  int      `json:"line_number,omitempty"`
	TypeID      string   `json:"type_id"`
	Description string   `json:"description"`
	CodeSnippet string   `json:"code_snippet,omitempty"`
	CWEID       string   `json:"cwe_id,omitempty"`
	Confidence  string   `json:"confidence,omitempty"`
}

// Tool run statuses. A status is either StatusSuccess or a string prefixed
// with "skipped: " or "failed: ".
const (
	StatusSuccess = "success"

	skippedPrefix = "skipped: "
	failedPrefix  = "failed: "
)

func Skipped(reason string) string {
	return skippedPrefix + reason
}

func Failed(reason string) string {
	return failedPrefix + reason
}

func IsSkipped(status string) bool {
	return strings.HasPrefix(status, skippedPrefix)
}

// IsFailed reports whether a status counts toward failure accounting.
// Anything that is neither success nor skipped is a failure.
func IsFailed(status string) bool {
	return status != StatusSuccess && !IsSkipped(status)
}

// Outcome is the result of running one tool adapter. If Status is not
// StatusSuccess the findings must not be treated as exhaustive.
type Outcome struct {
	Tool     Tool      `json:"tool"`
	Status   string    `json:"status"`
	Findings []Finding `json:"findings"`
}

// Overall run statuses.
const (
	OverallComplete        = "complete"
	OverallPartialComplete = "partial_complete"
	OverallFailed          = "failed"
)

// ScanResult is the engine's sole output value. It is constructed fresh for
// each run and immutable once returned.
type ScanResult struct {
	Findings       []Finding        `json:"findings"`
	SeverityCounts map[Severity]int `json:"severity_counts"`
	ToolsUsed      []Tool           `json:"tools_used"`
	ToolStatuses   map[Tool]string  `json:"tool_statuses"`
	FailedTools    []Tool           `json:"failed_tools"`
	OverallStatus  string           `json:"overall_status"`
	HealthScore    float64          `json:"health_score"`
	Grade          string           `json:"grade"`
	LogsPath       string           `json:"logs_path"`
}

// CountSeverities tallies findings into a map covering all four severities.
// The sum of the counts always equals len(findings).
func CountSeverities(findings []Finding) map[Severity]int {
	counts := map[Severity]int{
		SeverityLow:      0,
		SeverityMedium:   0,
		SeverityHigh:     0,
		SeverityCritical: 0,
	}
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
