package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/asura-sec/asura/pkg/finding"
)

var severityColors = map[finding.Severity]*color.Color{
	finding.SeverityCritical: color.New(color.FgRed, color.Bold),
	finding.SeverityHigh:     color.New(color.FgRed),
	finding.SeverityMedium:   color.New(color.FgYellow),
	finding.SeverityLow:      color.New(color.FgCyan),
}

func gradeColor(grade string) *color.Color {
	switch grade {
	case "A", "B":
		return color.New(color.FgGreen, color.Bold)
	case "C", "D":
		return color.New(color.FgYellow, color.Bold)
	}
	return color.New(color.FgRed, color.Bold)
}

func (r *Runner) outputText(result *finding.ScanResult) {
	fmt.Fprintln(r.Stdout)
	fmt.Fprintln(r.Stdout, "Scan result:", result.OverallStatus)
	fmt.Fprintln(r.Stdout)

	for _, tool := range result.ToolsUsed {
		status := result.ToolStatuses[tool]
		c := color.New(color.FgGreen)
		if finding.IsSkipped(status) {
			c = color.New(color.FgYellow)
		} else if finding.IsFailed(status) {
			c = color.New(color.FgRed)
		}
		fmt.Fprintf(r.Stdout, "  %-12s %s\n", tool, c.Sprint(status))
	}
	fmt.Fprintln(r.Stdout)

	for _, f := range result.Findings {
		severity := severityColors[f.Severity].Sprintf("%-8s", f.Severity)
		location := f.FilePath
		if f.LineNumber > 0 {
			location = fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
		}
		fmt.Fprintf(r.Stdout, "%s %s [%s] %s\n", severity, location, f.TypeID, f.Description)
	}
	if len(result.Findings) > 0 {
		fmt.Fprintln(r.Stdout)
	}

	counts := make([]string, 0, 4)
	for i := len(finding.Severities()) - 1; i >= 0; i-- {
		severity := finding.Severities()[i]
		counts = append(counts, fmt.Sprintf("%s %d", severity, result.SeverityCounts[severity]))
	}
	fmt.Fprintln(r.Stdout, "Findings:", strings.Join(counts, ", "))
	fmt.Fprintf(r.Stdout, "Health score: %.0f  Grade: %s\n",
		result.HealthScore, gradeColor(result.Grade).Sprint(result.Grade))
	if result.LogsPath != "" {
		fmt.Fprintln(r.Stdout, "Tool logs:", result.LogsPath)
	}
}
