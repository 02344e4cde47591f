package scan

import (
	"github.com/asura-sec/asura/pkg/adapter"
	"github.com/asura-sec/asura/pkg/finding"
)

// aggregate merges the per-tool outcomes into the final result. Findings are
// concatenated in the fixed tool precedence order so output is reproducible
// regardless of completion order. ToolsUsed always covers every wired tool
// in that order, whether or not it could run; only the dispatched subset
// participates in the overall-status and failed-tools accounting. With no
// dispatched tools the run is failed with an empty finding set.
func (c *Controller) aggregate(dispatched []adapter.Adapter, statuses map[finding.Tool]string, outcomes map[finding.Tool]*finding.Outcome) *finding.ScanResult {
	wired := make(map[finding.Tool]struct{}, len(c.adapters))
	for _, a := range c.adapters {
		wired[a.Tool()] = struct{}{}
	}
	dispatchedSet := make(map[finding.Tool]struct{}, len(dispatched))
	for _, a := range dispatched {
		dispatchedSet[a.Tool()] = struct{}{}
	}

	findings := []finding.Finding{}
	toolsUsed := []finding.Tool{}
	failedTools := []finding.Tool{}
	for _, tool := range finding.Tools() {
		if outcome, ok := outcomes[tool]; ok {
			findings = append(findings, outcome.Findings...)
		}
		if _, ok := wired[tool]; ok {
			toolsUsed = append(toolsUsed, tool)
		}
		if _, ok := dispatchedSet[tool]; !ok {
			continue
		}
		if finding.IsFailed(statuses[tool]) {
			failedTools = append(failedTools, tool)
		}
	}

	overall := finding.OverallComplete
	switch {
	case len(dispatched) == 0:
		overall = finding.OverallFailed
	case len(failedTools) == len(dispatched):
		overall = finding.OverallFailed
	case len(failedTools) > 0:
		overall = finding.OverallPartialComplete
	}

	counts := finding.CountSeverities(findings)
	score := finding.HealthScore(counts)
	return &finding.ScanResult{
		Findings:       findings,
		SeverityCounts: counts,
		ToolsUsed:      toolsUsed,
		ToolStatuses:   statuses,
		FailedTools:    failedTools,
		OverallStatus:  overall,
		HealthScore:    score,
		Grade:          finding.Grade(score),
		LogsPath:       c.param.LogsPath,
	}
}
