package sarif

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/asura-sec/asura/pkg/finding"
)

func TestNewLog(t *testing.T) {
	t.Parallel()
	result := &finding.ScanResult{
		Findings: []finding.Finding{
			{
				Tool:        finding.ToolBandit,
				Severity:    finding.SeverityHigh,
				FilePath:    "/app/db.py",
				LineNumber:  12,
				TypeID:      "B301",
				Description: "Pickle library appears to be in use.",
				CWEID:       "CWE-502",
				Confidence:  "HIGH",
			},
			{
				Tool:        finding.ToolSafety,
				Severity:    finding.SeverityMedium,
				FilePath:    "requirements.txt",
				TypeID:      "CVE-2023-30861_51457",
				Description: "Flask before 2.2.5 may disclose the session cookie.",
			},
		},
	}
	log := NewLog(result, "1.2.3")
	if log.Version != "2.1.0" || log.Schema == "" {
		t.Fatalf("unexpected envelope: %+v", log)
	}
	if len(log.Runs) != 1 {
		t.Fatalf("wanted a single run, got %d", len(log.Runs))
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "asura" || run.Tool.Driver.Version != "1.2.3" {
		t.Fatalf("unexpected driver: %+v", run.Tool.Driver)
	}
	exp := []Result{
		{
			RuleID:  "bandit/B301",
			Level:   "error",
			Message: Message{Text: "Pickle library appears to be in use."},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: "app/db.py"},
						Region:           &Region{StartLine: 12},
					},
				},
			},
			Properties: map[string]any{
				"tool":       "bandit",
				"confidence": "HIGH",
				"cwe_id":     "CWE-502",
			},
		},
		{
			RuleID:  "safety/CVE-2023-30861_51457",
			Level:   "warning",
			Message: Message{Text: "Flask before 2.2.5 may disclose the session cookie."},
			Locations: []Location{
				{
					PhysicalLocation: PhysicalLocation{
						ArtifactLocation: ArtifactLocation{URI: "requirements.txt"},
					},
				},
			},
			Properties: map[string]any{"tool": "safety"},
		},
	}
	if diff := cmp.Diff(exp, run.Results); diff != "" {
		t.Fatal(diff)
	}
}

func TestLevel(t *testing.T) {
	t.Parallel()
	data := []struct {
		severity finding.Severity
		exp      string
	}{
		{finding.SeverityCritical, "error"},
		{finding.SeverityHigh, "error"},
		{finding.SeverityMedium, "warning"},
		{finding.SeverityLow, "note"},
		{finding.Severity("INFO"), "note"},
	}
	for _, d := range data {
		if got := level(d.severity); got != d.exp {
			t.Fatalf("level(%s) = %q, wanted %q", d.severity, got, d.exp)
		}
	}
}
