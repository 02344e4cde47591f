package adapter

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
	"github.com/asura-sec/asura/pkg/selector"
)

// Bandit runs the bandit static analyzer over the Python bucket.
type Bandit struct {
	runner  Runner
	timeout time.Duration
}

func NewBandit(runner Runner, timeout time.Duration) *Bandit {
	return &Bandit{runner: runner, timeout: timeout}
}

func (b *Bandit) Tool() finding.Tool {
	return finding.ToolBandit
}

type banditReport struct {
	Results []banditResult `json:"results"`
}

type banditResult struct {
	Filename        string    `json:"filename"`
	LineNumber      int       `json:"line_number"`
	TestID          string    `json:"test_id"`
	IssueText       string    `json:"issue_text"`
	IssueSeverity   string    `json:"issue_severity"`
	IssueConfidence string    `json:"issue_confidence"`
	Code            string    `json:"code"`
	IssueCWE        banditCWE `json:"issue_cwe"`
}

type banditCWE struct {
	ID int `json:"id"`
}

func (b *Bandit) Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string) {
	files := in.Selection[selector.CategoryPython]
	if len(files) == 0 {
		return nil, finding.Skipped("no python files")
	}
	args := append([]string{"bandit", "-f", "json"}, files...)
	result, status, ok := invoke(ctx, logE, b.runner, procrun.Invocation{
		Tool:    b.Tool(),
		Args:    args,
		Env:     pythonUTF8Env(os.Environ()),
		Timeout: b.timeout,
	})
	if !ok {
		return nil, status
	}
	report := &banditReport{}
	if err := json.Unmarshal(result.Stdout, report); err != nil {
		return nil, parseFailed(logE, b.runner, b.Tool(), result.Stdout, err)
	}
	findings := make([]finding.Finding, 0, len(report.Results))
	for _, item := range report.Results {
		f := finding.Finding{
			Tool:        b.Tool(),
			Severity:    mapBanditSeverity(item.IssueSeverity),
			FilePath:    item.Filename,
			LineNumber:  item.LineNumber,
			TypeID:      item.TestID,
			Description: truncateDescription(item.IssueText),
			CodeSnippet: item.Code,
			Confidence:  item.IssueConfidence,
		}
		if item.IssueCWE.ID != 0 {
			f.CWEID = "CWE-" + strconv.Itoa(item.IssueCWE.ID)
		}
		findings = append(findings, f)
	}
	return findings, finding.StatusSuccess
}

// mapBanditSeverity maps bandit's HIGH/MEDIUM/LOW vocabulary. Unknown
// values default to MEDIUM.
func mapBanditSeverity(severity string) finding.Severity {
	switch severity {
	case "HIGH":
		return finding.SeverityHigh
	case "MEDIUM":
		return finding.SeverityMedium
	case "LOW":
		return finding.SeverityLow
	default:
		return finding.SeverityMedium
	}
}
