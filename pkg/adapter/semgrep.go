package adapter

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
)

// Semgrep runs the multi-language pattern scanner over the full selection.
type Semgrep struct {
	fs      afero.Fs
	runner  Runner
	getenv  func(string) string
	timeout time.Duration
}

func NewSemgrep(fs afero.Fs, runner Runner, timeout time.Duration) *Semgrep {
	return &Semgrep{fs: fs, runner: runner, getenv: os.Getenv, timeout: timeout}
}

func (s *Semgrep) Tool() finding.Tool {
	return finding.ToolSemgrep
}

type semgrepReport struct {
	Results []semgrepResult `json:"results"`
}

type semgrepResult struct {
	CheckID string `json:"check_id"`
	Path    string `json:"path"`
	Start   struct {
		Line int `json:"line"`
	} `json:"start"`
	Extra struct {
		Severity string `json:"severity"`
		Message  string `json:"message"`
		Lines    string `json:"lines"`
	} `json:"extra"`
}

func (s *Semgrep) Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string) {
	files := in.Selection.All()
	if len(files) == 0 {
		return nil, finding.Skipped("no source files")
	}
	args := append([]string{s.executable(in.Root), "--config=auto", "--json"}, files...)
	result, status, invoked := invoke(ctx, logE, s.runner, procrun.Invocation{
		Tool:    s.Tool(),
		Args:    args,
		Env:     pythonUTF8Env(os.Environ()),
		Timeout: s.timeout,
	})
	if !invoked {
		return nil, status
	}
	report := &semgrepReport{}
	if err := json.Unmarshal(result.Stdout, report); err != nil {
		return nil, parseFailed(logE, s.runner, s.Tool(), result.Stdout, err)
	}
	findings := make([]finding.Finding, 0, len(report.Results))
	for _, item := range report.Results {
		findings = append(findings, finding.Finding{
			Tool:        s.Tool(),
			Severity:    mapSemgrepSeverity(item.Extra.Severity),
			FilePath:    item.Path,
			LineNumber:  item.Start.Line,
			TypeID:      item.CheckID,
			Description: truncateDescription(item.Extra.Message),
			CodeSnippet: item.Extra.Lines,
			Confidence:  "MEDIUM",
		})
	}
	return findings, finding.StatusSuccess
}

// executable prefers a local toolchain install over the search path, since
// an active virtualenv usually carries the semgrep matching the project.
func (s *Semgrep) executable(root string) string {
	candidates := []string{}
	if venv := s.getenv("VIRTUAL_ENV"); venv != "" {
		candidates = append(candidates, filepath.Join(venv, "bin", "semgrep"))
	}
	candidates = append(candidates, filepath.Join(root, ".venv", "bin", "semgrep"))
	for _, candidate := range candidates {
		if ok, err := afero.Exists(s.fs, candidate); err == nil && ok {
			return candidate
		}
	}
	return "semgrep"
}

// mapSemgrepSeverity maps semgrep's ERROR/WARNING/INFO vocabulary. Unknown
// values default to MEDIUM.
func mapSemgrepSeverity(severity string) finding.Severity {
	switch severity {
	case "ERROR":
		return finding.SeverityHigh
	case "WARNING":
		return finding.SeverityMedium
	case "INFO":
		return finding.SeverityLow
	default:
		return finding.SeverityMedium
	}
}
