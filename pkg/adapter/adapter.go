// Package adapter wraps each external analysis tool behind one contract:
// build the command line, invoke it through the resilient process runner,
// parse the tool-specific output, and map it into the canonical finding
// schema. Adapters report a status string instead of returning errors; the
// orchestrator treats anything an adapter reports as data.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
	"github.com/asura-sec/asura/pkg/selector"
)

// Runner is the subset of the process runner adapters depend on.
type Runner interface {
	Run(ctx context.Context, logE *logrus.Entry, inv procrun.Invocation) (*procrun.Result, error)
	SaveRaw(tool finding.Tool, suffix string, data []byte) error
}

// Input is what the orchestrator hands every adapter.
type Input struct {
	// Root is the pre-validated project root.
	Root string
	// Selection is the categorized file selection.
	Selection selector.Selection
}

// Adapter runs one tool. Run never fails the scan: every problem is encoded
// in the returned status and the findings are empty or partial in that case.
type Adapter interface {
	Tool() finding.Tool
	Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string)
}

const (
	// maxOutputSize aborts parsing of outputs over 5 MB.
	maxOutputSize = 5_000_000
	// stderrPreviewLen bounds stderr excerpts embedded in statuses.
	stderrPreviewLen = 500
	// maxDescriptionLen bounds finding descriptions.
	maxDescriptionLen = 300
)

const statusNoManifest = "no manifest found"

// invoke runs the tool and applies the failure classification shared by all
// adapters. ok is false when a terminal status has been determined.
func invoke(ctx context.Context, logE *logrus.Entry, runner Runner, inv procrun.Invocation) (result *procrun.Result, status string, ok bool) {
	result, err := runner.Run(ctx, logE, inv)
	if err != nil {
		if errors.Is(err, procrun.ErrTimeout) {
			return nil, finding.Failed("timeout"), false
		}
		return nil, finding.Failed(err.Error()), false
	}
	if len(result.Stdout) == 0 && result.ExitCode != 0 {
		status := fmt.Sprintf("empty output with exit code %d", result.ExitCode)
		if preview := stderrPreview(result.Stderr); preview != "" {
			status += ": " + preview
		}
		return nil, finding.Failed(status), false
	}
	if len(result.Stdout) > maxOutputSize {
		if err := runner.SaveRaw(inv.Tool, "too_large", fmt.Appendf(nil, "output size: %d bytes, truncated for safety", len(result.Stdout))); err != nil {
			logE.WithField("tool", inv.Tool).WithError(err).Warn("save oversized output note")
		}
		return nil, finding.Failed("output too large"), false
	}
	return result, "", true
}

// parseFailed persists raw output that could not be decoded and builds the
// terminal status for it.
func parseFailed(logE *logrus.Entry, runner Runner, tool finding.Tool, raw []byte, err error) string {
	if saveErr := runner.SaveRaw(tool, "unparseable", raw); saveErr != nil {
		logE.WithField("tool", tool).WithError(saveErr).Warn("save unparseable output")
	}
	logE.WithField("tool", tool).WithError(err).Debug("parse tool output")
	return finding.Failed("unparseable output: " + preview(string(raw), 100))
}

func stderrPreview(stderr []byte) string {
	return preview(strings.TrimSpace(string(stderr)), stderrPreviewLen)
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func truncateDescription(s string) string {
	return preview(s, maxDescriptionLen)
}

// pythonUTF8Env extends an environment so Python-based tools emit UTF-8
// regardless of the host locale.
func pythonUTF8Env(base []string) []string {
	return append(base, "PYTHONIOENCODING=utf-8", "PYTHONUTF8=1")
}
