package adapter

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
)

// Trufflehog detects hardcoded secrets. It scans the whole project tree,
// not just the selected files, because secrets hide in any file type.
type Trufflehog struct {
	runner  Runner
	timeout time.Duration
}

func NewTrufflehog(runner Runner, timeout time.Duration) *Trufflehog {
	return &Trufflehog{runner: runner, timeout: timeout}
}

func (t *Trufflehog) Tool() finding.Tool {
	return finding.ToolTrufflehog
}

// trufflehogRecord is one line of the JSON-lines output.
type trufflehogRecord struct {
	DetectorName   string `json:"DetectorName"`
	Raw            string `json:"Raw"`
	SourceMetadata struct {
		Data struct {
			Filesystem struct {
				File string `json:"file"`
				Line int    `json:"line"`
			} `json:"Filesystem"`
		} `json:"Data"`
	} `json:"SourceMetadata"`
}

func (t *Trufflehog) Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string) {
	result, status, invoked := invoke(ctx, logE, t.runner, procrun.Invocation{
		Tool:    t.Tool(),
		Args:    []string{"trufflehog", "filesystem", "--json", "--no-update", in.Root},
		Timeout: t.timeout,
	})
	if !invoked {
		return nil, status
	}
	findings, err := t.parse(result.Stdout)
	if err != nil {
		return nil, parseFailed(logE, t.runner, t.Tool(), result.Stdout, err)
	}
	return findings, finding.StatusSuccess
}

// parse decodes the JSON-lines stream. Every secret is HIGH: the detector
// does not grade, and any verified hit is actionable.
func (t *Trufflehog) parse(stdout []byte) ([]finding.Finding, error) {
	var findings []finding.Finding
	scanner := bufio.NewScanner(bytes.NewReader(stdout))
	scanner.Buffer(make([]byte, 0, 64*1024), maxOutputSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		record := &trufflehogRecord{}
		if err := json.Unmarshal(line, record); err != nil {
			return nil, fmt.Errorf("decode a result line: %w", err)
		}
		if record.DetectorName == "" && record.Raw == "" {
			// Progress or log lines carry no finding.
			continue
		}
		findings = append(findings, finding.Finding{
			Tool:        t.Tool(),
			Severity:    finding.SeverityHigh,
			FilePath:    record.SourceMetadata.Data.Filesystem.File,
			LineNumber:  record.SourceMetadata.Data.Filesystem.Line,
			TypeID:      "SECRET_" + record.DetectorName,
			Description: truncateDescription("Hardcoded " + record.DetectorName + " secret"),
			CodeSnippet: redactSecret(record.Raw),
			Confidence:  "HIGH",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan the output: %w", err)
	}
	return findings, nil
}

// redactSecret never exposes the secret value. A short hash prefix is kept
// so the same secret can be correlated across findings.
func redactSecret(raw string) string {
	if raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(raw))
	return "[REDACTED:sha256:" + hex.EncodeToString(sum[:])[:8] + "]"
}
