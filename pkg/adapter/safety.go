package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
)

// Safety audits Python dependencies declared in requirements.txt.
type Safety struct {
	fs      afero.Fs
	runner  Runner
	timeout time.Duration
}

func NewSafety(fs afero.Fs, runner Runner, timeout time.Duration) *Safety {
	return &Safety{fs: fs, runner: runner, timeout: timeout}
}

func (s *Safety) Tool() finding.Tool {
	return finding.ToolSafety
}

// safetyReport is the 2.x JSON format.
type safetyReport struct {
	Vulnerabilities []safetyVulnerability `json:"vulnerabilities"`
}

type safetyVulnerability struct {
	VulnerabilityID string `json:"vulnerability_id"`
	PackageName     string `json:"package_name"`
	CVE             string `json:"CVE"`
	Advisory        string `json:"advisory"`
	AnalyzedVersion string `json:"analyzed_version"`
}

// safetyLegacyItem is the pre-2.x list format.
type safetyLegacyItem struct {
	Package          string `json:"package"`
	InstalledVersion string `json:"installed_version"`
	Vulnerability    string `json:"vulnerability"`
}

func (s *Safety) Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string) {
	manifest := filepath.Join(in.Root, "requirements.txt")
	ok, err := afero.Exists(s.fs, manifest)
	if err != nil {
		return nil, finding.Failed(err.Error())
	}
	if !ok {
		return nil, finding.Skipped(statusNoManifest)
	}
	manifest, cleanup, err := s.repairEncoding(logE, manifest)
	if err != nil {
		return nil, finding.Failed(err.Error())
	}
	defer cleanup()

	result, status, invoked := invoke(ctx, logE, s.runner, procrun.Invocation{
		Tool:    s.Tool(),
		Args:    []string{"safety", "check", "--file", manifest, "--json"},
		Env:     pythonUTF8Env(os.Environ()),
		Timeout: s.timeout,
	})
	if !invoked {
		return nil, status
	}
	// Safety exits 0 with no output when the dependency set is clean.
	if len(result.Stdout) == 0 {
		return nil, finding.StatusSuccess
	}
	findings, err := s.parse(result.Stdout)
	if err != nil {
		return nil, parseFailed(logE, s.runner, s.Tool(), result.Stdout, err)
	}
	return findings, finding.StatusSuccess
}

// repairEncoding rewrites a requirements file with invalid UTF-8 into a
// clean temporary copy so the tool does not choke on it. The returned
// cleanup removes the copy.
func (s *Safety) repairEncoding(logE *logrus.Entry, manifest string) (string, func(), error) {
	data, err := afero.ReadFile(s.fs, manifest)
	if err != nil {
		return "", nil, fmt.Errorf("read the manifest: %w", err)
	}
	if utf8.Valid(data) {
		return manifest, func() {}, nil
	}
	logE.WithField("manifest", manifest).Warn("the manifest has invalid UTF-8, rewriting a clean copy")
	f, err := afero.TempFile(s.fs, "", "requirements-*.txt")
	if err != nil {
		return "", nil, fmt.Errorf("create a clean manifest copy: %w", err)
	}
	clean := bytes.ToValidUTF8(data, []byte("�"))
	if _, err := f.Write(clean); err != nil {
		f.Close()
		return "", nil, fmt.Errorf("write a clean manifest copy: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", nil, fmt.Errorf("close a clean manifest copy: %w", err)
	}
	name := f.Name()
	return name, func() {
		if err := s.fs.Remove(name); err != nil {
			logE.WithError(err).Debug("remove a clean manifest copy")
		}
	}, nil
}

// parse accepts both safety JSON formats. Every dependency vulnerability is
// HIGH: safety does not grade severities, and any hit is actionable.
func (s *Safety) parse(stdout []byte) ([]finding.Finding, error) {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []safetyLegacyItem
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode the legacy report: %w", err)
		}
		findings := make([]finding.Finding, 0, len(items))
		for _, item := range items {
			findings = append(findings, finding.Finding{
				Tool:        s.Tool(),
				Severity:    finding.SeverityHigh,
				FilePath:    "requirements.txt",
				TypeID:      "VULNERABLE_DEPENDENCY_" + item.Package,
				Description: truncateDescription(fmt.Sprintf("%s %s - %s", item.Package, item.InstalledVersion, item.Vulnerability)),
				CodeSnippet: item.Package + "==" + item.InstalledVersion,
				Confidence:  "HIGH",
			})
		}
		return findings, nil
	}
	report := &safetyReport{}
	if err := json.Unmarshal(trimmed, report); err != nil {
		return nil, fmt.Errorf("decode the report: %w", err)
	}
	findings := make([]finding.Finding, 0, len(report.Vulnerabilities))
	for _, vuln := range report.Vulnerabilities {
		typeID := "SAFETY_" + vuln.VulnerabilityID
		if vuln.CVE != "" {
			typeID = vuln.CVE + "_" + vuln.VulnerabilityID
		}
		findings = append(findings, finding.Finding{
			Tool:        s.Tool(),
			Severity:    finding.SeverityHigh,
			FilePath:    "requirements.txt",
			TypeID:      typeID,
			Description: truncateDescription(fmt.Sprintf("%s %s: %s", vuln.PackageName, vuln.AnalyzedVersion, vuln.Advisory)),
			CodeSnippet: vuln.PackageName + "==" + vuln.AnalyzedVersion,
			Confidence:  "HIGH",
		})
	}
	return findings, nil
}
