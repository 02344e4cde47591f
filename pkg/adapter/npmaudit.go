package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
)

// NpmAudit audits Node.js dependencies. The nearest package.json anywhere
// under the project decides where npm is invoked from.
type NpmAudit struct {
	fs      afero.Fs
	runner  Runner
	command string
	timeout time.Duration
}

func NewNpmAudit(fs afero.Fs, runner Runner, command string, timeout time.Duration) *NpmAudit {
	return &NpmAudit{fs: fs, runner: runner, command: command, timeout: timeout}
}

func (n *NpmAudit) Tool() finding.Tool {
	return finding.ToolNpmAudit
}

// npmReport is the npm 7+ format.
type npmReport struct {
	Vulnerabilities map[string]npmVulnerability `json:"vulnerabilities"`
	Advisories      map[string]npmAdvisory      `json:"advisories"`
}

type npmVulnerability struct {
	Name     string            `json:"name"`
	Severity string            `json:"severity"`
	Range    string            `json:"range"`
	Via      []json.RawMessage `json:"via"`
}

// npmVia is an object entry of the via list; plain strings reference other
// vulnerable packages and carry no advisory of their own.
type npmVia struct {
	Title string `json:"title"`
}

// npmAdvisory is the npm 6 format.
type npmAdvisory struct {
	ModuleName string `json:"module_name"`
	Severity   string `json:"severity"`
	Title      string `json:"title"`
	Overview   string `json:"overview"`
	CWE        string `json:"cwe"`
}

func (n *NpmAudit) Run(ctx context.Context, logE *logrus.Entry, in *Input) ([]finding.Finding, string) {
	manifestDir, err := n.findManifestDir(in.Root)
	if err != nil {
		return nil, finding.Failed(err.Error())
	}
	if manifestDir == "" {
		return nil, finding.Skipped(statusNoManifest)
	}
	result, status, invoked := invoke(ctx, logE, n.runner, procrun.Invocation{
		Tool: n.Tool(),
		Args: []string{n.command, "audit", "--json"},
		// npm audit reads package.json relative to its working directory.
		Dir:     manifestDir,
		Timeout: n.timeout,
	})
	if !invoked {
		return nil, status
	}
	findings, err := n.parse(result.Stdout, manifestDir, in.Root)
	if err != nil {
		return nil, parseFailed(logE, n.runner, n.Tool(), result.Stdout, err)
	}
	return findings, finding.StatusSuccess
}

// findManifestDir returns the directory of the shallowest package.json
// under root, excluding dependency caches. Empty when none exists.
func (n *NpmAudit) findManifestDir(root string) (string, error) {
	best := ""
	bestDepth := -1
	if err := afero.Walk(n.fs, root, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr
		}
		if info.IsDir() {
			name := info.Name()
			if p != root && (name == "node_modules" || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() != "package.json" {
			return nil
		}
		depth := strings.Count(p, string(filepath.Separator))
		if best == "" || depth < bestDepth {
			best = filepath.Dir(p)
			bestDepth = depth
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("search for package.json: %w", err)
	}
	return best, nil
}

func (n *NpmAudit) parse(stdout []byte, manifestDir, root string) ([]finding.Finding, error) {
	report := &npmReport{}
	if err := json.Unmarshal(stdout, report); err != nil {
		return nil, fmt.Errorf("decode the audit report: %w", err)
	}
	manifest := filepath.Join(manifestDir, "package.json")
	if rel, err := filepath.Rel(root, manifest); err == nil {
		manifest = rel
	}
	// Map iteration order is random; keep per-tool ordering reproducible.
	var findings []finding.Finding
	for _, name := range sortedKeys(report.Vulnerabilities) {
		vuln := report.Vulnerabilities[name]
		findings = append(findings, finding.Finding{
			Tool:        n.Tool(),
			Severity:    mapNpmSeverity(vuln.Severity),
			FilePath:    manifest,
			TypeID:      "NPM_" + name,
			Description: truncateDescription(n.describe(name, &vuln)),
			CodeSnippet: name + "@" + vuln.Range,
			Confidence:  "HIGH",
		})
	}
	for _, id := range sortedKeys(report.Advisories) {
		advisory := report.Advisories[id]
		findings = append(findings, finding.Finding{
			Tool:        n.Tool(),
			Severity:    mapNpmSeverity(advisory.Severity),
			FilePath:    manifest,
			TypeID:      "NPM_" + advisory.ModuleName,
			Description: truncateDescription(advisory.Title + ": " + advisory.Overview),
			CWEID:       advisory.CWE,
			Confidence:  "HIGH",
		})
	}
	return findings, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// describe prefers the first advisory object of the via list; plain string
// entries only reference other packages.
func (n *NpmAudit) describe(name string, vuln *npmVulnerability) string {
	for _, raw := range vuln.Via {
		via := &npmVia{}
		if err := json.Unmarshal(raw, via); err != nil || via.Title == "" {
			continue
		}
		return fmt.Sprintf("%s %s: %s", name, vuln.Range, via.Title)
	}
	return fmt.Sprintf("%s %s is vulnerable", name, vuln.Range)
}

// mapNpmSeverity maps npm's graded vocabulary. Unknown values default to
// MEDIUM.
func mapNpmSeverity(severity string) finding.Severity {
	switch severity {
	case "critical":
		return finding.SeverityCritical
	case "high":
		return finding.SeverityHigh
	case "moderate":
		return finding.SeverityMedium
	case "low", "info":
		return finding.SeverityLow
	default:
		return finding.SeverityMedium
	}
}
