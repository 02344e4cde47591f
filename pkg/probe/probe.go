// Package probe detects which external analysis tools are usable on the
// host. A tool counts as available only if its executable resolves on the
// search path and answers a version query with exit code 0.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/finding"
)

// Spec describes how to probe one known tool.
type Spec struct {
	Command     string
	VersionFlag string
	InstallHint string
	Description string
}

func specs() map[finding.Tool]Spec {
	npm := "npm"
	if runtime.GOOS == "windows" {
		npm = "npm.cmd"
	}
	return map[finding.Tool]Spec{
		finding.ToolBandit: {
			Command:     "bandit",
			VersionFlag: "--version",
			InstallHint: "pip install bandit",
			Description: "Python security linter",
		},
		finding.ToolSafety: {
			Command:     "safety",
			VersionFlag: "--version",
			InstallHint: "pip install safety",
			Description: "Python dependency security checker",
		},
		finding.ToolNpmAudit: {
			Command:     npm,
			VersionFlag: "--version",
			InstallHint: "install Node.js and npm",
			Description: "Node.js dependency audit",
		},
		finding.ToolSemgrep: {
			Command:     "semgrep",
			VersionFlag: "--version",
			InstallHint: "pip install semgrep",
			Description: "multi-language pattern scanner",
		},
		finding.ToolTrufflehog: {
			Command:     "trufflehog",
			VersionFlag: "--version",
			InstallHint: "brew install trufflehog",
			Description: "hardcoded secret detector",
		},
	}
}

// Result is the outcome of probing one tool. Detail holds the reported
// version when available, otherwise the reason the tool is unusable.
type Result struct {
	Tool      finding.Tool
	Available bool
	Detail    string
}

const versionTimeout = 5 * time.Second

type Prober struct {
	specs    map[finding.Tool]Spec
	lookPath func(string) (string, error)
	run      func(ctx context.Context, command string, arg string) (string, error)
	timeout  time.Duration
}

func New() *Prober {
	return &Prober{
		specs:    specs(),
		lookPath: exec.LookPath,
		run:      runVersion,
		timeout:  versionTimeout,
	}
}

func runVersion(ctx context.Context, command, arg string) (string, error) {
	cmd := exec.CommandContext(ctx, command, arg)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

// Probe checks one tool. An unknown tool id is a caller bug, not a runtime
// status, so it is returned as an error.
func (p *Prober) Probe(ctx context.Context, tool finding.Tool) (Result, error) {
	spec, ok := p.specs[tool]
	if !ok {
		return Result{}, fmt.Errorf("unknown tool: %s", tool)
	}
	if _, err := p.lookPath(spec.Command); err != nil {
		return Result{
			Tool:   tool,
			Detail: "not installed. Install with: " + spec.InstallHint,
		}, nil
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	out, err := p.run(ctx, spec.Command, spec.VersionFlag)
	if err != nil {
		if ctx.Err() != nil {
			return Result{Tool: tool, Detail: "version check timed out"}, nil
		}
		return Result{
			Tool:   tool,
			Detail: "version check failed: " + strings.TrimSpace(firstLine(out)+" "+err.Error()),
		}, nil
	}
	return Result{Tool: tool, Available: true, Detail: versionDetail(out)}, nil
}

// ProbeAll probes every known tool concurrently. One tool's probe failure
// never affects the others.
func (p *Prober) ProbeAll(ctx context.Context, logE *logrus.Entry) map[finding.Tool]Result {
	results := make(map[finding.Tool]Result, len(p.specs))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, tool := range finding.Tools() {
		wg.Add(1)
		go func(tool finding.Tool) {
			defer wg.Done()
			result, err := p.Probe(ctx, tool)
			if err != nil {
				// Unreachable for the fixed tool set, but never drop a probe.
				result = Result{Tool: tool, Detail: err.Error()}
			}
			mu.Lock()
			results[tool] = result
			mu.Unlock()
			if result.Available {
				logE.WithFields(logrus.Fields{
					"tool":    tool,
					"version": result.Detail,
				}).Debug("tool is available")
				return
			}
			logE.WithFields(logrus.Fields{
				"tool":   tool,
				"detail": result.Detail,
			}).Debug("tool is unavailable")
		}(tool)
	}
	wg.Wait()
	return results
}

var versionPattern = regexp.MustCompile(`\d+\.\d+(\.\d+)?([\w.+-]*)`)

// versionDetail extracts a normalized version from the first output line.
// Tools wrap their version in arbitrary prose, so fall back to the raw line.
func versionDetail(out string) string {
	line := firstLine(out)
	raw := versionPattern.FindString(line)
	if raw == "" {
		if line == "" {
			return "installed"
		}
		return line
	}
	v, err := goversion.NewVersion(raw)
	if err != nil {
		return line
	}
	return v.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
