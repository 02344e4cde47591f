package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
)

const npmV7Output = `{
  "vulnerabilities": {
    "lodash": {
      "name": "lodash",
      "severity": "critical",
      "range": "<4.17.21",
      "via": [
        {"title": "Command Injection in lodash", "url": "https://github.com/advisories/GHSA-35jh"}
      ]
    },
    "minimist": {
      "name": "minimist",
      "severity": "moderate",
      "range": "<1.2.6",
      "via": ["lodash"]
    }
  }
}`

const npmV6Output = `{
  "advisories": {
    "118": {
      "module_name": "minimatch",
      "severity": "high",
      "title": "Regular Expression Denial of Service",
      "overview": "minimatch is vulnerable to ReDoS.",
      "cwe": "CWE-400"
    }
  }
}`

func npmFs(t *testing.T, paths ...string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, p := range paths {
		if err := afero.WriteFile(fs, p, []byte("{}"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return fs
}

func TestNpmAudit_Run(t *testing.T) {
	t.Parallel()
	fs := npmFs(t, "/repo/web/package.json")
	runner := &fakeRunner{result: &procrun.Result{Stdout: []byte(npmV7Output), ExitCode: 1}}
	n := NewNpmAudit(fs, runner, "npm", time.Minute)
	findings, status := n.Run(context.Background(), testLogE(), &Input{Root: "/repo"})
	if status != finding.StatusSuccess {
		t.Fatalf("wanted success, got %q", status)
	}
	exp := []finding.Finding{
		{
			Tool:        finding.ToolNpmAudit,
			Severity:    finding.SeverityCritical,
			FilePath:    "web/package.json",
			TypeID:      "NPM_lodash",
			Description: "lodash <4.17.21: Command Injection in lodash",
			CodeSnippet: "lodash@<4.17.21",
			Confidence:  "HIGH",
		},
		{
			Tool:        finding.ToolNpmAudit,
			Severity:    finding.SeverityMedium,
			FilePath:    "web/package.json",
			TypeID:      "NPM_minimist",
			Description: "minimist <1.2.6 is vulnerable",
			CodeSnippet: "minimist@<1.2.6",
			Confidence:  "HIGH",
		},
	}
	if diff := cmp.Diff(exp, findings); diff != "" {
		t.Fatal(diff)
	}
	if dir := runner.invocations[0].Dir; dir != "/repo/web" {
		t.Fatalf("npm must run from the manifest directory, got %q", dir)
	}
}

func TestNpmAudit_Run_legacyAdvisories(t *testing.T) {
	t.Parallel()
	fs := npmFs(t, "/repo/package.json")
	runner := &fakeRunner{result: &procrun.Result{Stdout: []byte(npmV6Output), ExitCode: 1}}
	n := NewNpmAudit(fs, runner, "npm", time.Minute)
	findings, status := n.Run(context.Background(), testLogE(), &Input{Root: "/repo"})
	if status != finding.StatusSuccess {
		t.Fatalf("wanted success, got %q", status)
	}
	exp := []finding.Finding{
		{
			Tool:        finding.ToolNpmAudit,
			Severity:    finding.SeverityHigh,
			FilePath:    "package.json",
			TypeID:      "NPM_minimatch",
			Description: "Regular Expression Denial of Service: minimatch is vulnerable to ReDoS.",
			CWEID:       "CWE-400",
			Confidence:  "HIGH",
		},
	}
	if diff := cmp.Diff(exp, findings); diff != "" {
		t.Fatal(diff)
	}
}

func TestNpmAudit_Run_noManifest(t *testing.T) {
	t.Parallel()
	fs := npmFs(t, "/repo/app.py")
	runner := &fakeRunner{}
	n := NewNpmAudit(fs, runner, "npm", time.Minute)
	_, status := n.Run(context.Background(), testLogE(), &Input{Root: "/repo"})
	if status != "skipped: no manifest found" {
		t.Fatalf("wanted a skip, got %q", status)
	}
}

func TestNpmAudit_findManifestDir(t *testing.T) {
	t.Parallel()
	data := []struct {
		name  string
		paths []string
		exp   string
	}{
		{
			name:  "nearest wins",
			paths: []string{"/repo/web/sub/package.json", "/repo/web/package.json"},
			exp:   "/repo/web",
		},
		{
			name:  "dependency caches are excluded",
			paths: []string{"/repo/node_modules/lodash/package.json"},
			exp:   "",
		},
		{
			name:  "root manifest",
			paths: []string{"/repo/package.json", "/repo/web/package.json"},
			exp:   "/repo",
		},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			n := NewNpmAudit(npmFs(t, d.paths...), &fakeRunner{}, "npm", time.Minute)
			dir, err := n.findManifestDir("/repo")
			if err != nil {
				t.Fatal(err)
			}
			if dir != d.exp {
				t.Fatalf("wanted %q, got %q", d.exp, dir)
			}
		})
	}
}
