package adapter

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
	"github.com/asura-sec/asura/pkg/selector"
)

const semgrepOutput = `{
  "results": [
    {
      "check_id": "python.lang.security.dangerous-eval",
      "path": "app/handler.py",
      "start": {"line": 8},
      "extra": {
        "severity": "ERROR",
        "message": "Detected the use of eval().",
        "lines": "eval(payload)"
      }
    },
    {
      "check_id": "javascript.lang.security.detect-console",
      "path": "web/index.js",
      "start": {"line": 2},
      "extra": {
        "severity": "INVENTORY",
        "message": "Inventory rule.",
        "lines": "console.log(x)"
      }
    }
  ]
}`

func TestSemgrep_Run(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{result: &procrun.Result{Stdout: []byte(semgrepOutput), ExitCode: 1}}
	s := NewSemgrep(afero.NewMemMapFs(), runner, time.Minute)
	s.getenv = func(string) string { return "" }
	findings, status := s.Run(context.Background(), testLogE(), &Input{
		Root: "/repo",
		Selection: selector.Selection{
			selector.CategoryPython:     {"/repo/app/handler.py"},
			selector.CategoryJavaScript: {"/repo/web/index.js"},
		},
	})
	if status != finding.StatusSuccess {
		t.Fatalf("wanted success, got %q", status)
	}
	exp := []finding.Finding{
		{
			Tool:        finding.ToolSemgrep,
			Severity:    finding.SeverityHigh,
			FilePath:    "app/handler.py",
			LineNumber:  8,
			TypeID:      "python.lang.security.dangerous-eval",
			Description: "Detected the use of eval().",
			CodeSnippet: "eval(payload)",
			Confidence:  "MEDIUM",
		},
		{
			Tool:        finding.ToolSemgrep,
			Severity:    finding.SeverityMedium, // unknown native value defaults to MEDIUM
			FilePath:    "web/index.js",
			LineNumber:  2,
			TypeID:      "javascript.lang.security.detect-console",
			Description: "Inventory rule.",
			CodeSnippet: "console.log(x)",
			Confidence:  "MEDIUM",
		},
	}
	if diff := cmp.Diff(exp, findings); diff != "" {
		t.Fatal(diff)
	}
	args := runner.invocations[0].Args
	if args[0] != "semgrep" {
		t.Fatalf("unexpected executable: %q", args[0])
	}
}

func TestSemgrep_Run_noFiles(t *testing.T) {
	t.Parallel()
	s := NewSemgrep(afero.NewMemMapFs(), &fakeRunner{}, time.Minute)
	_, status := s.Run(context.Background(), testLogE(), &Input{
		Root:      "/repo",
		Selection: selector.Selection{},
	})
	if status != "skipped: no source files" {
		t.Fatalf("wanted a skip, got %q", status)
	}
}

func TestSemgrep_executable(t *testing.T) {
	t.Parallel()
	data := []struct {
		name  string
		venv  string
		files []string
		exp   string
	}{
		{
			name:  "active virtualenv wins",
			venv:  "/venvs/proj",
			files: []string{"/venvs/proj/bin/semgrep", "/repo/.venv/bin/semgrep"},
			exp:   "/venvs/proj/bin/semgrep",
		},
		{
			name:  "project venv next",
			files: []string{"/repo/.venv/bin/semgrep"},
			exp:   "/repo/.venv/bin/semgrep",
		},
		{
			name: "search path fallback",
			exp:  "semgrep",
		},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			fs := afero.NewMemMapFs()
			for _, f := range d.files {
				if err := afero.WriteFile(fs, f, []byte("#!/bin/sh"), 0o755); err != nil {
					t.Fatal(err)
				}
			}
			s := NewSemgrep(fs, &fakeRunner{}, time.Minute)
			s.getenv = func(string) string { return d.venv }
			if exe := s.executable("/repo"); exe != d.exp {
				t.Fatalf("wanted %q, got %q", d.exp, exe)
			}
		})
	}
}
