package procrun

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
)

func TestRunner_Run_persistsOutput(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	r := New(fs, "logs/scans", "42", DefaultRetryPolicy())
	logE := logrus.NewEntry(logrus.New())
	result, err := r.Run(context.Background(), logE, Invocation{
		Tool:    finding.ToolBandit,
		Args:    []string{"sh", "-c", "echo out; echo err >&2"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("wanted exit code 0, got %d", result.ExitCode)
	}
	if strings.TrimSpace(string(result.Stdout)) != "out" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
	stdout, err := afero.ReadFile(fs, "logs/scans/42/bandit_stdout.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(stdout), "Return Code: 0") || !strings.Contains(string(stdout), "out") {
		t.Fatalf("unexpected stdout log: %q", stdout)
	}
	stderr, err := afero.ReadFile(fs, "logs/scans/42/bandit_stderr.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(stderr), "err") {
		t.Fatalf("unexpected stderr log: %q", stderr)
	}
}

func TestRunner_Run_nonZeroExitIsNotAnError(t *testing.T) {
	t.Parallel()
	r := New(afero.NewMemMapFs(), "logs/scans", "42", DefaultRetryPolicy())
	result, err := r.Run(context.Background(), logrus.NewEntry(logrus.New()), Invocation{
		Tool:    finding.ToolSemgrep,
		Args:    []string{"sh", "-c", "echo findings; exit 1"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 1 {
		t.Fatalf("wanted exit code 1, got %d", result.ExitCode)
	}
	if strings.TrimSpace(string(result.Stdout)) != "findings" {
		t.Fatalf("unexpected stdout: %q", result.Stdout)
	}
}

func TestRunner_Run_timeout(t *testing.T) {
	t.Parallel()
	r := New(afero.NewMemMapFs(), "logs/scans", "42", DefaultRetryPolicy())
	_, err := r.Run(context.Background(), logrus.NewEntry(logrus.New()), Invocation{
		Tool:    finding.ToolTrufflehog,
		Args:    []string{"sleep", "5"},
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("wanted ErrTimeout, got %v", err)
	}
}

func TestRunner_Run_missingExecutable(t *testing.T) {
	t.Parallel()
	r := New(afero.NewMemMapFs(), "logs/scans", "42", DefaultRetryPolicy())
	if _, err := r.Run(context.Background(), logrus.NewEntry(logrus.New()), Invocation{
		Tool:    finding.ToolSafety,
		Args:    []string{"asura-no-such-binary"},
		Timeout: 10 * time.Second,
	}); err == nil {
		t.Fatal("an error must be returned for a missing executable")
	}
}

func TestRunner_SaveRaw(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	r := New(fs, "logs/scans", "7", DefaultRetryPolicy())
	if err := r.SaveRaw(finding.ToolSemgrep, "unparseable", []byte("not json")); err != nil {
		t.Fatal(err)
	}
	data, err := afero.ReadFile(fs, "logs/scans/7/semgrep_unparseable.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "not json") {
		t.Fatalf("unexpected raw log: %q", data)
	}
}
