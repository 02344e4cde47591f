// Package procrun executes external analysis tools as child processes.
// Invocations are argument vectors only, never shell strings. Transient
// OS-level failures are retried with exponential backoff, timeouts are
// surfaced as a distinct terminal failure, and every stream is persisted to
// per-run, per-tool log files for postmortem debugging.
package procrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/finding"
)

// ErrTimeout marks an invocation that exceeded its wall clock budget.
// Timeouts are never retried.
var ErrTimeout = errors.New("process timed out")

// Result captures a finished child process.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Invocation describes one child process run. Args[0] is the executable.
type Invocation struct {
	Tool    finding.Tool
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

type Runner struct {
	fs      afero.Fs
	logsDir string
	policy  RetryPolicy
}

// New creates a Runner writing logs under logsDir/runID.
func New(fs afero.Fs, logsDir, runID string, policy RetryPolicy) *Runner {
	return &Runner{
		fs:      fs,
		logsDir: filepath.Join(logsDir, runID),
		policy:  policy,
	}
}

// LogsDir returns the per-run log directory.
func (r *Runner) LogsDir() string {
	return r.logsDir
}

// Run executes the invocation. A non-zero exit is not an error; the caller
// inspects Result.ExitCode. Errors are reserved for the process not running
// at all (missing executable, exhausted transient failures) and timeouts.
// Captured output is persisted regardless of the outcome.
func (r *Runner) Run(ctx context.Context, logE *logrus.Entry, inv Invocation) (*Result, error) {
	var result *Result
	err := r.policy.Do(ctx, func() error {
		var err error
		result, err = r.runOnce(ctx, inv)
		return err
	})
	if result != nil {
		if logErr := r.saveOutput(inv.Tool, result); logErr != nil {
			logE.WithField("tool", inv.Tool).WithError(logErr).Warn("save tool output logs")
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Runner) runOnce(ctx context.Context, inv Invocation) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, inv.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, inv.Args[0], inv.Args[1:]...) //nolint:gosec
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}
	result := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return result, fmt.Errorf("%s exceeded its %s budget: %w", inv.Args[0], inv.Timeout, ErrTimeout)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// The tool ran and reported a non-zero exit. That is data, not
			// an execution failure.
			return result, nil
		}
		return nil, fmt.Errorf("run %s: %w", inv.Args[0], err)
	}
	return result, nil
}

// saveOutput writes the stdout/stderr pair with exit code and timestamp.
func (r *Runner) saveOutput(tool finding.Tool, result *Result) error {
	for suffix, data := range map[string][]byte{
		"stdout": result.Stdout,
		"stderr": result.Stderr,
	} {
		header := fmt.Sprintf("Return Code: %d\nTimestamp: %s\n%s\n",
			result.ExitCode, time.Now().Format(time.RFC3339), divider)
		body := data
		if len(body) == 0 {
			body = []byte("(empty)")
		}
		if err := r.write(fmt.Sprintf("%s_%s.txt", tool, suffix), append([]byte(header), body...)); err != nil {
			return err
		}
	}
	return nil
}

// SaveRaw persists arbitrary tool output, such as an unparseable response,
// under the per-run log directory.
func (r *Runner) SaveRaw(tool finding.Tool, suffix string, data []byte) error {
	header := fmt.Sprintf("Timestamp: %s\n%s\n", time.Now().Format(time.RFC3339), divider)
	return r.write(fmt.Sprintf("%s_%s.txt", tool, suffix), append([]byte(header), data...))
}

const divider = "================================================================================"

func (r *Runner) write(name string, data []byte) error {
	if err := r.fs.MkdirAll(r.logsDir, 0o755); err != nil {
		return fmt.Errorf("create the log directory: %w", err)
	}
	if err := afero.WriteFile(r.fs, filepath.Join(r.logsDir, name), data, 0o644); err != nil {
		return fmt.Errorf("write a log file: %w", err)
	}
	return nil
}
