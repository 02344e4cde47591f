package adapter

import (
	"context"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/procrun"
	"github.com/asura-sec/asura/pkg/selector"
)

// fakeRunner replays a canned process result and records invocations and
// persisted raw output.
type fakeRunner struct {
	result *procrun.Result
	err    error

	invocations []procrun.Invocation
	saved       map[string][]byte
}

func (r *fakeRunner) Run(_ context.Context, _ *logrus.Entry, inv procrun.Invocation) (*procrun.Result, error) {
	r.invocations = append(r.invocations, inv)
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func (r *fakeRunner) SaveRaw(tool finding.Tool, suffix string, data []byte) error {
	if r.saved == nil {
		r.saved = map[string][]byte{}
	}
	r.saved[string(tool)+"_"+suffix] = data
	return nil
}

func testLogE() *logrus.Entry {
	return logrus.NewEntry(logrus.New())
}

func pySelection(files ...string) selector.Selection {
	return selector.Selection{
		selector.CategoryPython:     files,
		selector.CategoryJavaScript: {},
		selector.CategoryOther:      {},
	}
}

func TestInvoke_sharedFailureClassification(t *testing.T) {
	t.Parallel()
	data := []struct {
		name      string
		result    *procrun.Result
		err       error
		expStatus string
	}{
		{
			name:      "timeout is terminal",
			err:       procrun.ErrTimeout,
			expStatus: "failed: timeout",
		},
		{
			name:      "empty stdout with non-zero exit carries stderr preview",
			result:    &procrun.Result{ExitCode: 2, Stderr: []byte("boom: " + strings.Repeat("x", 600))},
			expStatus: "failed: empty output with exit code 2: boom: " + strings.Repeat("x", 494) + "...",
		},
		{
			name:      "oversized output is not parsed",
			result:    &procrun.Result{ExitCode: 0, Stdout: make([]byte, maxOutputSize+1)},
			expStatus: "failed: output too large",
		},
	}
	for _, d := range data {
		t.Run(d.name, func(t *testing.T) {
			t.Parallel()
			runner := &fakeRunner{result: d.result, err: d.err}
			_, status, ok := invoke(context.Background(), testLogE(), runner, procrun.Invocation{
				Tool: finding.ToolBandit,
				Args: []string{"bandit"},
			})
			if ok {
				t.Fatal("invoke must report a terminal status")
			}
			if status != d.expStatus {
				t.Fatalf("wanted %q, got %q", d.expStatus, status)
			}
		})
	}
}

func TestInvoke_oversizedOutputIsPersisted(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{result: &procrun.Result{Stdout: make([]byte, maxOutputSize+1)}}
	_, _, ok := invoke(context.Background(), testLogE(), runner, procrun.Invocation{
		Tool: finding.ToolSemgrep,
		Args: []string{"semgrep"},
	})
	if ok {
		t.Fatal("invoke must report a terminal status")
	}
	if _, found := runner.saved["semgrep_too_large"]; !found {
		t.Fatal("a note about the oversized output must be persisted")
	}
}
