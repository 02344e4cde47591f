package scan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/asura-sec/asura/pkg/adapter"
	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/probe"
	"github.com/asura-sec/asura/pkg/selector"
)

// Run states. The coordinator moves through them linearly; no state is ever
// re-entered.
type state string

const (
	stateInitializing   state = "INITIALIZING"
	stateDetectingTools state = "DETECTING_TOOLS"
	stateRunning        state = "RUNNING"
	stateAggregating    state = "AGGREGATING"
	stateDone           state = "DONE"
)

// ErrConsumed is returned when Run is called on a controller that has
// already run. A controller owns exactly one scan.
var ErrConsumed = errors.New("scan controller has already run")

const statusNotInstalled = "not installed"

// Run executes the whole scan and returns its result. Per-tool problems are
// encoded in the result's tool statuses and never returned as errors; the
// errors Run does return are calling the consumed controller twice and a
// failed file walk.
func (c *Controller) Run(ctx context.Context, logE *logrus.Entry) (*finding.ScanResult, error) {
	if !c.consumed.CompareAndSwap(false, true) {
		return nil, ErrConsumed
	}
	c.transition(stateInitializing)
	c.progress.append("Initializing scan for: " + filepath.Base(c.param.Root))

	sel := selector.New(c.fs, &selector.Param{
		MaxFiles:            c.cfg.MaxFiles,
		MaxFilesPerCategory: c.cfg.MaxFilesPerCategory,
		Progress:            c.progress.append,
	})
	selection, err := sel.Select(logE, c.param.Root)
	if err != nil {
		return nil, fmt.Errorf("select files: %w", err)
	}

	c.transition(stateDetectingTools)
	available, statuses := c.partition(c.prober.ProbeAll(ctx, logE))
	if len(available) == 0 {
		// Terminal short-circuit: nothing can run, so the run is failed with
		// an empty finding set. No badge is written for a scan that never ran.
		c.progress.append("No analysis tools are installed")
		result := c.aggregate(nil, statuses, nil)
		c.transition(stateDone)
		return result, nil
	}

	c.transition(stateRunning)
	outcomes := c.runPool(ctx, logE, available, selection)
	for tool, outcome := range outcomes {
		statuses[tool] = outcome.Status
	}

	c.transition(stateAggregating)
	result := c.aggregate(available, statuses, outcomes)
	c.writeBadge(logE, result)

	c.transition(stateDone)
	c.progress.append(fmt.Sprintf("Scan finished: %s, %d findings, score %.0f (%s)",
		result.OverallStatus, len(result.Findings), result.HealthScore, result.Grade))
	return result, nil
}

func (c *Controller) transition(s state) {
	c.progress.append("[" + string(s) + "]")
}

// partition splits the adapters by probe outcome. Unavailable tools are
// recorded as skipped up front so the result covers every known tool.
func (c *Controller) partition(probes map[finding.Tool]probe.Result) ([]adapter.Adapter, map[finding.Tool]string) {
	statuses := make(map[finding.Tool]string, len(c.adapters))
	available := []adapter.Adapter{}
	for _, a := range c.adapters {
		tool := a.Tool()
		result := probes[tool]
		if result.Available {
			available = append(available, a)
			c.progress.append("  " + string(tool) + " " + result.Detail)
			continue
		}
		statuses[tool] = finding.Skipped(statusNotInstalled)
		c.progress.append("  " + string(tool) + ": " + result.Detail)
	}
	return available, statuses
}

// runPool dispatches the runnable adapters to a bounded worker pool and
// collects their outcomes as they complete. Progress lines reflect real
// completion order; reproducible ordering is restored during aggregation.
func (c *Controller) runPool(ctx context.Context, logE *logrus.Entry, adapters []adapter.Adapter, selection selector.Selection) map[finding.Tool]*finding.Outcome {
	width := c.cfg.PoolWidth
	if len(adapters) < width {
		width = len(adapters)
	}
	in := &adapter.Input{Root: c.param.Root, Selection: selection}

	jobs := make(chan adapter.Adapter)
	results := make(chan *finding.Outcome)
	var wg sync.WaitGroup
	for range width {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range jobs {
				results <- c.runOne(ctx, logE, a, in)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, a := range adapters {
			jobs <- a
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	outcomes := make(map[finding.Tool]*finding.Outcome, len(adapters))
	for outcome := range results {
		outcomes[outcome.Tool] = outcome
		line := string(outcome.Tool) + ": " + outcome.Status
		if outcome.Status == finding.StatusSuccess {
			line += " (" + strconv.Itoa(len(outcome.Findings)) + " findings)"
		}
		c.progress.append(line)
	}
	return outcomes
}

// runOne invokes one adapter. A panic inside an adapter is converted into a
// failed status for that tool; one tool's defect must never abort the run.
func (c *Controller) runOne(ctx context.Context, logE *logrus.Entry, a adapter.Adapter, in *adapter.Input) (outcome *finding.Outcome) {
	tool := a.Tool()
	logE = logE.WithField("tool", tool)
	defer func() {
		if r := recover(); r != nil {
			logE.WithField("panic", r).Error("tool adapter panicked")
			outcome = &finding.Outcome{Tool: tool, Status: finding.Failed(fmt.Sprint(r))}
		}
	}()
	c.progress.append("Running " + string(tool) + "...")
	findings, status := a.Run(ctx, logE, in)
	if finding.IsFailed(status) {
		logE.WithField("status", status).Warn("tool did not succeed")
	}
	return &finding.Outcome{Tool: tool, Status: status, Findings: findings}
}
