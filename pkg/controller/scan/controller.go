// Package scan implements the orchestration engine. The controller drives a
// run through its states, probes which tools are usable, dispatches the
// runnable adapters to a bounded worker pool, and aggregates their outcomes
// into one ScanResult. Per-tool problems are always converted into status
// strings; the only errors Run returns are programmer errors and a broken
// file walk.
package scan

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/asura-sec/asura/pkg/adapter"
	"github.com/asura-sec/asura/pkg/config"
	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/probe"
)

type Controller struct {
	fs       afero.Fs
	prober   Prober
	adapters []adapter.Adapter
	cfg      *config.Config
	param    *Param
	progress *progressLog
	consumed atomic.Bool
}

// Prober detects which tools are usable on the host.
type Prober interface {
	ProbeAll(ctx context.Context, logE *logrus.Entry) map[finding.Tool]probe.Result
}

// Param configures one run. A Controller is single-use: it owns exactly one
// run for the lifetime of its Param.
type Param struct {
	// Root is the pre-validated project root.
	Root string
	// LogsPath is where the process runner persists per-tool output.
	LogsPath string
	// ProgressCallback receives the full progress log after every state
	// transition and per-tool completion. May be nil.
	ProgressCallback func(string)
}

func New(fsys afero.Fs, prober Prober, adapters []adapter.Adapter, cfg *config.Config, param *Param) *Controller {
	return &Controller{
		fs:       fsys,
		prober:   prober,
		adapters: adapters,
		cfg:      cfg,
		param:    param,
		progress: newProgressLog(param.ProgressCallback),
	}
}
