package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"

	"github.com/asura-sec/asura/pkg/adapter"
	"github.com/asura-sec/asura/pkg/config"
	"github.com/asura-sec/asura/pkg/controller/scan"
	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/log"
	"github.com/asura-sec/asura/pkg/pathcheck"
	"github.com/asura-sec/asura/pkg/probe"
	"github.com/asura-sec/asura/pkg/procrun"
	"github.com/asura-sec/asura/pkg/sarif"
)

func (r *Runner) newScanCommand() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Scan a project directory for security issues",
		ArgsUsage: "[project root]",
		Description: `Scan a project directory with every installed analysis tool.

$ asura scan
$ asura scan /path/to/project
$ asura scan --format sarif /path/to/project > results.sarif
`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "output format (text, json, sarif)",
				Value:   "text",
			},
		},
		Action: r.scanAction,
	}
}

func (r *Runner) scanAction(ctx context.Context, c *cli.Command) error {
	log.SetLevel(c.String("log-level"), r.LogE)
	format := c.String("format")
	switch format {
	case "text", "json", "sarif":
	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	arg := c.Args().First()
	if arg == "" {
		arg = "."
	}
	root, err := pathcheck.Validate(arg)
	if err != nil {
		return fmt.Errorf("validate the project root: %w", err)
	}

	fs := afero.NewOsFs()
	cfg := config.Default()
	cfgPath, err := config.NewFinder(fs).Find(c.String("config"), root)
	if err != nil {
		return fmt.Errorf("find a configuration file: %w", err)
	}
	if err := config.NewReader(fs).Read(cfg, cfgPath); err != nil {
		return fmt.Errorf("read a configuration file: %w", err)
	}

	runID := time.Now().Format("20060102-150405")
	runner := procrun.New(fs, cfg.LogsDir, runID, procrun.DefaultRetryPolicy())

	var callback func(string)
	if format == "text" {
		callback = r.newProgressPrinter()
	}
	ctrl := scan.New(fs, probe.New(), newAdapters(fs, runner, cfg), cfg, &scan.Param{
		Root:             root,
		LogsPath:         runner.LogsDir(),
		ProgressCallback: callback,
	})
	result, err := ctrl.Run(ctx, r.LogE)
	if err != nil {
		return fmt.Errorf("run the scan: %w", err)
	}

	switch format {
	case "json":
		return r.outputJSON(result)
	case "sarif":
		return r.outputSARIF(result)
	}
	r.outputText(result)
	return nil
}

func newAdapters(fs afero.Fs, runner *procrun.Runner, cfg *config.Config) []adapter.Adapter {
	npm := "npm"
	if runtime.GOOS == "windows" {
		npm = "npm.cmd"
	}
	return []adapter.Adapter{
		adapter.NewBandit(runner, cfg.Timeout(finding.ToolBandit)),
		adapter.NewSafety(fs, runner, cfg.Timeout(finding.ToolSafety)),
		adapter.NewNpmAudit(fs, runner, npm, cfg.Timeout(finding.ToolNpmAudit)),
		adapter.NewSemgrep(fs, runner, cfg.Timeout(finding.ToolSemgrep)),
		adapter.NewTrufflehog(runner, cfg.Timeout(finding.ToolTrufflehog)),
	}
}

// newProgressPrinter streams progress lines to stderr as they appear. The
// callback always receives the whole log, so only the unseen tail is printed.
func (r *Runner) newProgressPrinter() func(string) {
	var mu sync.Mutex
	printed := 0
	return func(text string) {
		mu.Lock()
		defer mu.Unlock()
		if len(text) <= printed {
			return
		}
		tail := strings.TrimPrefix(text[printed:], "\n")
		fmt.Fprintln(r.Stderr, tail)
		printed = len(text)
	}
}

func (r *Runner) outputJSON(result *finding.ScanResult) error {
	encoder := json.NewEncoder(r.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		return fmt.Errorf("encode the result as JSON: %w", err)
	}
	return nil
}

func (r *Runner) outputSARIF(result *finding.ScanResult) error {
	encoder := json.NewEncoder(r.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(sarif.NewLog(result, r.LDFlags.Version)); err != nil {
		return fmt.Errorf("encode the result as SARIF: %w", err)
	}
	return nil
}
