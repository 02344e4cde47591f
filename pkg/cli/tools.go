package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/asura-sec/asura/pkg/finding"
	"github.com/asura-sec/asura/pkg/log"
	"github.com/asura-sec/asura/pkg/probe"
)

func (r *Runner) newToolsCommand() *cli.Command {
	return &cli.Command{
		Name:   "tools",
		Usage:  "Show which analysis tools are installed",
		Action: r.toolsAction,
	}
}

func (r *Runner) toolsAction(ctx context.Context, c *cli.Command) error {
	log.SetLevel(c.String("log-level"), r.LogE)
	results := probe.New().ProbeAll(ctx, r.LogE)
	for _, tool := range finding.Tools() {
		result := results[tool]
		mark := color.New(color.FgGreen).Sprint("✓")
		if !result.Available {
			mark = color.New(color.FgRed).Sprint("✗")
		}
		fmt.Fprintf(r.Stdout, "%s %-12s %s\n", mark, tool, result.Detail)
	}
	return nil
}
