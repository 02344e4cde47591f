package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

func (r *Runner) newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Print the version and build metadata",
		Action: r.showVersion,
	}
}

func (r *Runner) showVersion(_ context.Context, c *cli.Command) error {
	cli.ShowVersion(c)
	return nil
}
