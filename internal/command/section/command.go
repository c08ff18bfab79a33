package section

import (
	"github.com/urfave/cli/v2"
)

func Command() *cli.Command {
	return &cli.Command{
		Name:  "section",
		Usage: "Inspect and maintain the entries of a section cache",
		Subcommands: []*cli.Command{
			listCommand(),
			showCommand(),
			removeCommand(),
			reconcileCommand(),
			refreshCommand(),
		},
	}
}
