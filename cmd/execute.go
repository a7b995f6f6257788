package cmd

import (
	"github.com/meridian-works/meridian/cmd/console"
	"github.com/meridian-works/meridian/cmd/plan"
	"github.com/meridian-works/meridian/cmd/schedule"
	"github.com/meridian-works/meridian/cmd/start"
	"github.com/meridian-works/meridian/cmd/token"
	"github.com/spf13/cobra"
)

var cmds = []*cobra.Command{
	start.Cmd,
	plan.Cmd,
	schedule.Cmd,
	token.Cmd,
	console.Cmd,
}

// Execute builds the command tree and executes commands.
func Execute() error {
	command := &cobra.Command{
		Use:          "meridian",
		Short:        "Project scheduling, deadlines and resource planning",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Usage()
		},
	}

	for _, c := range cmds {
		command.AddCommand(c)
	}

	return command.Execute()
}
