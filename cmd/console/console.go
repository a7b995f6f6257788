package console

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/meridian-works/meridian/cmd/console/app"
	"github.com/meridian-works/meridian/cmd/remote"
	"github.com/spf13/cobra"
)

const (
	usage   = "console"
	short   = "Open a console session to inspect meridian"
	long    = "This command starts the interactive meridian console: projects, their tasks along the critical path, and recent escalations"
	example = "meridian console --server http://localhost:8080"
)

// Cmd is the Cobra command entrypoint.
var Cmd = &cobra.Command{
	Use:        usage,
	Short:      short,
	Long:       long,
	Aliases:    []string{"c"},
	SuggestFor: []string{"tui", "terminal", "ui", "dashboard"},
	Example:    example,
	RunE:       run,
}

func init() {
	remote.AddFlags(Cmd)
}

func run(cmd *cobra.Command, args []string) error {
	client, err := remote.Client(cmd)
	if err != nil {
		return err
	}

	p := tea.NewProgram(app.New(client), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	_, err = p.Run()
	return err
}
