package plan

import (
	"github.com/meridian-works/meridian/pkg/plan"
	"github.com/spf13/cobra"
)

var lintCmd = &cobra.Command{
	Use:   "lint [paths...]",
	Short: "Validate plan manifests without contacting a server",
	Long: "Validate plan manifests without contacting a server. Paths may be files, " +
		"directories or doublestar globs such as plans/**/*.yaml.",
	RunE: func(cmd *cobra.Command, args []string) error {
		defs, err := plan.Collect(args)
		if err != nil {
			return err
		}
		if len(defs) == 0 {
			return writeCmdOut(cmd, "No plans found.\n")
		}

		tasks := 0
		for _, def := range defs {
			tasks += len(def.Tasks)
		}
		return writeCmdOut(cmd, "Validated %d plan(s) with %d task(s)\n", len(defs), tasks)
	},
}
