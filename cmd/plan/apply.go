package plan

import (
	"os"

	"github.com/meridian-works/meridian/cmd/remote"
	"github.com/meridian-works/meridian/pkg/plan"
	"github.com/spf13/cobra"
)

var applyDryRun bool

var applyCmd = &cobra.Command{
	Use:   "apply [paths...]",
	Short: "Apply plan manifests via the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := plan.Files(args)
		if err != nil {
			return err
		}

		// validate everything locally before the first upload
		for _, f := range files {
			if _, err := plan.ParseFile(f); err != nil {
				return err
			}
		}

		c, err := remote.Client(cmd)
		if err != nil {
			return err
		}

		applied := 0
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			format, _ := plan.FormatOf(f)

			resp, err := c.ApplyPlan(cmd.Context(), data, format, applyDryRun)
			if err != nil {
				return err
			}

			for _, res := range resp.Results {
				if err := writeCmdOut(cmd, "%s\t%s\t%d task(s)\n", res.Project.Code, res.Project.Name, len(res.TaskIDs)); err != nil {
					return err
				}
			}
			applied += resp.Plans
		}

		if applyDryRun {
			return writeCmdOut(cmd, "Checked %d plan(s); nothing was applied\n", applied)
		}
		return writeCmdOut(cmd, "Applied %d plan(s)\n", applied)
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Validate on the server without creating anything")
}
