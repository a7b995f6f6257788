package schedule

import (
	"fmt"
	"strings"

	"github.com/meridian-works/meridian/cmd/remote"
	"github.com/spf13/cobra"
)

var (
	pathProject uint
	impactTask  uint
	impactDelay int
)

// Cmd groups the schedule analysis commands.
var Cmd = &cobra.Command{
	Use:   "schedule",
	Short: "Analyse project schedules on a running server",
}

var criticalPathCmd = &cobra.Command{
	Use:   "critical-path",
	Short: "Print the critical path of a project",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote.Client(cmd)
		if err != nil {
			return err
		}

		res, err := c.CriticalPath(cmd.Context(), pathProject)
		if err != nil {
			return err
		}

		_, err = fmt.Fprintf(cmd.OutOrStdout(), "project %d: %.2fh\npath: %s\n",
			res.ProjectID, res.DurationHours, joinIDs(res.PathTaskIDs))
		return err
	},
}

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Print how delaying a task moves its project's critical path",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := remote.Client(cmd)
		if err != nil {
			return err
		}

		res, err := c.Impact(cmd.Context(), impactTask, impactDelay)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if _, err := fmt.Fprintf(out, "duration: %.2fh -> %.2fh (+%.2fh)\n",
			res.OriginalDurationHours, res.NewDurationHours, res.ShiftHours); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "path: %s -> %s\n", joinIDs(res.OriginalPath), joinIDs(res.NewPath))
		return err
	},
}

func init() {
	remote.AddFlags(Cmd)

	criticalPathCmd.Flags().UintVar(&pathProject, "project", 0, "Project ID")
	_ = criticalPathCmd.MarkFlagRequired("project")

	impactCmd.Flags().UintVar(&impactTask, "task", 0, "Task ID")
	impactCmd.Flags().IntVar(&impactDelay, "delay-days", 1, "Delay in whole days")
	_ = impactCmd.MarkFlagRequired("task")

	Cmd.AddCommand(criticalPathCmd, impactCmd)
}

func joinIDs(ids []uint) string {
	if len(ids) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, " -> ")
}
