package plan

import (
	"fmt"

	"github.com/meridian-works/meridian/cmd/remote"
	"github.com/spf13/cobra"
)

// Cmd is the parent command for plan manifests.
var Cmd = &cobra.Command{
	Use:   "plan",
	Short: "Validate and apply project plan manifests",
}

func init() {
	remote.AddFlags(Cmd)
	Cmd.AddCommand(lintCmd, applyCmd)
}

func writeCmdOut(cmd *cobra.Command, format string, args ...any) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), format, args...); err != nil {
		cmd.PrintErrf("write output: %v\n", err)
		return err
	}
	return nil
}
