// Command commentctl operates the comment service: schema migrations, legacy
// data import and export, and a terminal view of a live comment section.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "commentctl",
		Short:         "Operate the blog comment service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newMigrateCmd(),
		newImportCmd(),
		newExportCmd(),
		newWatchCmd(),
		newPostCmd(),
	)
	return root
}
