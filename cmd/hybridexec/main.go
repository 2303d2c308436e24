// Command hybridexec dispatches build commands to a local runner, a remote
// worker, or both.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/deixis/hybridexec"
)

// exitError carries the exit code of a command that ran but did not succeed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintf(os.Stderr, "hybridexec: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hybridexec",
		Short: "Run build commands locally, remotely, or racing both",
		Long: `hybridexec runs a command on the local host, on a remote worker, or on both
at once, and keeps exactly one result.

Policy is read from .hybridexec.yaml or .hybridexec.toml at the repository root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newExecCmd(),
		newWorkerCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), hybridexec.Version)
		},
	}
}
