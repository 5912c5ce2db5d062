package cmd

import (
	"mfp/internal/sandboxrunner"

	"github.com/spf13/cobra"
)

// newSandboxRunCmd is the sandbox container's entrypoint: it never runs on
// the host, only inside the locked-down Docker container the executor
// starts. It reads the bind-mounted snippet and compiled library root from
// MFP_CODE_PATH/MFP_LIB_ROOT and prints one JSON result line to stdout.
func newSandboxRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "__sandbox-run",
		Short:  "Internal: run a bind-mounted snippet through the yaegi interpreter",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			sandboxrunner.Main()
		},
	}
}
