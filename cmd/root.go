package cmd

import (
	"errors"
	"os"

	"mfp/internal/compiler"
	"mfp/internal/config"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands, per mfp's CLI contract: 0 success, 1 compile
// failure, 2 configuration error.
const (
	ExitCodeSuccess       = 0
	ExitCodeCompileFailed = 1
	ExitCodeConfigError   = 2
)

// rootCmd is the entry point when mfp is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "mfp",
	Short: "Model Function Protocol server",
	Long: `mfp compiles OpenAPI/Swagger documents into callable Go function
libraries, and exposes them to an LLM through four MCP tools: list_servers,
get_function, execute_code, get_cached_code. Submitted code runs in a
resource-capped sandbox container before its result is cached.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mfp version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps an error to the CLI's documented exit code.
func getExitCode(err error) int {
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		return ExitCodeConfigError
	}

	var compileErr *compiler.Error
	if errors.As(err, &compileErr) {
		return ExitCodeCompileFailed
	}

	// astguard.SecurityViolation is never reachable here: it only occurs
	// inside executor.Run, called from MCP tool handlers, not from any
	// cobra.Command.RunE that returns an error to rootCmd.Execute().
	return ExitCodeCompileFailed
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSandboxRunCmd())
}
