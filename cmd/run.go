package cmd

import (
	"mfp/internal/compiler"
	"mfp/internal/config"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var sourcesPath string
	var transport string
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile configured swagger sources, then serve mfp's MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := config.LoadSources(sourcesPath)
			if err != nil {
				return err
			}

			cfg := config.LoadFromEnv()

			if _, err := compiler.Compile(sources, compiler.Options{OutputDir: cfg.CompiledOutputDir}); err != nil {
				return err
			}

			return runServe(cmd, transport, host, port, sourcesPath)
		},
	}

	cmd.Flags().StringVar(&sourcesPath, "sources", "mfp_sources.yaml", "path to the swagger sources YAML file")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio or http")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "host to bind when --transport=http")
	cmd.Flags().IntVar(&port, "port", 8585, "port to bind when --transport=http")

	return cmd
}
