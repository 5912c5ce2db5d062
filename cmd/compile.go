package cmd

import (
	"fmt"

	"mfp/internal/compiler"
	"mfp/internal/config"

	"github.com/spf13/cobra"
)

func newCompileCmd() *cobra.Command {
	var sourcesPath string
	var dryRun bool
	var llmEnhance bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile configured swagger sources into callable Go function libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := config.LoadSources(sourcesPath)
			if err != nil {
				return err
			}

			cfg := config.LoadFromEnv()

			if llmEnhance {
				// Stateless docstring-enhancement pass; not implemented, so the
				// flag only prints this warning. The unchanged-source check
				// compares the raw swagger document's hash, not generated source.
				cmd.PrintErrln("warning: --llm-enhance is not yet wired to an LLM backend; compiling without enhancement")
			}

			results, err := compiler.Compile(sources, compiler.Options{
				OutputDir: cfg.CompiledOutputDir,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			for _, r := range results {
				if r.Skipped {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: unchanged, skipped\n", r.Server)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: compiled (%d endpoints)\n", r.Server, len(r.Spec.Endpoints))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sourcesPath, "sources", "mfp_sources.yaml", "path to the swagger sources YAML file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse only; perform no writes")
	cmd.Flags().BoolVar(&llmEnhance, "llm-enhance", false, "rewrite docstrings with a stateless LLM pass before writing")

	return cmd
}
