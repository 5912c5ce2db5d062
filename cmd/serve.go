package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mfp/internal/cache"
	"mfp/internal/config"
	"mfp/internal/containerizer"
	"mfp/internal/executor"
	"mfp/internal/mcpserver"
	"mfp/internal/registry"
	"mfp/internal/vault"
	"mfp/pkg/logging"

	"github.com/spf13/cobra"
)

const serveSubsystem = "Serve"

func newServeCmd() *cobra.Command {
	var transport string
	var host string
	var port int
	var sourcesPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the compiled server registry and expose mfp's MCP tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, transport, host, port, sourcesPath)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "MCP transport: stdio or http")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "host to bind when --transport=http")
	cmd.Flags().IntVar(&port, "port", 8585, "port to bind when --transport=http")
	cmd.Flags().StringVar(&sourcesPath, "sources", "mfp_sources.yaml", "path to the swagger sources YAML file, for auth_header resolution")

	return cmd
}

func runServe(cmd *cobra.Command, transport, host string, port int, sourcesPath string) error {
	cfg := config.LoadFromEnv()
	logging.Init(logging.ParseLevel(cfg.LogLevel), cmd.ErrOrStderr())

	if sources, err := config.LoadSources(sourcesPath); err != nil {
		var cfgErr *config.Error
		if errors.As(err, &cfgErr) && os.IsNotExist(cfgErr.Unwrap()) {
			logging.Warn(serveSubsystem, "no sources file at %s; auth_header resolution disabled for this run", sourcesPath)
		} else {
			return err
		}
	} else {
		cfg.Sources = sources
	}

	reg, err := registry.Load(cfg.CompiledOutputDir)
	if err != nil {
		return err
	}

	c, err := cache.Open(cfg.CacheDBPath, cfg.CacheMaxEntries)
	if err != nil {
		return err
	}
	defer c.Close()

	runtime, err := containerizer.NewContainerRuntime("docker")
	if err != nil {
		return config.NewError("initializing container runtime", err)
	}

	knownServers := make(map[string]bool)
	for _, manifest := range reg.ListServers() {
		knownServers[manifest.ServerName] = true
	}

	exec := &executor.Executor{
		Runtime:         runtime,
		Cache:           c,
		Cfg:             cfg,
		KnownServers:    knownServers,
		Lookup:          vault.OSLookup,
		CompiledLibRoot: cfg.CompiledOutputDir,
		WorkDir:         executionWorkDir(),
	}

	mcpSrv := mcpserver.New(reg, exec, c)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf("%s:%d", host, port)
	return mcpSrv.Serve(ctx, transport, addr)
}

func executionWorkDir() string {
	return "mfp-exec"
}
