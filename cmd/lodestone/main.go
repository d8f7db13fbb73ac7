// Package main provides the CLI entry point for the Lodestone agent
// gateway.
//
// Start the server:
//
//	lodestone serve --config lodestone.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/lodestone-ai/lodestone/internal/agent"
	"github.com/lodestone-ai/lodestone/internal/agent/tools"
	"github.com/lodestone-ai/lodestone/internal/config"
	"github.com/lodestone-ai/lodestone/internal/gateway"
	"github.com/lodestone-ai/lodestone/internal/mcp"
	"github.com/lodestone-ai/lodestone/internal/observability"
	"github.com/lodestone-ai/lodestone/internal/providers/gemini"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "lodestone",
		Short:        "Lodestone - agent conversation gateway",
		Long:         "Lodestone runs tool-using model conversations behind a websocket gateway.",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	rootCmd.AddCommand(buildVersionCmd())
	return rootCmd
}

func buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lodestone %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func buildServeCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Lodestone gateway server",
		Long: `Start the gateway server.

The server loads configuration, registers built-in and discovered
tools, connects configured MCP servers, and accepts websocket
sessions until SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")
	return cmd
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCfg := observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}
	if debug {
		logCfg.Level = "debug"
	}
	logger := observability.NewLogger(logCfg)

	generator, err := gemini.New(ctx, gemini.Config{APIKey: cfg.Model.APIKey})
	if err != nil {
		return err
	}

	registry, err := buildRegistry(ctx, cfg, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	server := gateway.NewServer(cfg, generator, registry, reg, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildRegistry assembles the shared tool registry: built-in tools,
// command-discovered tools, and bridged MCP tools.
func buildRegistry(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*agent.Registry, error) {
	registry := agent.NewRegistry(logger)
	registry.Register(tools.NewListDirectoryTool(cfg.Storage.ProjectDir))
	registry.Register(tools.NewReadFileTool(cfg.Storage.ProjectDir))

	if cfg.Tools.DiscoveryCommand != "" {
		if err := registry.DiscoverFromCommand(ctx, cfg.Tools.DiscoveryCommand, cfg.Tools.CallCommand); err != nil {
			return nil, fmt.Errorf("tool discovery: %w", err)
		}
	}

	for _, server := range cfg.Tools.MCPServers {
		client := mcp.NewClient(server)
		if err := mcp.DiscoverTools(ctx, client, server, registry, logger); err != nil {
			// A down MCP server must not block startup.
			logger.Warn(ctx, "mcp discovery failed", "server", server.Name, "error", err)
		}
	}

	logger.Info(ctx, "tool registry ready", "tools", registry.Names())
	return registry, nil
}
