// Command nexuscore is the personal AI assistant platform's core service:
// it wires the task Scheduler (§4.2), Triggers (§4.3), Tool
// Registry/Dispatcher (§4.4), LLM Output Parser (§4.5), Conversation Turn
// Driver (§4.6), and Retrieval Orchestrator (§4.7) together behind one
// HTTP surface, grounded on the teacher's cmd/nexus entrypoint shape
// (cobra root command that serves + version subcommand, config-path flag, signal-driven
// graceful shutdown) but trimmed to this domain's much smaller surface —
// no channel adapters, no plugin marketplace, no CLI subcommand sprawl.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nexuscore/assistant-core/internal/config"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		envFile    string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "nexuscore",
		Short: "Run the personal AI assistant platform core service",
		Long: `nexuscore starts the task engine, trigger scheduler, tool dispatcher,
and conversation turn driver as one process, serving conversation turns
over HTTP and health/metrics endpoints for operators.

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, envFile, debug)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Optional .env file to load before config expansion")
	cmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

func runServe(ctx context.Context, configPath, envFile string, debug bool) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if debug {
		cfg.Observability.LogLevel = "debug"
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}
	defer app.Close(context.Background())

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start app: %w", err)
	}

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutdown signal received, draining")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	app.Stop(shutdownCtx)
	return nil
}
