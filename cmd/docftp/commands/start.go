package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/config"
	"github.com/marmos91/docftp/pkg/server"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DocFTP server",
	Long: `Start the DocFTP server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/docftp/config.yaml. Without a file the
built-in defaults are used.

Examples:
  # Start with the default config location
  docftp start

  # Start with custom config file
  docftp start --config /etc/docftp/config.yaml

  # Start with environment variable overrides
  DOCFTP_LOGGING_LEVEL=DEBUG DOCFTP_ADAPTERS_FTP_PORT=2221 docftp start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()
	if configFile != "" {
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			return fmt.Errorf("configuration file not found: %s (create it with: docftp init --config %s)", configFile, configFile)
		}
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Fprintln(cmd.OutOrStdout(), "DocFTP - FTP gateway for document databases")
	logger.Info("Log level: %s (format: %s)", cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", getConfigSource(configFile))

	// metrics must exist before the backend is wrapped
	metricsResult := config.InitializeMetrics(cfg)

	b, err := config.CreateBackend(ctx, &cfg.Backend)
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}
	logger.Info("Backend initialized: %s", cfg.Backend.Type)

	srv := server.New(b, cfg.Server.ShutdownTimeout)

	if metricsResult.Server != nil {
		logger.Info("Metrics enabled on port %d", cfg.Server.Metrics.Port)
		srv.SetMetricsServer(metricsResult.Server)
		srv.SetBackendMetrics(metricsResult.BackendMetrics)
	} else {
		logger.Info("Metrics collection disabled")
	}

	adapters, err := config.CreateAdapters(cfg, metricsResult.FTPMetrics)
	if err != nil {
		_ = b.Close()
		return fmt.Errorf("failed to create adapters: %w", err)
	}

	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = b.Close()
			return fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		if err := <-serverDone; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("Server stopped")
	}

	return nil
}

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.ConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}
