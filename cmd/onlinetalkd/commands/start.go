package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/onlinetalk/onlinetalk/internal/logger"
	"github.com/onlinetalk/onlinetalk/pkg/api"
	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
	"github.com/onlinetalk/onlinetalk/pkg/config"
	"github.com/onlinetalk/onlinetalk/pkg/metrics"
	metricsprom "github.com/onlinetalk/onlinetalk/pkg/metrics/prometheus"
	"github.com/onlinetalk/onlinetalk/pkg/server"
	"github.com/onlinetalk/onlinetalk/pkg/transfer"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the OnlineTalk server",
	Long: `Start the OnlineTalk chat server with the specified configuration.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/onlinetalk/config.yaml.

Examples:
  # Start with default config location
  onlinetalkd start

  # Start with custom config file
  onlinetalkd start --config /etc/onlinetalk/config.yaml

  # Start with environment variable overrides
  ONLINETALK_LOG_LEVEL=debug onlinetalkd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	// Create cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Println("OnlineTalk - realtime chat server")
	logger.Info("configuration loaded", "source", getConfigSource(GetConfigFile()))
	logger.Info("log level", "level", cfg.LogLevel, "format", cfg.LogFormat)

	// Metrics first, so the registry exists before anything records into it.
	var chatMetrics metrics.ChatMetrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		chatMetrics = metricsprom.NewChatMetrics()
		metricsServer, err = metrics.NewServer(cfg.Metrics.Port)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		logger.Info("metrics enabled", "port", cfg.Metrics.Port)
	} else {
		logger.Info("metrics collection disabled")
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize chat store: %w", err)
	}
	logger.Info("chat store initialized", "type", cfg.Database.Type)

	transfers, err := transfer.NewManager(st, cfg.DataDir, cfg.FileChunkSize)
	if err != nil {
		return fmt.Errorf("failed to initialize file transfer storage: %w", err)
	}
	logger.Info("file storage initialized", "data_dir", cfg.DataDir, "chunk_size", cfg.FileChunkSize)

	chatSrv := server.New(cfg, st, transfers, chatMetrics)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- chatSrv.Serve(ctx)
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	if cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, chatSrv)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				logger.Error("status server error", "error", err)
			}
		}()
		logger.Info("status API enabled", "port", cfg.API.Port)
	} else {
		logger.Info("status API disabled")
	}

	// Wait for interrupt signal or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer stopCancel()
		if err := chatSrv.Stop(stopCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", "error", err)
			return err
		}
		logger.Info("Server stopped gracefully")

	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("Server error", "error", err)
			return err
		}
		logger.Info("Server stopped")
	}

	return nil
}
