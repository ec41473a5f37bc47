package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/config"
	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/metrics"
	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/server"
	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/syslog"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "syslogd"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)

	logger.Info("Configuration loaded",
		slog.String("listen_address", cfg.Server.ListenAddress),
		slog.Int("tcp_port", cfg.Server.TCPPort),
		slog.Int("udp_port", cfg.Server.UDPPort),
		slog.Int("listen_backlog", cfg.Server.ListenBacklog),
		slog.Float64("read_timeout", cfg.Server.ReadTimeout),
		slog.Int("max_message_size", cfg.Server.MaxMessageSize),
		slog.Bool("monitor_enabled", cfg.Monitor.Enabled),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.New()
	logger.Info("Prometheus metrics initialized")

	srv := server.New(&cfg.Server, logger, appMetrics)

	var monitor *server.MonitorServer
	if cfg.Monitor.Enabled {
		monitor = server.NewMonitorServer(cfg, logger, srv)
		logger.Info("Monitoring server initialized",
			slog.String("address", net.JoinHostPort(cfg.Monitor.Address, strconv.Itoa(cfg.Monitor.Port))),
		)
	}

	if err := srv.Start(ctx, printMessage(logger)); err != nil {
		logger.Error("Failed to start syslog server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if monitor != nil {
		if err := monitor.Start(); err != nil {
			logger.Error("Failed to start monitoring server", slog.String("error", err.Error()))
			srv.Close()
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...")

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	if monitor != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := monitor.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping monitoring server", slog.String("error", err.Error()))
		}
	}

	if err := srv.Close(); err != nil {
		logger.Error("Error stopping syslog server", slog.String("error", err.Error()))
	}

	stats := srv.Statistics()
	logger.Info("Final server statistics",
		slog.Uint64("messages_received", stats.MessagesReceived),
		slog.Uint64("messages_dispatched", stats.MessagesDispatched),
		slog.Uint64("parse_errors", stats.ParseErrors),
		slog.Uint64("oversized_messages", stats.OversizedMessages),
		slog.Uint64("sessions_accepted", stats.SessionsAccepted),
	)

	logger.Info("Service stopped")
}

// printMessage builds the default handler: every decoded message becomes one
// structured log line.
func printMessage(logger *slog.Logger) server.Handler {
	return func(ctx context.Context, msg *syslog.Message) error {
		logger.Info("message received",
			slog.String("facility", msg.Facility.String()),
			slog.String("severity", msg.Severity.String()),
			slog.String("remote_addr", msg.RemoteAddr),
			slog.String("hostname", msg.Hostname),
			slog.String("app_name", msg.AppName),
			slog.String("msg", msg.Content),
		)
		return nil
	}
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		// Assume it's a file path
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	case "text", "":
		handler = slog.NewTextHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
