package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/IDNT/AppBasics-Network-Protocol-Syslog/internal/config"
)

// MonitorServer exposes HTTP endpoints for health, statistics, open sessions
// and Prometheus metrics. It observes the syslog server and never touches the
// data path.
type MonitorServer struct {
	server *http.Server
	logger *slog.Logger
	cfg    *config.Config
	syslog *Server

	startTime time.Time
}

// NewMonitorServer creates the monitoring HTTP server for srv.
func NewMonitorServer(cfg *config.Config, logger *slog.Logger, srv *Server) *MonitorServer {
	m := &MonitorServer{
		logger:    logger,
		cfg:       cfg,
		syslog:    srv,
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/stats", m.handleStats)
	mux.HandleFunc("/sessions", m.handleSessions)
	mux.HandleFunc("/config", m.handleConfig)
	mux.Handle("/metrics", promhttp.Handler())

	m.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Monitor.Address, cfg.Monitor.Port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return m
}

// Start starts serving in the background.
func (m *MonitorServer) Start() error {
	m.logger.Info("starting monitoring server", slog.String("address", m.server.Addr))

	go func() {
		if err := m.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			m.logger.Error("monitoring server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the monitoring server.
func (m *MonitorServer) Stop(ctx context.Context) error {
	m.logger.Info("stopping monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *MonitorServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := m.syslog.Statistics()
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(m.startTime).String(),
		"listener": map[string]interface{}{
			"messages_received":   stats.MessagesReceived,
			"messages_dispatched": stats.MessagesDispatched,
			"parse_errors":        stats.ParseErrors,
			"active_sessions":     stats.ActiveSessions,
		},
	}

	writeJSON(w, health)
}

func (m *MonitorServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"uptime":    time.Since(m.startTime).String(),
		"timestamp": time.Now().UTC(),
		"listener":  m.syslog.Statistics(),
	})
}

func (m *MonitorServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessions := m.syslog.Sessions()
	writeJSON(w, map[string]interface{}{
		"total_sessions": len(sessions),
		"timestamp":      time.Now().UTC(),
		"sessions":       sessions,
	})
}

func (m *MonitorServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]interface{}{
		"server": map[string]interface{}{
			"listen_address":   m.cfg.Server.ListenAddress,
			"tcp_port":         m.cfg.Server.TCPPort,
			"udp_port":         m.cfg.Server.UDPPort,
			"listen_backlog":   m.cfg.Server.ListenBacklog,
			"read_timeout":     m.cfg.Server.ReadTimeout,
			"max_message_size": m.cfg.Server.MaxMessageSize,
		},
		"logging": map[string]interface{}{
			"level":  m.cfg.Logging.Level,
			"format": m.cfg.Logging.Format,
			"output": m.cfg.Logging.Output,
		},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
