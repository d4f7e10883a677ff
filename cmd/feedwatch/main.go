// feedwatch connects to the office feeds, keeps the live dashboard board and
// optionally archives every routed envelope to Postgres.
// Usage: go run ./cmd/feedwatch --config configs/feedwatch.example.yaml
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/officefeed/internal/archive"
	"github.com/rickgao/officefeed/internal/config"
	"github.com/rickgao/officefeed/internal/connection"
	"github.com/rickgao/officefeed/internal/database"
	"github.com/rickgao/officefeed/internal/metrics"
	"github.com/rickgao/officefeed/internal/router"
	"github.com/rickgao/officefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (built-in defaults when empty)")
	verbose := flag.Bool("verbose", false, "print every frame")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting feedwatch",
		"version", version.Version,
		"commit", version.Commit,
		"instance_id", cfg.Instance.ID,
		"endpoints", len(cfg.Stream.Endpoints),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Router keeps the board and feeds the archive queue
	rt := router.NewRouter(router.RouterConfig{
		Archive:          cfg.Archive.Enabled,
		ArchiveQueueSize: cfg.Archive.QueueSize,
		ArchiveQueueMax:  cfg.Archive.QueueMax,
	}, logger)
	metrics.RegisterRouterStats(reg, rt.Stats)

	// Archive writer
	var (
		pool   *pgxpool.Pool
		writer *archive.Writer
	)
	if cfg.Archive.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Archive.Database.Host,
			"port", cfg.Archive.Database.Port,
			"database", cfg.Archive.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Archive.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}

		writer = archive.NewWriter(archive.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, rt.Events(), pool, logger)
		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start archive writer", "error", err)
			os.Exit(1)
		}
		metrics.RegisterArchiveStats(reg, writer.Stats)

		logger.Info("archive enabled", "batch_size", cfg.Archive.BatchSize)
	}

	// Connection manager
	mgr := connection.NewManager(managerConfig(cfg.Stream),
		connection.WithLogger(logger),
		connection.WithObserver(metrics.NewCollector(reg)),
	)

	stops := make([]connection.DisconnectFunc, 0, len(cfg.Stream.Endpoints))
	for _, endpoint := range cfg.Stream.Endpoints {
		opts := rt.Options(endpoint)
		if *verbose {
			handle := opts.OnMessage
			opts.OnMessage = func(msg connection.Message) {
				fmt.Printf("[%s] %s %s\n", msg.ReceivedAt.Format(time.RFC3339), msg.Endpoint, msg.Raw)
				handle(msg)
			}
		}
		stop, err := mgr.Connect(opts)
		if err != nil {
			logger.Error("failed to register endpoint", "endpoint", endpoint, "error", err)
			os.Exit(1)
		}
		stops = append(stops, rt.Bind(endpoint, stop))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           createHandler(cfg, reg, mgr, rt, pool),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting http server", "port", cfg.Metrics.Port)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	logger.Info("feedwatch running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	for _, stop := range stops {
		stop()
	}
	if err := mgr.Close(shutdownCtx); err != nil {
		logger.Warn("connection manager shutdown", "error", err)
	}
	rt.Close()
	if writer != nil {
		if err := writer.Stop(shutdownCtx); err != nil {
			logger.Warn("archive writer shutdown", "error", err)
		}
	}
	server.Shutdown(shutdownCtx)

	logger.Info("feedwatch stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

// managerConfig maps the stream section onto the connection manager. A configured
// ceiling of 0 means no retries, which the manager spells NoReconnect.
func managerConfig(s config.StreamConfig) connection.ManagerConfig {
	attempts := s.Attempts()
	if attempts == 0 {
		attempts = connection.NoReconnect
	}
	return connection.ManagerConfig{
		BaseURL:              s.BaseURL,
		Origin:               s.Origin,
		ReconnectDelay:       s.ReconnectDelay,
		MaxReconnectAttempts: attempts,
		HandshakeTimeout:     s.HandshakeTimeout,
		WriteTimeout:         s.WriteTimeout,
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// createHandler serves health, metrics and the board.
func createHandler(cfg *config.Config, reg *prometheus.Registry, mgr connection.Manager, rt router.Router, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		stats := mgr.Stats()
		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["streams"] = map[string]int{
			"registered":   stats.Registered,
			"open":         stats.Open,
			"reconnecting": stats.Reconnecting,
			"given_up":     stats.GivenUp,
		}
		if stats.Open < stats.Registered {
			health.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["postgres"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/debug/board", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"board":     rt.Board(),
			"endpoints": mgr.Endpoints(),
			"stats":     mgr.Stats(),
			"router":    rt.Stats(),
		})
	})

	return mux
}
