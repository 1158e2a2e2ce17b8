package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/warestack/wms-predict/internal/api"
	"github.com/warestack/wms-predict/internal/audit"
	"github.com/warestack/wms-predict/internal/cache"
	"github.com/warestack/wms-predict/internal/config"
	"github.com/warestack/wms-predict/internal/history"
	"github.com/warestack/wms-predict/internal/metrics"
	"github.com/warestack/wms-predict/internal/registry"
	"github.com/warestack/wms-predict/internal/service"
	"github.com/warestack/wms-predict/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting predict-engine", slog.String("address", cfg.Server.Address))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newArtifactStore(ctx, cfg.Artifacts)
	if err != nil {
		logger.Error("failed to open artifact store", slog.Any("error", err))
		os.Exit(1)
	}

	reg := registry.New(store, logger)
	if err := reg.ReloadAll(ctx); err != nil {
		// Serving starts anyway: requests for missing models return 503
		// until a later reload succeeds.
		logger.Warn("initial model load incomplete", slog.Any("error", err))
	}

	var cacheProvider cache.Provider = cache.NoopProvider{}
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
		})
		if err != nil {
			logger.Warn("valkey cache unavailable", slog.Any("error", err))
		} else {
			cacheProvider = provider
			defer provider.Close()
		}
	}

	var demandHistory history.DemandHistory = history.NewMemoryHistory()
	if cfg.Database.DSN != "" {
		pgHistory, err := history.NewPostgresHistory(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Error("failed to open history database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pgHistory.Close()
		demandHistory = pgHistory
	} else {
		logger.Warn("no database configured, demand forecasts will report missing history")
	}
	demandHistory = history.NewCachedDemandHistory(demandHistory, cacheProvider, cfg.Cache.DemandHistoryTTL, logger)

	var auditLog audit.Log = audit.NopLog{}
	if cfg.Audit.Enabled {
		if cfg.Audit.DSN == "" {
			logger.Error("audit enabled but no DSN configured")
			os.Exit(1)
		}
		pgAudit, err := audit.NewPostgresLog(ctx, cfg.Audit.DSN)
		if err != nil {
			logger.Error("failed to open audit database", slog.Any("error", err))
			os.Exit(1)
		}
		defer pgAudit.Close()
		auditLog = pgAudit
	}

	predictionService := service.NewPredictionService(logger, reg, demandHistory, auditLog, cfg.Audit.WriteTimeout)
	defer predictionService.Close()

	handlers := api.NewHandlers(predictionService, logger)
	server, err := api.NewServer(cfg.Server, handlers)
	if err != nil {
		logger.Error("failed to create HTTP server", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Artifacts.ReloadInterval > 0 {
		go reloadLoop(ctx, reg, cfg.Artifacts.ReloadInterval, logger)
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("HTTP server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	// Give remaining goroutines time to finish logging
	time.Sleep(100 * time.Millisecond)
	logger.Info("predict-engine stopped")
}

func newArtifactStore(ctx context.Context, cfg config.ArtifactsConfig) (registry.ArtifactStore, error) {
	switch cfg.Backend {
	case "s3":
		return registry.NewS3Store(ctx, registry.S3Config{
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			PathStyle: cfg.S3.PathStyle,
		})
	default:
		return registry.NewFSStore(cfg.Dir)
	}
}

func reloadLoop(ctx context.Context, reg *registry.Registry, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := reg.ReloadAll(ctx); err != nil {
				logger.Warn("periodic model reload incomplete", slog.Any("error", err))
			}
		}
	}
}
