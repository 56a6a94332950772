// Package main provides the entry point for the federated search service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/federated-search-service/internal/cache"
	"github.com/helixir/federated-search-service/internal/config"
	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/fallback"
	"github.com/helixir/federated-search-service/internal/merge"
	"github.com/helixir/federated-search-service/internal/observability"
	"github.com/helixir/federated-search-service/internal/pipeline"
	"github.com/helixir/federated-search-service/internal/selection"
	httpserver "github.com/helixir/federated-search-service/internal/server/http"
	"github.com/helixir/federated-search-service/internal/sources"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("federated-search-service starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up Prometheus metrics.
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics("fedsearch", promRegistry)

	// Connect the shared cache tier. A Redis failure at startup degrades to
	// the in-process tiers rather than aborting.
	var shared cache.SharedStore
	if cfg.Redis.Enabled {
		redisStore, err := cache.NewRedisStore(ctx, cache.RedisOptions{
			Address:     cfg.Redis.Address,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("shared cache tier unavailable, degrading to in-process tiers")
		} else {
			shared = redisStore
			defer redisStore.Close()
			logger.Info().Str("address", cfg.Redis.Address).Msg("shared cache tier connected")
		}
	}

	cacheManager := cache.NewManager(cache.ManagerConfig{
		L1Size:       cfg.Cache.L1Size,
		L3Capacity:   cfg.Cache.L3Capacity,
		TTLOverrides: strategyOverrides(cfg.Cache.TTLOverrides),
	}, shared, logger, metrics)
	searchCache := cache.NewSearchCache(cacheManager, logger)
	paperCache := cache.NewPaperCache(cacheManager, logger)
	apiCache := cache.NewAPICache(cacheManager, nil, cache.DefaultErrorTTL, logger)

	// Build provider connectors behind the normalizer gateway.
	registry := sources.NewRegistry()
	for _, source := range domain.AllSources {
		srcCfg, ok := cfg.Sources.ByName(string(source))
		if !ok {
			continue
		}

		baseURL := srcCfg.BaseURL
		if baseURL == "" {
			baseURL = cfg.Sources.GatewayBaseURL
		}

		client := sources.NewHTTPClient(sources.HTTPClientConfig{
			Timeout:      srcCfg.Timeout,
			RateLimit:    srcCfg.RateLimit,
			APIKey:       srcCfg.APIKey,
			APIKeyHeader: "X-API-Key",
		})
		registry.Register(sources.NewRESTConnector(source, sources.RESTConnectorConfig{
			BaseURL:    baseURL,
			Enabled:    srcCfg.Enabled,
			MaxResults: srcCfg.MaxResults,
		}, client))
	}
	logger.Info().Int("enabled", len(registry.Enabled())).Msg("provider connectors registered")

	// Adaptive source selection.
	monitor := selection.NewMonitor(selection.MonitorConfig{
		LearningRate:    cfg.Selection.LearningRate,
		DecayFactor:     cfg.Selection.DecayFactor,
		StalenessWindow: cfg.Selection.StalenessWindow,
		HistoryLimit:    cfg.Selection.HistoryLimit,
	}, logger)
	selector := selection.NewSelector(selection.SelectorConfig{
		AdaptiveLearning: cfg.Selection.AdaptiveLearning,
	}, monitor, logger)

	// Search pipeline.
	aggregator := sources.NewAggregatorManager(registry, cfg.Pipeline.AggregatorTimeout, logger, metrics)
	searchPipeline := pipeline.New(cfg.Pipeline, pipeline.Options{
		Registry:    registry,
		Aggregator:  aggregator,
		Fallback:    fallback.NewManager(logger),
		Merger:      merge.NewMerger(logger),
		Selector:    selector,
		SearchCache: searchCache,
		PaperCache:  paperCache,
		APICache:    apiCache,
		Logger:      logger,
		Metrics:     metrics,
	})

	// Cache warmer, fed by the pipeline itself.
	var warmer *cache.Warmer
	if cfg.Warmer.Enabled {
		warmer = cache.NewWarmer(cache.WarmerConfig{
			Interval:     cfg.Warmer.Interval,
			TopQueries:   cfg.Warmer.TopQueries,
			TopRecords:   cfg.Warmer.TopRecords,
			QueryWindow:  cfg.Warmer.QueryWindow,
			RecordWindow: cfg.Warmer.RecordWindow,
		}, cache.WarmFuncs{
			Search: func(ctx context.Context, query string) error {
				_, err := searchPipeline.Search(ctx, domain.SearchRequest{Query: query})
				return err
			},
			FetchPaper: func(ctx context.Context, doi string) error {
				_, err := searchPipeline.LookupDOI(ctx, doi)
				return err
			},
			CheckHealth: func(ctx context.Context) error {
				if len(registry.Enabled()) == 0 {
					return domain.ErrServiceUnavailable
				}
				return nil
			},
		}, logger, metrics)
		searchPipeline.Warmer = warmer
		go warmer.Run(ctx)
		logger.Info().Dur("interval", cfg.Warmer.Interval).Msg("cache warmer running")
	}

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	httpSrv := httpserver.NewServer(
		httpCfg,
		searchPipeline,
		registry,
		aggregator,
		monitor,
		cacheManager,
		warmer,
		logger,
	)

	// Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().Str("http_address", httpCfg.Address)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("federated-search-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down federated-search-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("federated-search-service shutdown complete")
	return nil
}

// strategyOverrides maps configured L1 TTL overrides onto full per-tier
// profiles, scaling L2 and L3 with the same ratios as the defaults. Unknown
// strategy names are dropped.
func strategyOverrides(raw map[string]time.Duration) map[cache.Strategy]cache.TTLProfile {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[cache.Strategy]cache.TTLProfile, len(raw))
	for name, l1 := range raw {
		for _, s := range cache.AllStrategies {
			if string(s) != name {
				continue
			}
			def := cache.TTLFor(s, nil)
			out[s] = cache.TTLProfile{
				L1: l1,
				L2: time.Duration(float64(l1) * float64(def.L2) / float64(def.L1)),
				L3: time.Duration(float64(l1) * float64(def.L3) / float64(def.L1)),
			}
		}
	}
	return out
}
