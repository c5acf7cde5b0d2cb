package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/patrickwarner/openbidtuner/internal/api"
	"github.com/patrickwarner/openbidtuner/internal/config"
	"github.com/patrickwarner/openbidtuner/internal/db"
	"github.com/patrickwarner/openbidtuner/internal/engine"
	"github.com/patrickwarner/openbidtuner/internal/history"
	"github.com/patrickwarner/openbidtuner/internal/observability"
)

func main() {
	cfg := config.Load()

	logger, err := observability.InitLogger(cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	if err := run(logger, cfg); err != nil {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *zap.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TracingEnabled {
		shutdown, err := observability.InitTracing(ctx, logger, cfg.ServiceName, cfg.TempoEndpoint, cfg.TracingSampleRate)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer shutdown()
	}

	pg, err := db.InitPostgres(cfg.PostgresDSN, cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)
	if err != nil {
		return fmt.Errorf("failed to connect postgres: %w", err)
	}
	defer pg.Close()

	store, err := db.InitRedis(cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("failed to connect redis: %w", err)
	}
	defer store.Close()

	perf, err := history.InitClickHouse(cfg.ClickHouseDSN, cfg.CHMaxOpenConns)
	if err != nil {
		return fmt.Errorf("failed to connect clickhouse: %w", err)
	}
	defer perf.Close()

	metricsRegistry := observability.NewPrometheusRegistry()

	eng := engine.NewEngine(perf, pg, store, metricsRegistry, logger, cfg)
	srvDeps := api.NewServer(logger, pg, store, eng, metricsRegistry, cfg)

	r := mux.NewRouter()
	r.HandleFunc("/runs/{country}", srvDeps.TriggerRunHandler).Methods("POST")
	r.HandleFunc("/runs/{country}/latest", srvDeps.LatestRunHandler).Methods("GET")
	r.HandleFunc("/health", srvDeps.HealthHandler).Methods("GET")

	crud := r.PathPrefix("/api").Subrouter()
	crud.HandleFunc("/recommendations", srvDeps.ListRecommendationsHandler).Methods("GET")
	crud.HandleFunc("/recommendations/{id}", srvDeps.GetRecommendationHandler).Methods("GET")
	crud.HandleFunc("/recommendations/{id}/implemented", srvDeps.MarkImplementedHandler).Methods("POST")
	crud.HandleFunc("/weights/{country}", srvDeps.GetWeightsHandler).Methods("GET")
	crud.HandleFunc("/weights/{country}", srvDeps.PutWeightsHandler).Methods("PUT")
	crud.HandleFunc("/targets/{campaignID}", srvDeps.GetTargetHandler).Methods("GET")
	crud.HandleFunc("/targets/{campaignID}", srvDeps.PutTargetHandler).Methods("PUT")
	crud.HandleFunc("/changes", srvDeps.RecordChangeHandler).Methods("POST")

	r.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = r
	if cfg.TracingEnabled {
		handler = otelhttp.NewHandler(r, "http.server")
	}

	addr := ":" + cfg.Port

	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	logger.Info("Bid tuner running", zap.String("addr", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen: %w", err)
		}
	}()

	if cfg.BatchInterval > 0 && len(cfg.BatchCountries) > 0 {
		ticker := time.NewTicker(cfg.BatchInterval)
		go func() {
			for {
				select {
				case <-ticker.C:
					for _, country := range cfg.BatchCountries {
						if _, _, err := eng.GenerateRecommendations(ctx, country, nil); err != nil {
							logger.Error("scheduled run", zap.String("country", country), zap.Error(err))
						}
					}
				case <-ctx.Done():
					ticker.Stop()
					return
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
