package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/config"
	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/ingestion"
	"crypto-market-lab/internal/logging"
	"crypto-market-lab/internal/observability"
	"crypto-market-lab/internal/storage"
	chstore "crypto-market-lab/internal/storage/clickhouse"
	"crypto-market-lab/internal/storage/memory"
	"crypto-market-lab/internal/storage/migrations"
	pgstore "crypto-market-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	assets := flag.String("assets", "", "Comma-separated asset ids (overrides config)")
	days := flag.Int("days", 0, "Lookback in days (overrides config)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of the configured backend")
	flag.Parse()

	// Secrets come from .env in development; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("component", "ingest").Logger()

	if *assets != "" {
		cfg.Ingest.AssetIDs = splitAssets(*assets)
	}
	if *days > 0 {
		cfg.Ingest.DaysBack = *days
	}
	if *useMemory {
		cfg.Store.Backend = "memory"
	}

	// A missing credential is a configuration error: fail before the
	// first request rather than on it.
	if cfg.Provider.APIKey == "" {
		logger.Fatal().Msg("no provider API key; set COINGECKO_API_KEY in the environment or .env")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("")
	if !cfg.Metrics.Disabled && cfg.Metrics.Addr != "" {
		go serveMetrics(cfg.Metrics.Addr, logger)
	}

	store, checkpoints, cleanup, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup failed")
	}
	defer cleanup()

	client := coingecko.New(cfg.Provider.BaseURL, cfg.Provider.APIKey,
		coingecko.WithMinInterval(cfg.Provider.MinInterval),
		coingecko.WithPolicy(coingecko.RetryPolicy{
			MaxRetries:   cfg.Provider.MaxRetries,
			InitialDelay: cfg.Provider.InitialDelay,
			MaxDelay:     cfg.Provider.MaxDelay,
			BackoffMult:  coingecko.DefaultBackoffMult,
			MaxNarrow:    cfg.Provider.MaxNarrow,
		}),
		coingecko.WithLogger(logger),
		coingecko.WithRetryHook(metrics.RequestRetries.Inc),
	)

	runner := ingestion.NewRunner(ingestion.RunnerOptions{
		Source:      client,
		Resolver:    ingestion.NewResolver(client, logger),
		Store:       store,
		Checkpoints: checkpoints,
		Metrics:     metrics,
		Logger:      logger,
	})

	window := domain.Lookback(time.Now().UTC(), time.Duration(cfg.Ingest.DaysBack)*24*time.Hour)

	report, err := runner.Run(ctx, cfg.Ingest.AssetIDs, window)
	if err != nil {
		logger.Fatal().Err(err).Msg("ingestion run aborted")
	}
	if len(report.Skipped) > 0 {
		logger.Warn().Strs("assets", report.Skipped).Msg("some assets were skipped this run")
	}
}

// buildStores wires the configured storage backend and applies migrations.
func buildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (storage.ObservationStore, storage.CheckpointStore, func(), error) {
	switch cfg.Store.Backend {
	case "memory":
		logger.Info().Msg("using in-memory storage; data is lost on exit")
		return memory.NewObservationStore(), memory.NewCheckpointStore(), func() {}, nil

	case "clickhouse":
		conn, err := chstore.NewConn(ctx, cfg.Store.ClickhouseDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
			conn.Close()
			return nil, nil, nil, err
		}
		// ClickHouse carries observations only; checkpoints stay in memory
		// for the lifetime of the run.
		return chstore.NewObservationStore(conn), memory.NewCheckpointStore(), func() { conn.Close() }, nil

	default: // postgres
		pool, err := pgstore.NewPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		return pgstore.NewObservationStore(pool), pgstore.NewCheckpointStore(pool), pool.Close, nil
	}
}

func serveMetrics(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server stopped")
	}
}

func splitAssets(s string) []string {
	out := []string{}
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
