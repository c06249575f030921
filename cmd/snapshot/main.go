// Command snapshot prints the stored asset list and the cross-asset
// aggregate view for a window as JSON. It exercises the exact read
// contract the dashboard consumes.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"crypto-market-lab/internal/config"
	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/logging"
	"crypto-market-lab/internal/query"
	"crypto-market-lab/internal/storage"
	chstore "crypto-market-lab/internal/storage/clickhouse"
	pgstore "crypto-market-lab/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	fromFlag := flag.String("from", "", "Window start (RFC3339); defaults to 30 days ago")
	toFlag := flag.String("to", "", "Window end, exclusive (RFC3339); defaults to now")
	asset := flag.String("asset", "", "Also print this asset's derived series")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format).With().Str("component", "snapshot").Logger()

	now := time.Now().UTC()
	window := domain.Lookback(now, 30*24*time.Hour)
	if *fromFlag != "" {
		start, err := time.Parse(time.RFC3339, *fromFlag)
		if err != nil {
			logger.Fatal().Err(err).Msg("bad -from")
		}
		end := now
		if *toFlag != "" {
			if end, err = time.Parse(time.RFC3339, *toFlag); err != nil {
				logger.Fatal().Err(err).Msg("bad -to")
			}
		}
		window = domain.NewWindow(start, end)
	}

	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup failed")
	}
	defer cleanup()

	svc := query.NewService(store,
		query.WithCache(query.NewTTLCache(), cfg.Analytics.CacheTTL),
		query.WithMinOverlap(cfg.Analytics.CorrelationMinOverlap),
	)

	assets, err := svc.Assets(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list assets failed")
	}
	if len(assets) == 0 {
		fmt.Println(`{"assets": [], "note": "store is empty; run ingest first"}`)
		return
	}

	snap, err := svc.Snapshot(ctx, window)
	if err != nil {
		logger.Fatal().Err(err).Msg("snapshot failed")
	}

	out := map[string]any{
		"assets":   assets,
		"snapshot": snap,
	}
	if *asset != "" {
		series, err := svc.History(ctx, *asset, window)
		if err != nil {
			logger.Fatal().Err(err).Str("asset", *asset).Msg("history failed")
		}
		out["history"] = series
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Fatal().Err(err).Msg("encode output")
	}
}

// openStore opens the configured read backend. Memory makes no sense for
// a read-only CLI, so it maps to postgres.
func openStore(ctx context.Context, cfg *config.Config) (storage.ObservationStore, func(), error) {
	if cfg.Store.Backend == "clickhouse" {
		conn, err := chstore.NewConn(ctx, cfg.Store.ClickhouseDSN)
		if err != nil {
			return nil, nil, err
		}
		return chstore.NewObservationStore(conn), func() { conn.Close() }, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Store.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.NewObservationStore(pool), pool.Close, nil
}
