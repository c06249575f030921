package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/observability"
	"crypto-market-lab/internal/storage"
)

// Runner orchestrates one ETL run: resolve metadata once, then fetch,
// normalize and persist each asset sequentially. The provider client's
// min-interval gate is the sole request-rate control, so assets are never
// fetched in parallel.
type Runner struct {
	source      ChartSource
	resolver    *Resolver
	store       storage.ObservationStore
	checkpoints storage.CheckpointStore
	metrics     *observability.Metrics
	logger      zerolog.Logger
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source      ChartSource
	Resolver    *Resolver
	Store       storage.ObservationStore
	Checkpoints storage.CheckpointStore // optional; nil disables resume bookkeeping
	Metrics     *observability.Metrics  // optional
	Logger      zerolog.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		source:      opts.Source,
		resolver:    opts.Resolver,
		store:       opts.Store,
		checkpoints: opts.Checkpoints,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
	}
}

// Report summarizes one run.
type Report struct {
	Window    domain.Window
	Fetched   int      // observation candidates produced
	Inserted  int      // rows actually written (duplicates absorbed)
	Resumed   []string // assets skipped via checkpoint
	Skipped   []string // assets abandoned after exhausted retries
	Succeeded []string
}

// Run ingests the given assets for one window. Per-asset failures are
// isolated; only a credential failure or context cancellation aborts the
// run.
func (r *Runner) Run(ctx context.Context, assetIDs []string, w domain.Window) (*Report, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if len(assetIDs) == 0 {
		return &Report{Window: w}, nil
	}

	r.logger.Info().Int("assets", len(assetIDs)).Stringer("window", w).Msg("starting ingestion run")

	meta, err := r.resolver.Resolve(ctx, assetIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve metadata: %w", err)
	}

	report := &Report{Window: w}
	for i, assetID := range assetIDs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		done, err := r.isCompleted(ctx, assetID, w)
		if err != nil {
			r.logger.Warn().Err(err).Str("asset", assetID).Msg("checkpoint lookup failed, re-ingesting")
		}
		if done {
			report.Resumed = append(report.Resumed, assetID)
			r.logger.Debug().Str("asset", assetID).Msg("already ingested for this window, skipping")
			continue
		}

		points, inserted, err := r.ingestAsset(ctx, assetID, meta[assetID], w)
		if err != nil {
			if errors.Is(err, coingecko.ErrUnauthorized) {
				return report, fmt.Errorf("ingest %s: %w", assetID, err)
			}
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Skipped = append(report.Skipped, assetID)
			if r.metrics != nil {
				r.metrics.AssetsSkipped.Inc()
			}
			r.logger.Error().Err(err).Str("asset", assetID).Msg("asset failed, continuing with remaining assets")
			continue
		}

		report.Fetched += points
		report.Inserted += inserted
		report.Succeeded = append(report.Succeeded, assetID)

		// Advisory progress signal, mirrors the run position.
		r.logger.Info().
			Str("asset", assetID).
			Int("points", points).
			Int("inserted", inserted).
			Str("progress", fmt.Sprintf("%d/%d", i+1, len(assetIDs))).
			Msg("asset ingested")
	}

	r.logger.Info().
		Int("fetched", report.Fetched).
		Int("inserted", report.Inserted).
		Int("skipped", len(report.Skipped)).
		Int("resumed", len(report.Resumed)).
		Msg("ingestion run finished")

	return report, nil
}

// ingestAsset fetches, normalizes and persists one asset.
func (r *Runner) ingestAsset(ctx context.Context, assetID string, meta domain.AssetMeta, w domain.Window) (points, inserted int, err error) {
	start := time.Now()
	chart, err := r.source.MarketChartRange(ctx, assetID, w)
	if r.metrics != nil {
		r.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return 0, 0, fmt.Errorf("fetch chart: %w", err)
	}

	obs := NormalizeChart(assetID, meta, chart)
	if r.metrics != nil {
		r.metrics.PointsFetched.WithLabelValues(assetID).Add(float64(len(obs)))
	}

	inserted, err = r.store.InsertBatch(ctx, obs)
	if err != nil {
		return len(obs), 0, fmt.Errorf("insert batch: %w", err)
	}
	if r.metrics != nil {
		r.metrics.ObservationsInserted.Add(float64(inserted))
	}

	r.markCompleted(ctx, assetID, w, len(obs))

	return len(obs), inserted, nil
}

func (r *Runner) isCompleted(ctx context.Context, assetID string, w domain.Window) (bool, error) {
	if r.checkpoints == nil {
		return false, nil
	}
	return r.checkpoints.IsCompleted(ctx, assetID, w)
}

// markCompleted records the checkpoint. Failures only cost a redundant
// re-ingest on restart, so they are logged and swallowed.
func (r *Runner) markCompleted(ctx context.Context, assetID string, w domain.Window, points int) {
	if r.checkpoints == nil {
		return
	}
	err := r.checkpoints.MarkCompleted(ctx, &storage.Checkpoint{
		AssetID:     assetID,
		Window:      w,
		Points:      points,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn().Err(err).Str("asset", assetID).Msg("checkpoint write failed")
	}
}
