package storage

import (
	"context"
	"time"

	"crypto-market-lab/internal/domain"
)

// ObservationStore persists normalized observations as a deduplicated
// append-only time series. Implementations must treat a duplicate
// (asset_id, observed_at) write as a silent no-op, never an overwrite,
// and must apply each input batch within a single transactional boundary.
type ObservationStore interface {
	// InsertBatch persists the batch, absorbing duplicates silently and
	// rejecting malformed rows (zero timestamp, NaN or negative price or
	// volume) without failing the rest of the batch. Returns the number
	// of rows actually inserted.
	InsertBatch(ctx context.Context, obs []*domain.Observation) (int, error)

	// ListAssets returns the distinct assets present in the store,
	// ordered by display name ascending.
	ListAssets(ctx context.Context) ([]*domain.Asset, error)

	// GetHistory returns one asset's observations with observed_at in
	// [w.Start, w.End), ordered by observed_at ascending.
	GetHistory(ctx context.Context, assetID string, w domain.Window) ([]*domain.Observation, error)

	// GetHistoryAll returns observations for all assets in the same
	// half-open window, ordered by (asset_id, observed_at) ascending.
	GetHistoryAll(ctx context.Context, w domain.Window) ([]*domain.Observation, error)
}

// Checkpoint records that one asset was fully ingested for one window.
type Checkpoint struct {
	AssetID     string
	Window      domain.Window
	Points      int // observation candidates produced for the asset
	CompletedAt time.Time
}

// CheckpointStore is the run-level bookkeeping that lets a restarted
// ingestion resume at the next unprocessed asset instead of redoing
// completed ones.
type CheckpointStore interface {
	// IsCompleted reports whether the asset was already ingested for
	// this exact window.
	IsCompleted(ctx context.Context, assetID string, w domain.Window) (bool, error)

	// MarkCompleted records a finished asset. Marking twice is a no-op.
	MarkCompleted(ctx context.Context, cp *Checkpoint) error
}
