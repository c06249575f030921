package postgres

import (
	"context"
	"fmt"
	"time"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// CheckpointStore is a PostgreSQL implementation of storage.CheckpointStore.
// One row per (asset_id, window_start, window_end); marking an already
// completed asset again is absorbed the same way duplicate observations are.
type CheckpointStore struct {
	pool *Pool
}

// NewCheckpointStore creates a new PostgreSQL checkpoint store.
func NewCheckpointStore(pool *Pool) *CheckpointStore {
	return &CheckpointStore{pool: pool}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

// IsCompleted reports whether the asset was already ingested for this window.
func (s *CheckpointStore) IsCompleted(ctx context.Context, assetID string, w domain.Window) (bool, error) {
	if assetID == "" {
		return false, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM ingest_checkpoints
			WHERE asset_id = $1 AND window_start = $2 AND window_end = $3
		)
	`, assetID, w.Start.UTC(), w.End.UTC())

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check checkpoint: %w", err)
	}

	return exists, nil
}

// MarkCompleted records a finished asset for a window.
func (s *CheckpointStore) MarkCompleted(ctx context.Context, cp *storage.Checkpoint) error {
	if cp == nil || cp.AssetID == "" {
		return storage.ErrInvalidInput
	}

	completedAt := cp.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO ingest_checkpoints (asset_id, window_start, window_end, points, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id, window_start, window_end) DO NOTHING
	`, cp.AssetID, cp.Window.Start.UTC(), cp.Window.End.UTC(), cp.Points, completedAt)
	if err != nil {
		return fmt.Errorf("mark checkpoint: %w", err)
	}

	return nil
}
