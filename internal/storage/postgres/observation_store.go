package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// ObservationStore implements storage.ObservationStore using PostgreSQL.
// Deduplication rides on the UNIQUE(asset_id, observed_at) index: a
// conflicting insert is absorbed by ON CONFLICT DO NOTHING, so re-running
// an ingestion over an overlapping window produces zero new rows.
type ObservationStore struct {
	pool *Pool
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(pool *Pool) *ObservationStore {
	return &ObservationStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBatch persists the batch inside one transaction. Malformed rows
// are filtered at the boundary, duplicates are silently absorbed.
func (s *ObservationStore) InsertBatch(ctx context.Context, obs []*domain.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO observations (asset_id, symbol, display_name, price, volume, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (asset_id, observed_at) DO NOTHING
	`

	inserted := 0
	for _, o := range obs {
		if !storage.ValidObservation(o) {
			continue
		}
		tag, err := tx.Exec(ctx, query,
			o.AssetID,
			o.Symbol,
			o.DisplayName,
			o.Price,
			o.Volume,
			o.ObservedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("insert observation: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return inserted, nil
}

// ListAssets returns distinct assets ordered by display name. The most
// recent row per asset supplies symbol and display name, so a metadata
// refresh shows up without rewriting history.
func (s *ObservationStore) ListAssets(ctx context.Context) ([]*domain.Asset, error) {
	query := `
		SELECT asset_id, symbol, display_name
		FROM (
			SELECT DISTINCT ON (asset_id) asset_id, symbol, display_name
			FROM observations
			ORDER BY asset_id, observed_at DESC
		) latest
		ORDER BY display_name ASC, asset_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []*domain.Asset{}
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.Symbol, &a.DisplayName); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}

	return assets, nil
}

// GetHistory returns one asset's observations in [w.Start, w.End), ascending.
func (s *ObservationStore) GetHistory(ctx context.Context, assetID string, w domain.Window) ([]*domain.Observation, error) {
	query := `
		SELECT asset_id, symbol, display_name, price, volume, observed_at
		FROM observations
		WHERE asset_id = $1 AND observed_at >= $2 AND observed_at < $3
		ORDER BY observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID, w.Start.UTC(), w.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("get history: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// GetHistoryAll returns all observations in [w.Start, w.End), ordered by
// (asset_id, observed_at).
func (s *ObservationStore) GetHistoryAll(ctx context.Context, w domain.Window) ([]*domain.Observation, error) {
	query := `
		SELECT asset_id, symbol, display_name, price, volume, observed_at
		FROM observations
		WHERE observed_at >= $1 AND observed_at < $2
		ORDER BY asset_id ASC, observed_at ASC
	`

	rows, err := s.pool.Query(ctx, query, w.Start.UTC(), w.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("get history all: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans rows into a slice of Observation.
func scanObservations(rows pgx.Rows) ([]*domain.Observation, error) {
	obs := []*domain.Observation{}

	for rows.Next() {
		var o domain.Observation
		err := rows.Scan(
			&o.AssetID,
			&o.Symbol,
			&o.DisplayName,
			&o.Price,
			&o.Volume,
			&o.ObservedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.ObservedAt = o.ObservedAt.UTC()
		obs = append(obs, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}

	return obs, nil
}
