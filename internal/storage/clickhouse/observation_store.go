package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// ObservationStore implements storage.ObservationStore using ClickHouse.
// MergeTree engines do not enforce uniqueness at insert time, so the write
// path filters the batch against existing (asset_id, observed_at) keys
// before inserting, and the table is a ReplacingMergeTree read with FINAL
// as a second line of defense against races between concurrent runs.
type ObservationStore struct {
	conn *Conn
}

// NewObservationStore creates a new ObservationStore.
func NewObservationStore(conn *Conn) *ObservationStore {
	return &ObservationStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationStore = (*ObservationStore)(nil)

// InsertBatch adds the batch in a single prepared batch send, absorbing
// duplicates and skipping malformed rows.
func (s *ObservationStore) InsertBatch(ctx context.Context, obs []*domain.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	type key struct {
		assetID string
		unixMs  int64
	}

	// Keep well-formed candidates, first occurrence per key.
	candidates := make([]*domain.Observation, 0, len(obs))
	seen := make(map[key]struct{}, len(obs))
	for _, o := range obs {
		if !storage.ValidObservation(o) {
			continue
		}
		k := key{o.AssetID, o.ObservedAt.UTC().UnixMilli()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		candidates = append(candidates, o)
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	// Filter against keys already stored for the batch's time span.
	existing, err := s.existingKeys(ctx, candidates)
	if err != nil {
		return 0, fmt.Errorf("check existing keys: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO observations (asset_id, symbol, display_name, price, volume, observed_at)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	inserted := 0
	for _, o := range candidates {
		k := key{o.AssetID, o.ObservedAt.UTC().UnixMilli()}
		if _, dup := existing[fmt.Sprintf("%s|%d", k.assetID, k.unixMs)]; dup {
			continue
		}
		err = batch.Append(
			o.AssetID, o.Symbol, o.DisplayName,
			o.Price, o.Volume, o.ObservedAt.UTC(),
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
		inserted++
	}

	if inserted == 0 {
		// PrepareBatch must still be resolved; sending an empty batch is a no-op.
		if err := batch.Send(); err != nil {
			return 0, fmt.Errorf("send empty batch: %w", err)
		}
		return 0, nil
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}

	return inserted, nil
}

// existingKeys returns "asset_id|unix_ms" for stored rows overlapping the
// candidates' time span and asset set.
func (s *ObservationStore) existingKeys(ctx context.Context, candidates []*domain.Observation) (map[string]struct{}, error) {
	minTs := candidates[0].ObservedAt.UTC()
	maxTs := minTs
	assetSet := make(map[string]struct{})
	for _, o := range candidates {
		ts := o.ObservedAt.UTC()
		if ts.Before(minTs) {
			minTs = ts
		}
		if ts.After(maxTs) {
			maxTs = ts
		}
		assetSet[o.AssetID] = struct{}{}
	}
	assetIDs := make([]string, 0, len(assetSet))
	for id := range assetSet {
		assetIDs = append(assetIDs, id)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT asset_id, observed_at
		FROM observations FINAL
		WHERE asset_id IN (?) AND observed_at >= ? AND observed_at <= ?
	`, assetIDs, minTs, maxTs)
	if err != nil {
		return nil, fmt.Errorf("query existing: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var assetID string
		var observedAt time.Time
		if err := rows.Scan(&assetID, &observedAt); err != nil {
			return nil, fmt.Errorf("scan existing key: %w", err)
		}
		existing[fmt.Sprintf("%s|%d", assetID, observedAt.UTC().UnixMilli())] = struct{}{}
	}

	return existing, rows.Err()
}

// ListAssets returns distinct assets ordered by display name.
func (s *ObservationStore) ListAssets(ctx context.Context) ([]*domain.Asset, error) {
	query := `
		SELECT asset_id, argMax(symbol, observed_at), argMax(display_name, observed_at) AS display_name
		FROM observations FINAL
		GROUP BY asset_id
		ORDER BY display_name ASC, asset_id ASC
	`

	rows, err := s.conn.Query(ctx, query)
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

	return assets, rows.Err()
}

// GetHistory returns one asset's observations in [w.Start, w.End), ascending.
func (s *ObservationStore) GetHistory(ctx context.Context, assetID string, w domain.Window) ([]*domain.Observation, error) {
	query := `
		SELECT asset_id, symbol, display_name, price, volume, observed_at
		FROM observations FINAL
		WHERE asset_id = ? AND observed_at >= ? AND observed_at < ?
		ORDER BY observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID, w.Start.UTC(), w.End.UTC())
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
		FROM observations FINAL
		WHERE observed_at >= ? AND observed_at < ?
		ORDER BY asset_id ASC, observed_at ASC
	`

	rows, err := s.conn.Query(ctx, query, w.Start.UTC(), w.End.UTC())
	if err != nil {
		return nil, fmt.Errorf("get history all: %w", err)
	}
	defer rows.Close()

	return scanObservations(rows)
}

// scanObservations scans rows into a slice of Observation.
func scanObservations(rows driver.Rows) ([]*domain.Observation, error) {
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
