package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// ObservationStore is an in-memory implementation of storage.ObservationStore.
// Used by tests and by --use-memory runs.
type ObservationStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Observation // keyed by (asset_id, observed_at)
}

// NewObservationStore creates a new in-memory observation store.
func NewObservationStore() *ObservationStore {
	return &ObservationStore{
		data: make(map[string]*domain.Observation),
	}
}

var _ storage.ObservationStore = (*ObservationStore)(nil)

// obsKey generates a unique key for an observation.
func obsKey(assetID string, unixMs int64) string {
	return fmt.Sprintf("%s|%d", assetID, unixMs)
}

// InsertBatch adds the batch, skipping malformed rows and absorbing
// duplicates (existing and intra-batch; first occurrence wins).
func (s *ObservationStore) InsertBatch(_ context.Context, obs []*domain.Observation) (int, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, o := range obs {
		if !storage.ValidObservation(o) {
			continue
		}
		key := obsKey(o.AssetID, o.ObservedAt.UTC().UnixMilli())
		if _, exists := s.data[key]; exists {
			continue
		}
		obsCopy := *o
		obsCopy.ObservedAt = o.ObservedAt.UTC()
		s.data[key] = &obsCopy
		inserted++
	}

	return inserted, nil
}

// ListAssets returns distinct assets ordered by display name. The most
// recent observation per asset supplies the metadata.
func (s *ObservationStore) ListAssets(_ context.Context) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]*domain.Observation)
	for _, o := range s.data {
		cur, ok := latest[o.AssetID]
		if !ok || o.ObservedAt.After(cur.ObservedAt) {
			latest[o.AssetID] = o
		}
	}

	assets := []*domain.Asset{}
	for _, o := range latest {
		assets = append(assets, &domain.Asset{
			ID:          o.AssetID,
			Symbol:      o.Symbol,
			DisplayName: o.DisplayName,
		})
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].DisplayName != assets[j].DisplayName {
			return assets[i].DisplayName < assets[j].DisplayName
		}
		return assets[i].ID < assets[j].ID
	})

	return assets, nil
}

// GetHistory returns one asset's observations in [w.Start, w.End), ascending.
func (s *ObservationStore) GetHistory(_ context.Context, assetID string, w domain.Window) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Observation{}
	for _, o := range s.data {
		if o.AssetID == assetID && w.Contains(o.ObservedAt) {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})

	return result, nil
}

// GetHistoryAll returns all observations in [w.Start, w.End), ordered by
// (asset_id, observed_at).
func (s *ObservationStore) GetHistoryAll(_ context.Context, w domain.Window) ([]*domain.Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []*domain.Observation{}
	for _, o := range s.data {
		if w.Contains(o.ObservedAt) {
			obsCopy := *o
			result = append(result, &obsCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].AssetID != result[j].AssetID {
			return result[i].AssetID < result[j].AssetID
		}
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})

	return result, nil
}

// Len returns the number of stored observations.
func (s *ObservationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
