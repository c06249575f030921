package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// CheckpointStore is an in-memory implementation of storage.CheckpointStore.
type CheckpointStore struct {
	mu   sync.RWMutex
	data map[string]*storage.Checkpoint
}

// NewCheckpointStore creates a new in-memory checkpoint store.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		data: make(map[string]*storage.Checkpoint),
	}
}

var _ storage.CheckpointStore = (*CheckpointStore)(nil)

func checkpointKey(assetID string, w domain.Window) string {
	return fmt.Sprintf("%s|%d|%d", assetID, w.Start.UTC().UnixMilli(), w.End.UTC().UnixMilli())
}

// IsCompleted reports whether the asset was already ingested for this window.
func (s *CheckpointStore) IsCompleted(_ context.Context, assetID string, w domain.Window) (bool, error) {
	if assetID == "" {
		return false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[checkpointKey(assetID, w)]
	return ok, nil
}

// MarkCompleted records a finished asset. Marking twice is a no-op.
func (s *CheckpointStore) MarkCompleted(_ context.Context, cp *storage.Checkpoint) error {
	if cp == nil || cp.AssetID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := checkpointKey(cp.AssetID, cp.Window)
	if _, exists := s.data[key]; exists {
		return nil
	}

	cpCopy := *cp
	if cpCopy.CompletedAt.IsZero() {
		cpCopy.CompletedAt = time.Now().UTC()
	}
	s.data[key] = &cpCopy

	return nil
}
