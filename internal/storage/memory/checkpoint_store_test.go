package memory

import (
	"context"
	"errors"
	"testing"

	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

func TestCheckpointStore_MarkAndCheck(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	w := domain.NewWindow(ts(0), ts(30))

	done, err := store.IsCompleted(ctx, "bitcoin", w)
	if err != nil {
		t.Fatalf("IsCompleted failed: %v", err)
	}
	if done {
		t.Error("Expected not completed before marking")
	}

	err = store.MarkCompleted(ctx, &storage.Checkpoint{AssetID: "bitcoin", Window: w, Points: 30})
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	done, err = store.IsCompleted(ctx, "bitcoin", w)
	if err != nil {
		t.Fatalf("IsCompleted failed: %v", err)
	}
	if !done {
		t.Error("Expected completed after marking")
	}
}

func TestCheckpointStore_WindowsAreDistinct(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if err := store.MarkCompleted(ctx, &storage.Checkpoint{
		AssetID: "bitcoin",
		Window:  domain.NewWindow(ts(0), ts(30)),
	}); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	done, _ := store.IsCompleted(ctx, "bitcoin", domain.NewWindow(ts(0), ts(31)))
	if done {
		t.Error("Expected a different window to be unmarked")
	}
	done, _ = store.IsCompleted(ctx, "ethereum", domain.NewWindow(ts(0), ts(30)))
	if done {
		t.Error("Expected a different asset to be unmarked")
	}
}

func TestCheckpointStore_MarkTwiceIsNoop(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()
	w := domain.NewWindow(ts(0), ts(30))

	cp := &storage.Checkpoint{AssetID: "bitcoin", Window: w}
	if err := store.MarkCompleted(ctx, cp); err != nil {
		t.Fatalf("First mark failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, cp); err != nil {
		t.Fatalf("Second mark failed: %v", err)
	}
}

func TestCheckpointStore_InvalidInput(t *testing.T) {
	store := NewCheckpointStore()
	ctx := context.Background()

	if err := store.MarkCompleted(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for nil checkpoint, got %v", err)
	}
	if err := store.MarkCompleted(ctx, &storage.Checkpoint{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty asset id, got %v", err)
	}
	if _, err := store.IsCompleted(ctx, "", domain.NewWindow(ts(0), ts(1))); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for empty asset id, got %v", err)
	}
}
