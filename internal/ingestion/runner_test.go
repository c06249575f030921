package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
	"crypto-market-lab/internal/storage/memory"
)

// stubChart serves one canned chart per asset id and counts fetches.
type stubChart struct {
	charts map[string]*coingecko.ChartData
	errs   map[string]error
	calls  map[string]int
}

func newStubChart() *stubChart {
	return &stubChart{
		charts: make(map[string]*coingecko.ChartData),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (s *stubChart) MarketChartRange(ctx context.Context, assetID string, w domain.Window) (*coingecko.ChartData, error) {
	s.calls[assetID]++
	if err, ok := s.errs[assetID]; ok {
		return nil, err
	}
	if c, ok := s.charts[assetID]; ok {
		return c, nil
	}
	return &coingecko.ChartData{}, nil
}

// addDays fills an asset's chart with n daily samples starting at base.
func (s *stubChart) addDays(assetID string, base time.Time, n int, price, volume float64) {
	chart := &coingecko.ChartData{}
	for i := 0; i < n; i++ {
		ts := json.RawMessage(fmt.Sprintf("%d", base.AddDate(0, 0, i).UnixMilli()))
		chart.Prices = append(chart.Prices, coingecko.RawSample{Timestamp: ts, Value: price})
		chart.TotalVolumes = append(chart.TotalVolumes, coingecko.RawSample{Timestamp: ts, Value: volume})
	}
	s.charts[assetID] = chart
}

func testRunner(src *stubChart, store *memory.ObservationStore, cps storage.CheckpointStore) *Runner {
	resolver := NewResolver(&stubMetadata{
		meta: map[string]domain.AssetMeta{
			"bitcoin":  {Symbol: "BTC", DisplayName: "Bitcoin"},
			"ethereum": {Symbol: "ETH", DisplayName: "Ethereum"},
		},
	}, zerolog.Nop())

	return NewRunner(RunnerOptions{
		Source:      src,
		Resolver:    resolver,
		Store:       store,
		Checkpoints: cps,
		Logger:      zerolog.Nop(),
	})
}

func runWindow() domain.Window {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.NewWindow(start, start.AddDate(0, 0, 30))
}

func TestRunner_Run(t *testing.T) {
	src := newStubChart()
	src.addDays("bitcoin", runWindow().Start, 5, 42000, 1e9)
	src.addDays("ethereum", runWindow().Start, 3, 2200, 5e8)

	store := memory.NewObservationStore()
	runner := testRunner(src, store, memory.NewCheckpointStore())

	report, err := runner.Run(context.Background(), []string{"bitcoin", "ethereum"}, runWindow())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Fetched != 8 {
		t.Errorf("Expected 8 fetched, got %d", report.Fetched)
	}
	if report.Inserted != 8 {
		t.Errorf("Expected 8 inserted, got %d", report.Inserted)
	}
	if len(report.Succeeded) != 2 || len(report.Skipped) != 0 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if store.Len() != 8 {
		t.Errorf("Expected 8 stored observations, got %d", store.Len())
	}
}

func TestRunner_RerunIsIdempotent(t *testing.T) {
	src := newStubChart()
	src.addDays("bitcoin", runWindow().Start, 5, 42000, 1e9)

	store := memory.NewObservationStore()
	// No checkpoint store: the second run refetches and the store
	// absorbs every duplicate.
	runner := testRunner(src, store, nil)

	ctx := context.Background()
	if _, err := runner.Run(ctx, []string{"bitcoin"}, runWindow()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	report, err := runner.Run(ctx, []string{"bitcoin"}, runWindow())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if report.Fetched != 5 {
		t.Errorf("Expected 5 refetched, got %d", report.Fetched)
	}
	if report.Inserted != 0 {
		t.Errorf("Expected 0 new rows on rerun, got %d", report.Inserted)
	}
	if store.Len() != 5 {
		t.Errorf("Expected 5 stored observations after rerun, got %d", store.Len())
	}
}

func TestRunner_CheckpointResume(t *testing.T) {
	src := newStubChart()
	src.addDays("bitcoin", runWindow().Start, 5, 42000, 1e9)

	store := memory.NewObservationStore()
	cps := memory.NewCheckpointStore()
	runner := testRunner(src, store, cps)

	ctx := context.Background()
	if _, err := runner.Run(ctx, []string{"bitcoin"}, runWindow()); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	report, err := runner.Run(ctx, []string{"bitcoin"}, runWindow())
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	if len(report.Resumed) != 1 || report.Resumed[0] != "bitcoin" {
		t.Errorf("Expected bitcoin resumed, got %+v", report.Resumed)
	}
	if src.calls["bitcoin"] != 1 {
		t.Errorf("Expected no refetch for a checkpointed window, got %d calls", src.calls["bitcoin"])
	}
}

func TestRunner_AssetFailureIsIsolated(t *testing.T) {
	src := newStubChart()
	src.errs["bitcoin"] = &coingecko.StatusError{Code: 404, Body: "coin not found"}
	src.addDays("ethereum", runWindow().Start, 3, 2200, 5e8)

	store := memory.NewObservationStore()
	runner := testRunner(src, store, nil)

	report, err := runner.Run(context.Background(), []string{"bitcoin", "ethereum"}, runWindow())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0] != "bitcoin" {
		t.Errorf("Expected bitcoin skipped, got %+v", report.Skipped)
	}
	if len(report.Succeeded) != 1 || report.Succeeded[0] != "ethereum" {
		t.Errorf("Expected ethereum ingested, got %+v", report.Succeeded)
	}
	if store.Len() != 3 {
		t.Errorf("Expected 3 stored observations, got %d", store.Len())
	}
}

func TestRunner_UnauthorizedAbortsRun(t *testing.T) {
	src := newStubChart()
	src.errs["bitcoin"] = &coingecko.StatusError{Code: 401, Body: "bad key"}

	runner := testRunner(src, memory.NewObservationStore(), nil)

	_, err := runner.Run(context.Background(), []string{"bitcoin", "ethereum"}, runWindow())
	if !errors.Is(err, coingecko.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if src.calls["ethereum"] != 0 {
		t.Errorf("Expected run aborted before ethereum, got %d calls", src.calls["ethereum"])
	}
}

func TestRunner_InvalidWindow(t *testing.T) {
	runner := testRunner(newStubChart(), memory.NewObservationStore(), nil)

	w := domain.NewWindow(runWindow().End, runWindow().Start)
	if _, err := runner.Run(context.Background(), []string{"bitcoin"}, w); err == nil {
		t.Fatal("Expected error for inverted window")
	}
}

func TestRunner_NoAssets(t *testing.T) {
	runner := testRunner(newStubChart(), memory.NewObservationStore(), nil)

	report, err := runner.Run(context.Background(), nil, runWindow())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Fetched != 0 || report.Inserted != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}
