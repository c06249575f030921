// Package query is the read facade consumed by the presentation layer:
// the store's read contract plus the analytics transforms, with optional
// result caching. It never writes to the store.
package query

import (
	"context"
	"fmt"
	"time"

	"crypto-market-lab/internal/analytics"
	"crypto-market-lab/internal/domain"
	"crypto-market-lab/internal/storage"
)

// KPIWindow is the recent lookback used for metric tiles.
const KPIWindow = 60 * 24 * time.Hour

// Service exposes read queries and derived views over one store.
type Service struct {
	store      storage.ObservationStore
	cache      *TTLCache
	ttl        time.Duration
	minOverlap int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables result caching with the given TTL.
func WithCache(c *TTLCache, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithMinOverlap sets the correlation overlap threshold.
func WithMinOverlap(n int) ServiceOption {
	return func(s *Service) { s.minOverlap = n }
}

// NewService creates a read service. Without WithCache every call goes
// straight to the store.
func NewService(store storage.ObservationStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:      store,
		minOverlap: analytics.DefaultMinOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assets lists the distinct assets in the store, ordered by display name.
func (s *Service) Assets(ctx context.Context) ([]*domain.Asset, error) {
	const key = "assets"
	if v, ok := s.cached(key); ok {
		return v.([]*domain.Asset), nil
	}

	assets, err := s.store.ListAssets(ctx)
	if err != nil {
		return nil, err
	}

	s.put(key, assets)
	return assets, nil
}

// History returns one asset's derived series over a window. An empty
// window yields an empty series, not an error.
func (s *Service) History(ctx context.Context, assetID string, w domain.Window) ([]domain.SeriesPoint, error) {
	key := fmt.Sprintf("history|%s|%s", assetID, w)
	if v, ok := s.cached(key); ok {
		return v.([]domain.SeriesPoint), nil
	}

	obs, err := s.store.GetHistory(ctx, assetID, w)
	if err != nil {
		return nil, err
	}

	series := analytics.HistoryPostprocess(obs)
	s.put(key, series)
	return series, nil
}

// Snapshot returns the cross-asset aggregate view over a window.
func (s *Service) Snapshot(ctx context.Context, w domain.Window) (*domain.AggregateSnapshot, error) {
	key := fmt.Sprintf("snapshot|%s", w)
	if v, ok := s.cached(key); ok {
		return v.(*domain.AggregateSnapshot), nil
	}

	obs, err := s.store.GetHistoryAll(ctx, w)
	if err != nil {
		return nil, err
	}

	snap := analytics.BuildSnapshot(obs, w, s.minOverlap)
	s.put(key, snap)
	return snap, nil
}

// KPI is the recent-window summary for one asset's metric tile.
type KPI struct {
	AssetID    string
	Label      string
	LastPrice  float64
	MAShort    float64
	MALong     float64
	LastReturn *float64 // nil when the series has a single point
}

// KPI summarizes the last 60 days for one asset. A nil result with a nil
// error is the empty state: no observations in the recent window.
func (s *Service) KPI(ctx context.Context, assetID string, now time.Time) (*KPI, error) {
	w := domain.Lookback(now, KPIWindow)
	obs, err := s.store.GetHistory(ctx, assetID, w)
	if err != nil {
		return nil, err
	}

	series := analytics.HistoryPostprocess(obs)
	if len(series) == 0 {
		return nil, nil
	}

	last := series[len(series)-1]
	label := obs[len(obs)-1].Label()

	return &KPI{
		AssetID:    assetID,
		Label:      label,
		LastPrice:  last.Price,
		MAShort:    last.MAShort,
		MALong:     last.MALong,
		LastReturn: last.Return,
	}, nil
}

func (s *Service) cached(key string) (any, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) put(key string, v any) {
	if s.cache != nil {
		s.cache.Set(key, v, s.ttl)
	}
}
