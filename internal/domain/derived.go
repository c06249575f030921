package domain

import "time"

// Derived views are computed on read from stored observations and never
// persisted. Undefined values (first return, sub-threshold correlations,
// shares with zero total volume) are nil pointers rather than sentinels.

// SeriesPoint is one element of a single-asset derived series.
type SeriesPoint struct {
	Timestamp time.Time
	Price     float64
	Volume    float64
	Return    *float64 // price[i]/price[i-1] - 1; nil at i = 0
	MAShort   float64  // 7-sample moving average, expanding at the head
	MALong    float64  // 30-sample moving average, expanding at the head
}

// IndexPoint is one element of a normalized index series (first point = 100).
type IndexPoint struct {
	Timestamp time.Time
	Index     float64
}

// IndexedSeries is one asset's price series indexed to 100 at window start.
type IndexedSeries struct {
	AssetID string
	Label   string
	Points  []IndexPoint
}

// VolumeShare is one asset's total volume over a window and its share of
// the combined total. Share is nil when the combined total is zero.
type VolumeShare struct {
	AssetID string
	Label   string
	Volume  float64
	Share   *float64 // percent, 0..100
}

// CorrelationMatrix is a symmetric matrix of pairwise Pearson correlations
// of per-asset daily returns. Values[i][j] is nil when the pair has fewer
// overlapping observations than the configured minimum.
type CorrelationMatrix struct {
	AssetIDs []string
	Labels   []string
	Values   [][]*float64
}

// AggregateSnapshot is the cross-asset view over one window.
type AggregateSnapshot struct {
	Window      Window
	Indexed     []IndexedSeries
	Volumes     []VolumeShare
	Correlation CorrelationMatrix
}
