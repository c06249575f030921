// Package analytics derives per-asset series and cross-asset aggregates
// from stored observations. Every transform is a pure function of its
// input batch; none touch the store.
package analytics

import (
	"math"
	"sort"

	"crypto-market-lab/internal/domain"
)

// Moving-average window sizes, in samples. At daily resolution these are
// the 7-day and 30-day averages.
const (
	MAShortWindow = 7
	MALongWindow  = 30
)

// HistoryPostprocess turns one asset's observations into an ordered
// derived series: period returns and short/long moving averages. The
// input is cleaned (NaN prices dropped) and sorted ascending first. The
// moving averages expand at the head: they never require more history
// than is available, so ma_short[0] == price[0]. The first return is
// undefined (nil), as is a return following a zero price.
func HistoryPostprocess(obs []*domain.Observation) []domain.SeriesPoint {
	clean := cleanSorted(obs)

	out := make([]domain.SeriesPoint, len(clean))
	for i, o := range clean {
		pt := domain.SeriesPoint{
			Timestamp: o.ObservedAt,
			Price:     o.Price,
			Volume:    o.Volume,
			MAShort:   trailingMean(clean, i, MAShortWindow),
			MALong:    trailingMean(clean, i, MALongWindow),
		}
		if i > 0 && clean[i-1].Price != 0 {
			r := o.Price/clean[i-1].Price - 1
			pt.Return = &r
		}
		out[i] = pt
	}

	return out
}

// cleanSorted drops rows without a usable price or timestamp and returns
// the rest sorted by timestamp ascending. The input is not mutated.
func cleanSorted(obs []*domain.Observation) []*domain.Observation {
	clean := make([]*domain.Observation, 0, len(obs))
	for _, o := range obs {
		if o == nil || o.ObservedAt.IsZero() || math.IsNaN(o.Price) {
			continue
		}
		clean = append(clean, o)
	}
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].ObservedAt.Before(clean[j].ObservedAt)
	})
	return clean
}

// trailingMean averages prices over the window ending at index i,
// shrinking the window near the head of the series.
func trailingMean(obs []*domain.Observation, i, window int) float64 {
	lo := i - window + 1
	if lo < 0 {
		lo = 0
	}
	sum := 0.0
	for j := lo; j <= i; j++ {
		sum += obs[j].Price
	}
	return sum / float64(i-lo+1)
}
