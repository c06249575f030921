package analytics

import (
	"math"
	"sort"

	"crypto-market-lab/internal/domain"
)

// Minimum point counts for cross-asset inclusion: a single point cannot
// show a trend, and two returns cannot support a correlation.
const (
	minPointsForIndex       = 2
	minPointsForCorrelation = 3

	// DefaultMinOverlap is the default minimum number of overlapping
	// return pairs a correlation needs before it is reported.
	DefaultMinOverlap = 10
)

// partition is one asset's slice of a joined observation batch, cleaned
// and sorted ascending.
type partition struct {
	assetID string
	label   string
	obs     []*domain.Observation
}

// partitionByAsset splits a joined batch by asset key. Each partition is
// independent; no accumulator is shared across them.
func partitionByAsset(obs []*domain.Observation) []partition {
	byAsset := make(map[string][]*domain.Observation)
	for _, o := range obs {
		if o == nil {
			continue
		}
		byAsset[o.AssetID] = append(byAsset[o.AssetID], o)
	}

	parts := make([]partition, 0, len(byAsset))
	for assetID, group := range byAsset {
		clean := cleanSorted(group)
		if len(clean) == 0 {
			continue
		}
		parts = append(parts, partition{
			assetID: assetID,
			label:   clean[len(clean)-1].Label(),
			obs:     clean,
		})
	}

	sort.Slice(parts, func(i, j int) bool {
		if parts[i].label != parts[j].label {
			return parts[i].label < parts[j].label
		}
		return parts[i].assetID < parts[j].assetID
	})

	return parts
}

// IndexTo100 normalizes each asset's price series to 100 at its first
// observation in the window. Assets with fewer than two points, or whose
// first price is zero, are excluded.
func IndexTo100(obs []*domain.Observation) []domain.IndexedSeries {
	out := []domain.IndexedSeries{}

	for _, p := range partitionByAsset(obs) {
		if len(p.obs) < minPointsForIndex {
			continue
		}
		first := p.obs[0].Price
		if first == 0 {
			continue
		}

		points := make([]domain.IndexPoint, len(p.obs))
		for i, o := range p.obs {
			points[i] = domain.IndexPoint{
				Timestamp: o.ObservedAt,
				Index:     o.Price / first * 100,
			}
		}
		out = append(out, domain.IndexedSeries{
			AssetID: p.assetID,
			Label:   p.label,
			Points:  points,
		})
	}

	return out
}

// VolumeShares sums each asset's volume over the window and computes its
// share of the combined total, in percent. NaN volumes count as zero.
// When the combined total is zero every share is nil. Output is sorted
// by volume descending.
func VolumeShares(obs []*domain.Observation) []domain.VolumeShare {
	out := []domain.VolumeShare{}
	total := 0.0

	for _, p := range partitionByAsset(obs) {
		sum := 0.0
		for _, o := range p.obs {
			if math.IsNaN(o.Volume) {
				continue
			}
			sum += o.Volume
		}
		total += sum
		out = append(out, domain.VolumeShare{
			AssetID: p.assetID,
			Label:   p.label,
			Volume:  sum,
		})
	}

	if total > 0 {
		for i := range out {
			share := out[i].Volume / total * 100
			out[i].Share = &share
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Volume > out[j].Volume
	})

	return out
}

// CorrelationOfReturns aligns per-asset return series by timestamp and
// computes pairwise Pearson correlations over pairwise-complete
// observations. Assets with fewer than three points in the window are
// excluded entirely; a pair with fewer than minOverlap overlapping
// returns is reported as nil rather than a spurious number.
func CorrelationOfReturns(obs []*domain.Observation, minOverlap int) domain.CorrelationMatrix {
	if minOverlap <= 0 {
		minOverlap = DefaultMinOverlap
	}

	type returnSeries struct {
		assetID string
		label   string
		byTime  map[int64]float64 // unix ms → return
	}

	series := []returnSeries{}
	for _, p := range partitionByAsset(obs) {
		if len(p.obs) < minPointsForCorrelation {
			continue
		}
		byTime := make(map[int64]float64, len(p.obs)-1)
		for i := 1; i < len(p.obs); i++ {
			prev := p.obs[i-1].Price
			if prev == 0 {
				continue
			}
			byTime[p.obs[i].ObservedAt.UnixMilli()] = p.obs[i].Price/prev - 1
		}
		series = append(series, returnSeries{assetID: p.assetID, label: p.label, byTime: byTime})
	}

	m := domain.CorrelationMatrix{
		AssetIDs: make([]string, len(series)),
		Labels:   make([]string, len(series)),
		Values:   make([][]*float64, len(series)),
	}
	for i, s := range series {
		m.AssetIDs[i] = s.assetID
		m.Labels[i] = s.label
		m.Values[i] = make([]*float64, len(series))
	}

	for i := range series {
		for j := i; j < len(series); j++ {
			var xs, ys []float64
			for ts, x := range series[i].byTime {
				if y, ok := series[j].byTime[ts]; ok {
					xs = append(xs, x)
					ys = append(ys, y)
				}
			}
			if len(xs) < minOverlap {
				continue
			}
			if r, ok := pearson(xs, ys); ok {
				m.Values[i][j] = &r
				if i != j {
					rr := r
					m.Values[j][i] = &rr
				}
			}
		}
	}

	return m
}

// pearson computes the Pearson correlation coefficient of two equal-length
// samples. Returns false when either sample has zero variance.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var covXY, varX, varY float64
	for i := range xs {
		dx := xs[i] - meanX
		dy := ys[i] - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0, false
	}
	return covXY / math.Sqrt(varX*varY), true
}

// BuildSnapshot bundles the three cross-asset views over one window.
func BuildSnapshot(obs []*domain.Observation, w domain.Window, minOverlap int) *domain.AggregateSnapshot {
	return &domain.AggregateSnapshot{
		Window:      w,
		Indexed:     IndexTo100(obs),
		Volumes:     VolumeShares(obs),
		Correlation: CorrelationOfReturns(obs, minOverlap),
	}
}
