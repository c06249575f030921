package ingestion

import (
	"encoding/json"
	"time"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
)

// NormalizeChart turns one asset's raw chart payload into observation
// candidates. Price and volume samples are paired positionally; when the
// two arrays differ in length only the overlapping prefix is emitted.
// Timestamps come from the price sample and are canonicalized to UTC;
// pairs whose timestamp cannot be parsed are dropped here. Value-level
// validation (NaN, negatives) is the store's job.
func NormalizeChart(assetID string, meta domain.AssetMeta, chart *coingecko.ChartData) []*domain.Observation {
	if chart == nil {
		return []*domain.Observation{}
	}

	n := len(chart.Prices)
	if len(chart.TotalVolumes) < n {
		n = len(chart.TotalVolumes)
	}

	obs := make([]*domain.Observation, 0, n)
	for i := 0; i < n; i++ {
		ts, ok := parseTimestamp(chart.Prices[i].Timestamp)
		if !ok {
			continue
		}
		obs = append(obs, &domain.Observation{
			AssetID:     assetID,
			Symbol:      meta.Symbol,
			DisplayName: meta.DisplayName,
			Price:       chart.Prices[i].Value,
			Volume:      chart.TotalVolumes[i].Value,
			ObservedAt:  ts,
		})
	}

	return obs
}

// parseTimestamp accepts epoch milliseconds (JSON number) or ISO-8601
// (JSON string) and returns a UTC instant at millisecond precision.
func parseTimestamp(raw json.RawMessage) (time.Time, bool) {
	if len(raw) == 0 {
		return time.Time{}, false
	}

	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		if ms <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(ms)).UTC(), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC().Truncate(time.Millisecond), true
			}
		}
	}

	return time.Time{}, false
}
