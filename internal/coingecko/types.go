package coingecko

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
)

// Sentinel errors for the two failure classes callers branch on.
var (
	// ErrUnauthorized means the API key is missing or rejected. Fatal,
	// never retried.
	ErrUnauthorized = errors.New("coingecko: unauthorized (check COINGECKO_API_KEY)")

	// ErrAssetNotFound means the provider does not know the asset id.
	ErrAssetNotFound = errors.New("coingecko: asset not found")
)

// StatusError is a non-2xx provider response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko: HTTP %d: %s", e.Code, e.Body)
}

// Is maps status codes onto the sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Code == http.StatusUnauthorized
	case ErrAssetNotFound:
		return e.Code == http.StatusNotFound
	}
	return false
}

// RawSample is one [timestamp, value] pair from a chart payload. The
// timestamp is kept raw because the provider emits either epoch
// milliseconds or an ISO-8601 string; canonicalization happens in the
// normalizer. A null or non-numeric value decodes to NaN and is rejected
// at the store write boundary.
type RawSample struct {
	Timestamp json.RawMessage
	Value     float64
}

// UnmarshalJSON decodes a two-element [timestamp, value] array.
func (s *RawSample) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("chart sample: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("chart sample: expected [timestamp, value], got %d elements", len(pair))
	}
	s.Timestamp = pair[0]
	// Unmarshalling null into a float64 is a no-op, not an error, so
	// start from NaN: only an actual number overwrites it.
	s.Value = math.NaN()
	_ = json.Unmarshal(pair[1], &s.Value)
	return nil
}

// ChartData is the raw market_chart/range payload for one asset: aligned
// arrays of price and volume samples.
type ChartData struct {
	Prices       []RawSample `json:"prices"`
	TotalVolumes []RawSample `json:"total_volumes"`
}

// Points returns the number of price samples fetched.
func (d *ChartData) Points() int {
	if d == nil {
		return 0
	}
	return len(d.Prices)
}

// coinMeta is the subset of the /coins/{id} payload the resolver needs.
type coinMeta struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}
