package storage

import (
	"math"

	"crypto-market-lab/internal/domain"
)

// ValidObservation reports whether an observation candidate may cross the
// write boundary. Malformed rows are excluded from the batch; the rest of
// the batch still commits.
func ValidObservation(o *domain.Observation) bool {
	if o == nil || o.AssetID == "" {
		return false
	}
	if o.ObservedAt.IsZero() {
		return false
	}
	if math.IsNaN(o.Price) || math.IsInf(o.Price, 0) || o.Price < 0 {
		return false
	}
	if math.IsNaN(o.Volume) || math.IsInf(o.Volume, 0) || o.Volume < 0 {
		return false
	}
	return true
}
