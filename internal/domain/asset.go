package domain

import "time"

// Asset is a tradable instrument identified by a stable provider-assigned id.
// Symbol and DisplayName may be refreshed on resolution; ID never changes.
type Asset struct {
	ID          string // provider-assigned identifier, e.g. "bitcoin"
	Symbol      string // short ticker, uppercase, e.g. "BTC"
	DisplayName string // human-readable name, e.g. "Bitcoin"
}

// AssetMeta is the resolved (symbol, display name) pair for one asset id.
type AssetMeta struct {
	Symbol      string
	DisplayName string
}

// Observation is one timestamped price/volume sample for one asset.
// The pair (AssetID, ObservedAt) is unique in the store; observations
// are immutable once stored.
type Observation struct {
	AssetID     string
	Symbol      string
	DisplayName string
	Price       float64   // non-negative; NaN marks a malformed sample
	Volume      float64   // traded volume over the sample's implicit interval
	ObservedAt  time.Time // UTC instant, millisecond precision
}

// Label returns the display name, falling back to the asset id when the
// name is empty.
func (o *Observation) Label() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.AssetID
}
