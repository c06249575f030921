package ingestion

import (
	"context"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
)

// ChartSource fetches raw (timestamp, price) and (timestamp, volume)
// samples for one asset and window. Implemented by coingecko.Client;
// stubbed in tests.
type ChartSource interface {
	MarketChartRange(ctx context.Context, assetID string, w domain.Window) (*coingecko.ChartData, error)
}

// MetadataSource looks up the (symbol, display name) pair for one asset.
type MetadataSource interface {
	Metadata(ctx context.Context, assetID string) (domain.AssetMeta, error)
}
