package ingestion

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
)

// Resolver maps opaque asset identifiers to (symbol, display name) pairs.
// Lookup failures are isolated per asset and replaced by a deterministic
// fallback; only a credential failure propagates.
type Resolver struct {
	source MetadataSource
	logger zerolog.Logger
}

// NewResolver creates a new metadata resolver.
func NewResolver(source MetadataSource, logger zerolog.Logger) *Resolver {
	return &Resolver{source: source, logger: logger}
}

// Resolve returns a mapping for every requested id. It never fails for an
// individual asset: unknown ids and transient lookup errors get
// FallbackMeta. A 401 from the provider aborts resolution entirely.
func (r *Resolver) Resolve(ctx context.Context, assetIDs []string) (map[string]domain.AssetMeta, error) {
	out := make(map[string]domain.AssetMeta, len(assetIDs))

	for _, id := range assetIDs {
		meta, err := r.source.Metadata(ctx, id)
		switch {
		case err == nil:
			if meta.Symbol == "" {
				meta.Symbol = FallbackMeta(id).Symbol
			}
			if meta.DisplayName == "" {
				meta.DisplayName = FallbackMeta(id).DisplayName
			}
			out[id] = meta
		case errors.Is(err, coingecko.ErrUnauthorized):
			return nil, err
		case errors.Is(err, ctx.Err()) && ctx.Err() != nil:
			return nil, err
		default:
			r.logger.Warn().Err(err).Str("asset", id).Msg("metadata lookup failed, using fallback")
			out[id] = FallbackMeta(id)
		}
	}

	return out, nil
}

// FallbackMeta derives deterministic metadata from an asset id: the
// symbol is the first three characters uppercased (the whole id when
// shorter) and the display name is the id capitalized.
func FallbackMeta(assetID string) domain.AssetMeta {
	runes := []rune(assetID)

	n := 3
	if len(runes) < n {
		n = len(runes)
	}
	symbol := strings.ToUpper(string(runes[:n]))

	name := ""
	if len(runes) > 0 {
		name = string(unicode.ToUpper(runes[0])) + strings.ToLower(string(runes[1:]))
	}

	return domain.AssetMeta{Symbol: symbol, DisplayName: name}
}
