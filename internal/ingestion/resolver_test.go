package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"crypto-market-lab/internal/coingecko"
	"crypto-market-lab/internal/domain"
)

// stubMetadata serves canned metadata and errors per asset id.
type stubMetadata struct {
	meta  map[string]domain.AssetMeta
	errs  map[string]error
	calls int
}

func (s *stubMetadata) Metadata(ctx context.Context, assetID string) (domain.AssetMeta, error) {
	s.calls++
	if err, ok := s.errs[assetID]; ok {
		return domain.AssetMeta{}, err
	}
	if m, ok := s.meta[assetID]; ok {
		return m, nil
	}
	return domain.AssetMeta{}, coingecko.ErrAssetNotFound
}

func TestResolver_Resolve(t *testing.T) {
	src := &stubMetadata{
		meta: map[string]domain.AssetMeta{
			"bitcoin": {Symbol: "BTC", DisplayName: "Bitcoin"},
		},
	}
	r := NewResolver(src, zerolog.Nop())

	out, err := r.Resolve(context.Background(), []string{"bitcoin", "no-such-coin"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(out))
	}

	if out["bitcoin"].Symbol != "BTC" || out["bitcoin"].DisplayName != "Bitcoin" {
		t.Errorf("Unexpected bitcoin metadata: %+v", out["bitcoin"])
	}

	// Unknown ids get the deterministic fallback.
	fb := out["no-such-coin"]
	if fb.Symbol != "NO-" {
		t.Errorf("Expected fallback symbol NO-, got %q", fb.Symbol)
	}
	if fb.DisplayName != "No-such-coin" {
		t.Errorf("Expected fallback display name No-such-coin, got %q", fb.DisplayName)
	}
}

func TestResolver_UnauthorizedAborts(t *testing.T) {
	src := &stubMetadata{
		errs: map[string]error{"bitcoin": coingecko.ErrUnauthorized},
	}
	r := NewResolver(src, zerolog.Nop())

	_, err := r.Resolve(context.Background(), []string{"bitcoin", "ethereum"})
	if !errors.Is(err, coingecko.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got %v", err)
	}
	if src.calls != 1 {
		t.Errorf("Expected resolution to stop at the credential failure, got %d calls", src.calls)
	}
}

func TestResolver_FillsEmptyFields(t *testing.T) {
	src := &stubMetadata{
		meta: map[string]domain.AssetMeta{
			"solana": {Symbol: "SOL"}, // provider returned no name
		},
	}
	r := NewResolver(src, zerolog.Nop())

	out, err := r.Resolve(context.Background(), []string{"solana"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if out["solana"].Symbol != "SOL" {
		t.Errorf("Expected provider symbol kept, got %q", out["solana"].Symbol)
	}
	if out["solana"].DisplayName != "Solana" {
		t.Errorf("Expected fallback display name Solana, got %q", out["solana"].DisplayName)
	}
}

func TestFallbackMeta(t *testing.T) {
	cases := []struct {
		id      string
		symbol  string
		display string
	}{
		{"bitcoin", "BIT", "Bitcoin"},
		{"bnb", "BNB", "Bnb"},
		{"ox", "OX", "Ox"},
		{"", "", ""},
		{"USD-Coin", "USD", "Usd-coin"},
	}

	for _, tc := range cases {
		got := FallbackMeta(tc.id)
		if got.Symbol != tc.symbol {
			t.Errorf("FallbackMeta(%q).Symbol: expected %q, got %q", tc.id, tc.symbol, got.Symbol)
		}
		if got.DisplayName != tc.display {
			t.Errorf("FallbackMeta(%q).DisplayName: expected %q, got %q", tc.id, tc.display, got.DisplayName)
		}
	}
}
