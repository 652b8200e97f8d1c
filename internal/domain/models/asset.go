package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssetType distinguishes tradable instrument classes.
type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

// Asset is a tracked instrument. Ticker is the canonical, upper-case symbol.
type Asset struct {
	ID            uuid.UUID `json:"id"`
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name"`
	Type          AssetType `json:"type"`
	Exchange      string    `json:"exchange,omitempty"`
	DisplayTicker string    `json:"display_ticker,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var assetNamespace = uuid.MustParse("6f1c2a4e-9d3b-4c1e-8a57-2f0e4b6d9c11")

// AssetIDFor derives a stable id from a canonical ticker so that independent
// registrations of the same ticker agree on the id.
func AssetIDFor(ticker string) uuid.UUID {
	return uuid.NewSHA1(assetNamespace, []byte(NormalizeTicker(ticker)))
}

// SourceIDFor derives a stable sentiment source id from its name.
func SourceIDFor(name string) uuid.UUID {
	return uuid.NewSHA1(assetNamespace, []byte("source:"+strings.ToLower(strings.TrimSpace(name))))
}

// NormalizeTicker trims and upper-cases a raw ticker.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormalizeTickers normalizes a list and drops blanks and duplicates, keeping order.
func NormalizeTickers(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		t := NormalizeTicker(r)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ResolveTicker maps a raw ticker through aliases (keys and values compared
// case-insensitively). It returns the canonical ticker and the display form:
// the raw ticker when an alias applied, otherwise the canonical one.
func ResolveTicker(raw string, aliases map[string]string) (canonical, display string) {
	normalized := NormalizeTicker(raw)
	canonical = normalized
	for alias, target := range aliases {
		if NormalizeTicker(alias) == normalized {
			canonical = NormalizeTicker(target)
			break
		}
	}
	if canonical != normalized {
		return canonical, normalized
	}
	return canonical, canonical
}

// InferAssetType guesses the asset type from a canonical ticker.
func InferAssetType(ticker string) AssetType {
	if strings.HasSuffix(ticker, "-USD") || strings.HasSuffix(ticker, "USDT") {
		return AssetCrypto
	}
	return AssetStock
}
