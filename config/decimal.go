package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WadDecimals is the number of fractional digits carried by fixed-point values.
const WadDecimals = 18

var wad = new(big.Int).Exp(big.NewInt(10), big.NewInt(WadDecimals), nil)

// ParseWad converts a non-negative decimal string into a 1e18 scaled integer.
// Underscores are accepted as digit separators. More than 18 fractional
// digits is an error rather than a silent truncation.
func ParseWad(raw string) (*big.Int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), "_", "")
	if cleaned == "" {
		return nil, fmt.Errorf("empty decimal")
	}
	whole, frac, hasPoint := strings.Cut(cleaned, ".")
	if hasPoint && frac == "" {
		return nil, fmt.Errorf("decimal %q has a trailing point", raw)
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return nil, fmt.Errorf("invalid decimal %q", raw)
	}
	if len(frac) > WadDecimals {
		return nil, fmt.Errorf("decimal %q has more than %d fractional digits", raw, WadDecimals)
	}
	if whole == "" {
		cleaned = "0" + cleaned
	}
	value, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid decimal %q: %w", raw, err)
	}
	return value.Shift(WadDecimals).BigInt(), nil
}

// FormatWad renders a 1e18 scaled integer as a trimmed decimal string.
func FormatWad(value *big.Int) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -WadDecimals).String()
}

func parseOptionalWad(raw string, fallback *big.Int) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return new(big.Int).Set(fallback), nil
	}
	return ParseWad(raw)
}

// ParseSeconds parses a Go duration into whole seconds.
func ParseSeconds(raw string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	if d%time.Second != 0 {
		return 0, fmt.Errorf("duration %q must be a whole number of seconds", raw)
	}
	return uint64(d / time.Second), nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
