package events

import (
	"math/big"
	"strconv"
	"strings"

	"creditguild/crypto"
)

func normalizeAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func address(raw [20]byte) string {
	return crypto.FormatAddress(raw)
}

func loanID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func timestamp(ts uint64) string {
	return strconv.FormatUint(ts, 10)
}
