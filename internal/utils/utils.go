package utils

import (
	"math/big"
	"strings"
)

// maxFeeDecimals covers the 18 decimals used by most ERC-20 tokens.
const maxFeeDecimals = 18

// PrizePool returns fee × players as a decimal string. The fee is whatever
// the room meta holds; when it is not a plain decimal the pool is "".
func PrizePool(fee string, players int) string {
	fee = strings.TrimSpace(fee)
	if fee == "" || strings.ContainsAny(fee, "/eE") {
		return ""
	}

	r, ok := new(big.Rat).SetString(fee)
	if !ok || r.Sign() < 0 {
		return ""
	}
	r.Mul(r, new(big.Rat).SetInt64(int64(players)))

	return trimDecimal(r.FloatString(maxFeeDecimals))
}

func trimDecimal(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
