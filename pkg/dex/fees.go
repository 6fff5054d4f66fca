package dex

import "math/big"

// BpsDenominator is the basis-point scale: 10000 bps = 100%.
const BpsDenominator = 10000

var bpsDenom = big.NewInt(BpsDenominator)

// FeeOf computes floor(amount * feeRateBps / 10000).
// Integer arithmetic only; rounding always truncates toward zero, so repeated
// partial fills can lose at most one smallest-unit of fee per fill to dust.
func FeeOf(amount *big.Int, feeRateBps uint64) *big.Int {
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(feeRateBps))
	return fee.Quo(fee, bpsDenom)
}

// QuoteAmount converts a base-asset fill into the quote-asset amount owed:
// fillQuantity * price / 10^baseDecimals, floored.
// price is quote smallest-units per one whole base unit, so the division
// normalizes away the base token's own decimal scale.
func QuoteAmount(fillQuantity, price *big.Int, baseDecimals uint8) *big.Int {
	amount := new(big.Int).Mul(fillQuantity, price)
	return amount.Quo(amount, pow10(baseDecimals))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
