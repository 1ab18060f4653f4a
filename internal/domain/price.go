package domain

import (
	"strings"

	"github.com/holiman/uint256"
)

var weiPerUnit = new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(PRICE_DECIMALS))

// FormatPrice renders a wei amount as decimal text in whole units.
// Extra precision is kept as-is and trailing zeros are trimmed: 1500000000000000000 -> "1.5".
func FormatPrice(wei *uint256.Int) string {
	if wei == nil || wei.IsZero() {
		return "0"
	}

	whole, frac := new(uint256.Int), new(uint256.Int)
	whole.DivMod(wei, weiPerUnit, frac)
	if frac.IsZero() {
		return whole.Dec()
	}

	fracText := frac.Dec()
	fracText = strings.Repeat("0", PRICE_DECIMALS-len(fracText)) + fracText
	fracText = strings.TrimRight(fracText, "0")

	return whole.Dec() + "." + fracText
}

// MulQuantity returns price * quantity; negative quantities count as zero
func MulQuantity(price *uint256.Int, quantity int64) *uint256.Int {
	if price == nil || quantity <= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Mul(price, uint256.NewInt(uint64(quantity)))
}
