package pricing

import (
	"fmt"
	"math"
)

// All amounts inside the engine are int64 cents. Dollars-as-float exists only
// on the coupon validation wire, converted at the boundary.

func FormatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

func CentsToDollars(cents int64) float64 {
	return float64(cents) / 100
}

func DollarsToCents(dollars float64) int64 {
	return int64(math.Round(dollars * 100))
}
