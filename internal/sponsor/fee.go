package sponsor

import "github.com/core-coin/adsponsor/pkg/checked"

// FeeRateDivisor turns the transfer amount into the proportional part of
// the fee: 1/1000, i.e. 0.1%.
const FeeRateDivisor = 1000

// CalculateFee returns baseFee + amount/1000. The division truncates toward
// zero, so transfers below 1000 units only pay the base fee. Keep it that way:
// requests in flight were quoted with this formula.
func CalculateFee(baseFee, amount uint64) (uint64, error) {
	return checked.Add(baseFee, amount/FeeRateDivisor)
}
