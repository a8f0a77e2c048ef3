package balance

import "math"

// QuotaDollarRate converts the consoles' raw integer quota units into
// dollars. Both supported providers use the same rate.
const QuotaDollarRate = 500000

// NormalizeQuota converts a raw quota value to dollars, rounded half-up
// to two decimal places. The input is always the raw unit count from the
// user-info API; callers must not re-normalize stored dollar amounts.
func NormalizeQuota(raw float64) float64 {
	return math.Floor(raw/QuotaDollarRate*100+0.5) / 100
}
