package metrics

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// TrendDirection is the sign of a trend.
type TrendDirection string

const (
	TrendUp   TrendDirection = "up"
	TrendDown TrendDirection = "down"
)

// Trend is a percentage change split into direction and magnitude.
type Trend struct {
	Direction  TrendDirection  `json:"direction"`
	Percentage decimal.Decimal `json:"percentage"`
}

// TrendPercentage returns the change from previous to current in percent,
// rounded to one decimal place. A zero baseline yields 100 when current is
// positive and 0 otherwise.
func TrendPercentage(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		if current.IsPositive() {
			return hundred
		}
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(hundred).Round(1)
}

// NewTrend computes the trend between two values.
func NewTrend(current, previous decimal.Decimal) Trend {
	pct := TrendPercentage(current, previous)
	dir := TrendUp
	if pct.IsNegative() {
		dir = TrendDown
	}
	return Trend{Direction: dir, Percentage: pct.Abs()}
}

// CountTrend computes the trend between two counts.
func CountTrend(current, previous int) Trend {
	return NewTrend(decimal.NewFromInt(int64(current)), decimal.NewFromInt(int64(previous)))
}
