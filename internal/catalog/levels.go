// Package catalog holds the static investment tier table.
package catalog

import (
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

var tiers = []struct {
	number int
	price  string
	income string
}{
	{1, "275.00", "3.50"},
	{2, "650.00", "13.00"},
	{3, "1500.00", "30.00"},
	{4, "3000.00", "60.00"},
	{5, "5000.00", "75.00"},
	{6, "10000.00", "150.00"},
	{7, "25000.00", "375.00"},
	{8, "50000.00", "750.00"},
	{9, "100000.00", "1500.00"},
}

var (
	minFactor = decimal.RequireFromString("0.8")
	maxFactor = decimal.RequireFromString("1.2")
)

// DefaultLevels returns the seed tiers. Daily profit bounds are set at 80%
// and 120% of the expected income.
func DefaultLevels() []domain.Level {
	levels := make([]domain.Level, 0, len(tiers))
	for i, t := range tiers {
		income := decimal.RequireFromString(t.income)
		levels = append(levels, domain.Level{
			ID:             int64(i + 1),
			Number:         t.number,
			Price:          decimal.RequireFromString(t.price),
			Income:         income,
			MinDailyProfit: income.Mul(minFactor).Round(2),
			MaxDailyProfit: income.Mul(maxFactor).Round(2),
		})
	}
	return levels
}

// ROIDays is the number of days of expected income needed to recover the price.
func ROIDays(l domain.Level) (int64, bool) {
	if !l.Income.IsPositive() {
		return 0, false
	}
	return l.Price.Div(l.Income).Round(0).IntPart(), true
}
