package yield

import (
	"math/rand"
	"testing"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/catalog"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func holding(l domain.Level, qty int) domain.Holding {
	return domain.Holding{LevelID: l.ID, Quantity: qty, Level: &l}
}

func TestGenerateWithinBounds(t *testing.T) {
	levels := catalog.DefaultLevels()
	holdings := []domain.Holding{holding(levels[0], 3), holding(levels[4], 2)}
	invest := TotalInvestment(holdings)
	g := NewGenerator(rand.NewSource(7))

	res := g.Generate(1, time.Date(2026, 5, 4, 18, 0, 0, 0, time.UTC), holdings, invest)

	require.Len(t, res.Stats, 5)
	assert.Equal(t, "1-1", res.Stats[0].ScooterNumber)
	assert.Equal(t, "1-3", res.Stats[2].ScooterNumber)
	assert.Equal(t, "5-2", res.Stats[4].ScooterNumber)

	sumProfit := decimal.Zero
	trips := 0
	for i, s := range res.Stats {
		l := levels[0]
		if i >= 3 {
			l = levels[4]
		}
		assert.True(t, s.Profit.GreaterThanOrEqual(l.MinDailyProfit.Round(2)), "profit %s below %s", s.Profit, l.MinDailyProfit)
		assert.True(t, s.Profit.LessThanOrEqual(l.MaxDailyProfit.Round(2)), "profit %s above %s", s.Profit, l.MaxDailyProfit)

		lo := s.Profit.Mul(decimal.RequireFromString("1.79"))
		hi := s.Profit.Mul(decimal.RequireFromString("2.21"))
		assert.True(t, s.Distance.GreaterThanOrEqual(lo) && s.Distance.LessThanOrEqual(hi), "distance %s out of range", s.Distance)
		assert.GreaterOrEqual(t, s.Trips, 0)

		sumProfit = sumProfit.Add(s.Profit)
		trips += s.Trips
	}

	assert.Equal(t, trips, res.Report.NumberOfTrips)
	assert.True(t, res.Report.ProfitAmount.Sub(sumProfit).Abs().LessThanOrEqual(decimal.RequireFromString("0.05")))
	assert.True(t, res.Report.ReportDate.Equal(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)))
	assert.True(t, res.Report.ProfitPercentage.IsPositive())
}

func TestGenerateIsReproducible(t *testing.T) {
	levels := catalog.DefaultLevels()
	holdings := []domain.Holding{holding(levels[2], 4)}
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	a := NewGenerator(rand.NewSource(42)).Generate(9, day, holdings, TotalInvestment(holdings))
	b := NewGenerator(rand.NewSource(42)).Generate(9, day, holdings, TotalInvestment(holdings))
	assert.Equal(t, a, b)
}

func TestGenerateSkipsInvalidBounds(t *testing.T) {
	good := catalog.DefaultLevels()[1]
	equal := domain.Level{ID: 20, Number: 20, Price: decimal.NewFromInt(100), MinDailyProfit: decimal.NewFromInt(5), MaxDailyProfit: decimal.NewFromInt(5)}
	zero := domain.Level{ID: 21, Number: 21, Price: decimal.NewFromInt(100), MaxDailyProfit: decimal.NewFromInt(5)}
	inverted := domain.Level{ID: 22, Number: 22, Price: decimal.NewFromInt(100), MinDailyProfit: decimal.NewFromInt(9), MaxDailyProfit: decimal.NewFromInt(5)}

	holdings := []domain.Holding{holding(equal, 2), holding(zero, 1), holding(inverted, 1), holding(good, 1), {LevelID: 99, Quantity: 3}}
	res := NewGenerator(rand.NewSource(1)).Generate(1, time.Now(), holdings, decimal.NewFromInt(1000))

	require.Len(t, res.Stats, 1)
	assert.Equal(t, "2-1", res.Stats[0].ScooterNumber)
}

func TestGenerateZeroPriceAndInvestment(t *testing.T) {
	free := domain.Level{ID: 1, Number: 1, MinDailyProfit: decimal.NewFromInt(1), MaxDailyProfit: decimal.NewFromInt(2)}
	res := NewGenerator(rand.NewSource(3)).Generate(1, time.Now(), []domain.Holding{holding(free, 2)}, decimal.Zero)

	require.Len(t, res.Stats, 2)
	for _, s := range res.Stats {
		assert.True(t, s.Percentage.IsZero())
	}
	assert.True(t, res.Report.ProfitPercentage.IsZero())
	assert.True(t, res.Report.ProfitAmount.IsPositive())
}

func TestGenerateNoHoldings(t *testing.T) {
	res := NewGenerator(rand.NewSource(3)).Generate(1, time.Now(), nil, decimal.Zero)
	assert.Empty(t, res.Stats)
	assert.True(t, res.Report.ProfitAmount.IsZero())
	assert.Zero(t, res.Report.NumberOfTrips)
}

func TestTotalInvestment(t *testing.T) {
	levels := catalog.DefaultLevels()
	holdings := []domain.Holding{holding(levels[0], 2), holding(levels[1], 1), {Quantity: 5}}
	want := levels[0].Price.Mul(decimal.NewFromInt(2)).Add(levels[1].Price)
	assert.True(t, want.Equal(TotalInvestment(holdings)))
}
