// Package yield produces the synthetic per-scooter statistics and the daily
// report that back a claim.
package yield

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Result is one day of generated statistics for an account.
type Result struct {
	Stats  []domain.ScooterStat
	Report domain.DailyReport
}

// Generator draws random profits inside each level's bounds.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator uses src for every draw. Pass a fixed source for reproducible output.
func NewGenerator(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{rnd: rand.New(src)}
}

func (g *Generator) uniform(lo, hi float64) decimal.Decimal {
	return decimal.NewFromFloat(lo + (hi-lo)*g.rnd.Float64())
}

// usable reports whether the level's profit bounds can be sampled.
func usable(l *domain.Level) bool {
	if l == nil {
		return false
	}
	return l.MinDailyProfit.IsPositive() && l.MaxDailyProfit.IsPositive() && l.MinDailyProfit.LessThan(l.MaxDailyProfit)
}

// Generate samples one stat per owned scooter instance. Holdings whose
// level is missing or has unusable bounds are skipped. Totals are summed
// before rounding; every persisted value is rounded to two places.
func (g *Generator) Generate(accountID int64, date time.Time, holdings []domain.Holding, totalInvestment decimal.Decimal) Result {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := domain.Day(date)
	var (
		stats    []domain.ScooterStat
		distance = decimal.Zero
		profit   = decimal.Zero
		trips    int
	)

	for _, h := range holdings {
		l := h.Level
		if !usable(l) {
			continue
		}
		lo, _ := l.MinDailyProfit.Float64()
		hi, _ := l.MaxDailyProfit.Float64()

		for i := 1; i <= h.Quantity; i++ {
			p := g.uniform(lo, hi)
			d := p.Mul(g.uniform(1.8, 2.2))
			t := int(d.Div(g.uniform(2.5, 3.5)).IntPart())

			pct := decimal.Zero
			if l.Price.IsPositive() {
				pct = p.Div(l.Price).Mul(hundred)
			}

			stats = append(stats, domain.ScooterStat{
				AccountID:     accountID,
				ReportDate:    day,
				ScooterNumber: fmt.Sprintf("%d-%d", l.Number, i),
				Distance:      d.Round(2),
				Trips:         t,
				Profit:        p.Round(2),
				Percentage:    pct.Round(2),
			})

			distance = distance.Add(d)
			profit = profit.Add(p)
			trips += t
		}
	}

	pct := decimal.Zero
	if totalInvestment.IsPositive() {
		pct = profit.Div(totalInvestment).Mul(hundred)
	}

	return Result{
		Stats: stats,
		Report: domain.DailyReport{
			AccountID:        accountID,
			ReportDate:       day,
			TotalDistance:    distance.Round(2),
			ProfitPercentage: pct.Round(2),
			ProfitAmount:     profit.Round(2),
			NumberOfTrips:    trips,
		},
	}
}

// TotalInvestment is Σ price·quantity over holdings with a known level.
func TotalInvestment(holdings []domain.Holding) decimal.Decimal {
	total := decimal.Zero
	for _, h := range holdings {
		if h.Level == nil {
			continue
		}
		total = total.Add(h.Level.Price.Mul(decimal.NewFromInt(int64(h.Quantity))))
	}
	return total
}
