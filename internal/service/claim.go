package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/ledger"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/punchamoorthee/scooterledger/internal/yield"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type ClaimStatus string

const (
	ClaimStarted  ClaimStatus = "started"
	ClaimCredited ClaimStatus = "credited"
)

// ClaimResult describes a successful claim. Report and Stats are set only
// when Status is ClaimCredited.
type ClaimResult struct {
	Status  ClaimStatus
	Entry   domain.LedgerEntry
	Balance decimal.Decimal
	Report  *domain.DailyReport
	Stats   []domain.ScooterStat
}

// ClaimDailyYield credits the account with a freshly generated day of
// scooter income. The first claim only starts the clock; later claims are
// allowed once the cool-down since the last earning entry has elapsed.
func (s *Service) ClaimDailyYield(ctx context.Context, accountID int64) (*ClaimResult, error) {
	var res *ClaimResult
	err := s.run(ctx, "claim", func(q store.Queries, out *outbox) error {
		acc, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		holdings, err := q.ListHoldings(ctx, accountID)
		if err != nil {
			return err
		}
		if len(holdings) == 0 {
			return domain.Precondition(nil, "no active scooters")
		}

		now := s.clock()
		last, err := q.LatestEntry(ctx, accountID, domain.KindEarning)
		if err != nil {
			return err
		}
		if last == nil {
			_, entry, err := ledger.Post(ctx, q, ledger.Posting{
				AccountID: accountID,
				Kind:      domain.KindEarning,
				Amount:    decimal.Zero,
				Comment:   "start",
				At:        now,
			})
			if err != nil {
				return err
			}
			res = &ClaimResult{Status: ClaimStarted, Entry: *entry, Balance: acc.Balance}
			out.add(notify.Event{Kind: notify.KindClaimStarted, AccountID: acc.ID, Email: acc.Email, At: now})
			return nil
		}

		if elapsed := now.Sub(last.CreatedAt); elapsed < s.settings.ClaimCooldown {
			return &domain.CooldownError{Action: "claim", Remaining: s.settings.ClaimCooldown - elapsed}
		}

		gen := s.gen.Generate(accountID, now, holdings, yield.TotalInvestment(holdings))
		if err := q.ReplaceDailyYield(ctx, gen.Report, gen.Stats); err != nil {
			return fmt.Errorf("store daily yield: %w", err)
		}
		acc, entry, err := ledger.Post(ctx, q, ledger.Posting{
			AccountID: accountID,
			Kind:      domain.KindEarning,
			Amount:    gen.Report.ProfitAmount,
			Comment:   fmt.Sprintf("income for %d trips", gen.Report.NumberOfTrips),
			At:        now,
		})
		if err != nil {
			return err
		}

		report := gen.Report
		res = &ClaimResult{Status: ClaimCredited, Entry: *entry, Balance: acc.Balance, Report: &report, Stats: gen.Stats}
		out.add(notify.Event{
			Kind:      notify.KindYieldClaimed,
			AccountID: acc.ID,
			Email:     acc.Email,
			Amount:    entry.Amount,
			Comment:   "daily_profit",
			At:        now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("claim processed",
		zap.Int64("account_id", accountID),
		zap.String("status", string(res.Status)),
		zap.String("amount", res.Entry.Amount.String()),
	)
	return res, nil
}

// DailyReport returns the stored report and per-scooter stats for a date.
func (s *Service) DailyReport(ctx context.Context, accountID int64, date string) (*domain.DailyReport, []domain.ScooterStat, error) {
	day, err := s.parseDate(date)
	if err != nil {
		return nil, nil, err
	}
	var (
		report *domain.DailyReport
		stats  []domain.ScooterStat
	)
	err = s.read(ctx, func(q store.Queries) error {
		var err error
		report, err = q.GetDailyReport(ctx, accountID, day)
		if err != nil {
			return err
		}
		stats, err = q.ListScooterStats(ctx, accountID, day)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return report, stats, nil
}

// DailyReports lists the account's reports, newest first.
func (s *Service) DailyReports(ctx context.Context, accountID int64) ([]domain.DailyReport, error) {
	var reports []domain.DailyReport
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		reports, err = q.ListDailyReports(ctx, accountID)
		return err
	})
	return reports, err
}
