package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/ledger"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/referral"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const referralCodeLen = 10

func newReferralCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:referralCodeLen]
}

// Register creates an account. An unknown referral code is ignored and
// the account is created without a referrer.
func (s *Service) Register(ctx context.Context, email, referralCode string) (*domain.Account, error) {
	email = strings.TrimSpace(email)
	referralCode = strings.TrimSpace(referralCode)

	var acc *domain.Account
	err := s.run(ctx, "register", func(q store.Queries, out *outbox) error {
		if email == "" || !strings.Contains(email, "@") {
			return domain.Invalid("email", "a valid email is required")
		}
		taken, err := q.EmailExists(ctx, email)
		if err != nil {
			return err
		}
		if taken {
			return domain.Precondition(domain.ErrEmailTaken, "email already registered")
		}

		acc = &domain.Account{Email: email, CreatedAt: s.clock()}
		var inviter *domain.Account
		if referralCode != "" {
			inviter, err = q.FindAccountByReferralCode(ctx, referralCode)
			switch {
			case errors.Is(err, domain.ErrAccountNotFound):
				inviter = nil
			case err != nil:
				return err
			default:
				acc.InvitedBy = &inviter.ID
			}
		}

		acc.ReferralCode, err = uniqueReferralCode(ctx, q)
		if err != nil {
			return err
		}
		if err := q.CreateAccount(ctx, acc); err != nil {
			if errors.Is(err, domain.ErrEmailTaken) {
				return domain.Precondition(err, "email already registered")
			}
			return fmt.Errorf("create account: %w", err)
		}

		out.add(notify.Event{Kind: notify.KindRegistration, AccountID: acc.ID, Email: acc.Email, At: acc.CreatedAt})
		if inviter != nil {
			out.add(notify.Event{Kind: notify.KindReferralSignup, AccountID: acc.ID, Email: acc.Email, Inviter: inviter.Email, At: acc.CreatedAt})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account registered", zap.Int64("account_id", acc.ID), zap.Bool("referred", acc.InvitedBy != nil))
	return acc, nil
}

func uniqueReferralCode(ctx context.Context, q store.Queries) (string, error) {
	for i := 0; i < 5; i++ {
		code := newReferralCode()
		_, err := q.FindAccountByReferralCode(ctx, code)
		if errors.Is(err, domain.ErrAccountNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("could not allocate a unique referral code")
}

// AssignReferrer sets invited_by once. It refuses self-referral, a second
// assignment, and any referrer whose ancestry already contains the account.
// Assignments are serialized through LockReferralGraph so two concurrent
// calls cannot each pass the cycle check and close a loop together.
func (s *Service) AssignReferrer(ctx context.Context, accountID, referrerID int64) (*domain.Account, error) {
	var acc *domain.Account
	err := s.run(ctx, "assign_referrer", func(q store.Queries, out *outbox) error {
		if err := q.LockReferralGraph(ctx); err != nil {
			return fmt.Errorf("lock referral graph: %w", err)
		}
		var err error
		acc, err = q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.InvitedBy != nil {
			return domain.Precondition(nil, "referrer already assigned")
		}
		inviter, err := q.GetAccount(ctx, referrerID)
		if err != nil {
			return err
		}
		cycle, err := referral.WouldCycle(ctx, q, accountID, referrerID)
		if err != nil {
			return err
		}
		if cycle {
			return domain.Precondition(domain.ErrReferralCycle, "referrer would create a cycle")
		}
		if err := q.SetInvitedBy(ctx, accountID, referrerID); err != nil {
			return err
		}
		acc.InvitedBy = &referrerID
		out.add(notify.Event{Kind: notify.KindReferralSignup, AccountID: acc.ID, Email: acc.Email, Inviter: inviter.Email, At: s.clock()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// AdjustBalance posts an operator correction as an admin entry.
func (s *Service) AdjustBalance(ctx context.Context, accountID int64, amount decimal.Decimal, comment string) (*domain.LedgerEntry, error) {
	amount = amount.Round(2)

	var entry *domain.LedgerEntry
	err := s.run(ctx, "adjust_balance", func(q store.Queries, out *outbox) error {
		if amount.IsZero() {
			return domain.Invalid("amount", "must not be zero")
		}
		if strings.TrimSpace(comment) == "" {
			comment = "manual adjustment"
		}
		acc, e, err := ledger.Post(ctx, q, ledger.Posting{
			AccountID: accountID,
			Kind:      domain.KindAdmin,
			Amount:    amount,
			Comment:   comment,
			At:        s.clock(),
		})
		if err != nil {
			return err
		}
		entry = e
		ev := notify.Event{Kind: notify.KindAdminAdjustment, AccountID: acc.ID, Email: acc.Email, Amount: e.Amount, Comment: comment, At: e.CreatedAt}
		if e.Amount.IsPositive() {
			ev.Kind = notify.KindBalanceCredit
			ev.Comment = "Admin: " + comment
		}
		out.add(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("balance adjusted", zap.Int64("account_id", accountID), zap.String("amount", entry.Amount.String()))
	return entry, nil
}

func (s *Service) Account(ctx context.Context, id int64) (*domain.Account, error) {
	var acc *domain.Account
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		acc, err = q.GetAccount(ctx, id)
		return err
	})
	return acc, err
}

// Entries lists the account's ledger newest first. limit <= 0 means all.
func (s *Service) Entries(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := s.read(ctx, func(q store.Queries) error {
		if _, err := q.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		entries, err = q.ListEntries(ctx, accountID, limit)
		return err
	})
	return entries, err
}

func (s *Service) Reconcile(ctx context.Context, accountID int64) (*ledger.Reconciliation, error) {
	var r *ledger.Reconciliation
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		r, err = ledger.Reconcile(ctx, q, accountID)
		return err
	})
	return r, err
}

// ReferralSummary counts invitees per depth and totals referral income.
type ReferralSummary struct {
	ReferralCode string
	Levels       []int
	Total        int
	Earnings     decimal.Decimal
}

func (s *Service) ReferralSummary(ctx context.Context, accountID int64) (*ReferralSummary, error) {
	var sum *ReferralSummary
	err := s.read(ctx, func(q store.Queries) error {
		acc, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		counts, err := referral.DepthCounts(ctx, q, accountID, len(s.settings.ReferralRates))
		if err != nil {
			return err
		}
		earned, err := q.SumEntries(ctx, accountID, domain.KindReferral)
		if err != nil {
			return err
		}
		total := 0
		for _, c := range counts {
			total += c
		}
		sum = &ReferralSummary{ReferralCode: acc.ReferralCode, Levels: counts, Total: total, Earnings: earned}
		return nil
	})
	return sum, err
}

func (s *Service) Levels(ctx context.Context) ([]domain.Level, error) {
	var levels []domain.Level
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		levels, err = q.ListLevels(ctx)
		return err
	})
	return levels, err
}

func (s *Service) Holdings(ctx context.Context, accountID int64) ([]domain.Holding, error) {
	var holdings []domain.Holding
	err := s.read(ctx, func(q store.Queries) error {
		if _, err := q.GetAccount(ctx, accountID); err != nil {
			return err
		}
		var err error
		holdings, err = q.ListHoldings(ctx, accountID)
		return err
	})
	return holdings, err
}

// Overview is the dashboard summary of an account.
type Overview struct {
	Account        domain.Account
	ScooterCount   int
	HighestLevel   int
	TotalEarnings  decimal.Decimal
	Investment     decimal.Decimal
	RecentEntries  []domain.LedgerEntry
	LastClaimEntry *domain.LedgerEntry
}

func (s *Service) Overview(ctx context.Context, accountID int64) (*Overview, error) {
	var ov *Overview
	err := s.read(ctx, func(q store.Queries) error {
		acc, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		holdings, err := q.ListHoldings(ctx, accountID)
		if err != nil {
			return err
		}
		earnings, err := q.SumEntries(ctx, accountID, domain.KindEarning)
		if err != nil {
			return err
		}
		recent, err := q.ListEntries(ctx, accountID, 5)
		if err != nil {
			return err
		}
		last, err := q.LatestEntry(ctx, accountID, domain.KindEarning)
		if err != nil {
			return err
		}

		ov = &Overview{Account: *acc, TotalEarnings: earnings, RecentEntries: recent, LastClaimEntry: last, Investment: decimal.Zero}
		for _, h := range holdings {
			ov.ScooterCount += h.Quantity
			if h.Level == nil {
				continue
			}
			if h.Level.Number > ov.HighestLevel {
				ov.HighestLevel = h.Level.Number
			}
			ov.Investment = ov.Investment.Add(h.Level.Price.Mul(decimal.NewFromInt(int64(h.Quantity))))
		}
		return nil
	})
	return ov, err
}
