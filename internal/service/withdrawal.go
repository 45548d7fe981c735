package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/ledger"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// RequestWithdrawal reserves amount from the balance and records a pending
// request for amount minus the commission. The reservation is a withdraw
// ledger entry so the balance stays equal to the ledger sum.
func (s *Service) RequestWithdrawal(ctx context.Context, accountID int64, amount decimal.Decimal, wallet string) (*domain.WithdrawalRequest, error) {
	wallet = strings.TrimSpace(wallet)
	amount = amount.Round(2)

	var req *domain.WithdrawalRequest
	err := s.run(ctx, "withdrawal_request", func(q store.Queries, out *outbox) error {
		if !amount.IsPositive() {
			return domain.Invalid("amount", "must be positive")
		}
		if wallet == "" {
			return domain.Invalid("wallet_address", "is required")
		}

		acc, err := q.LockAccount(ctx, accountID)
		if err != nil {
			return err
		}
		commission := s.settings.WithdrawalCommission
		switch {
		case acc.Balance.LessThan(amount):
			return domain.Precondition(domain.ErrInsufficientFunds, "insufficient balance")
		case amount.LessThanOrEqual(commission):
			return domain.Precondition(nil, fmt.Sprintf("amount must exceed the commission of %s", commission.StringFixed(2)))
		case amount.LessThan(s.settings.MinWithdrawal):
			return domain.Precondition(nil, fmt.Sprintf("minimum withdrawal is %s", s.settings.MinWithdrawal.StringFixed(2)))
		}

		now := s.clock()
		last, err := q.LatestWithdrawal(ctx, accountID)
		if err != nil {
			return err
		}
		if last != nil {
			if elapsed := now.Sub(last.CreatedAt); elapsed < s.settings.WithdrawalCooldown {
				return &domain.CooldownError{Action: "withdrawal", Remaining: s.settings.WithdrawalCooldown - elapsed}
			}
		}

		if _, _, err := ledger.Post(ctx, q, ledger.Posting{
			AccountID: accountID,
			Kind:      domain.KindWithdraw,
			Amount:    amount.Neg(),
			Comment:   "withdrawal request",
			At:        now,
		}); err != nil {
			return err
		}

		req = &domain.WithdrawalRequest{
			AccountID:     accountID,
			Amount:        amount.Sub(commission),
			Commission:    commission,
			WalletAddress: wallet,
			Status:        domain.StatusPending,
			CreatedAt:     now,
		}
		if err := q.CreateWithdrawal(ctx, req); err != nil {
			return fmt.Errorf("create withdrawal: %w", err)
		}
		out.add(notify.Event{
			Kind:      notify.KindWithdrawalRequested,
			AccountID: acc.ID,
			Email:     acc.Email,
			Amount:    req.Amount,
			Wallet:    wallet,
			At:        now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal requested",
		zap.Int64("request_id", req.ID),
		zap.Int64("account_id", accountID),
		zap.String("amount", req.Amount.String()),
	)
	return req, nil
}

// TransitionWithdrawal approves or rejects a pending request. A request that
// is already terminal is returned unchanged.
//
// The gross amount already left the balance as a withdraw entry when the
// request was made, so approval only records the status and writes no
// ledger entry. Rejection refunds the gross amount as a deposit entry.
// Either way the balance stays equal to the ledger sum.
func (s *Service) TransitionWithdrawal(ctx context.Context, requestID int64, status domain.RequestStatus) (*domain.WithdrawalRequest, error) {
	var req *domain.WithdrawalRequest
	err := s.run(ctx, "withdrawal_transition", func(q store.Queries, out *outbox) error {
		if !status.Terminal() {
			return domain.Invalid("status", "must be approved or rejected")
		}
		var err error
		req, err = q.LockWithdrawal(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return nil
		}

		now := s.clock()
		acc, err := q.GetAccount(ctx, req.AccountID)
		if err != nil {
			return &domain.IntegrityError{Reason: fmt.Sprintf("withdrawal %d owner", req.ID), Err: err}
		}

		if status == domain.StatusRejected {
			if _, _, err := ledger.Post(ctx, q, ledger.Posting{
				AccountID: req.AccountID,
				Kind:      domain.KindDeposit,
				Amount:    req.Gross(),
				Comment:   "withdrawal rejected: refund",
				At:        now,
			}); err != nil {
				return err
			}
		}
		if err := q.SetWithdrawalStatus(ctx, req.ID, status, now); err != nil {
			return fmt.Errorf("set withdrawal status: %w", err)
		}
		req.Status = status
		req.ProcessedAt = &now

		e := notify.Event{AccountID: acc.ID, Email: acc.Email, Amount: req.Amount, Wallet: req.WalletAddress, Status: string(status), At: now}
		if status == domain.StatusApproved {
			e.Kind = notify.KindWithdrawalConfirmed
		} else {
			e.Kind = notify.KindWithdrawalRejected
			e.Amount = req.Gross()
		}
		out.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("withdrawal transitioned", zap.Int64("request_id", requestID), zap.String("status", string(req.Status)))
	return req, nil
}

func (s *Service) Withdrawals(ctx context.Context, status domain.RequestStatus) ([]domain.WithdrawalRequest, error) {
	var reqs []domain.WithdrawalRequest
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		reqs, err = q.ListWithdrawals(ctx, status)
		return err
	})
	return reqs, err
}
