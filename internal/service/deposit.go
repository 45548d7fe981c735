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

// RequestDeposit records an incoming transfer for operator review.
func (s *Service) RequestDeposit(ctx context.Context, accountID int64, amount decimal.Decimal, wallet, txHash string) (*domain.DepositRequest, error) {
	wallet = strings.TrimSpace(wallet)
	amount = amount.Round(2)

	var req *domain.DepositRequest
	err := s.run(ctx, "deposit_request", func(q store.Queries, out *outbox) error {
		if !amount.IsPositive() {
			return domain.Invalid("amount", "must be positive")
		}
		if wallet == "" {
			return domain.Invalid("wallet_address", "is required")
		}
		acc, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		req = &domain.DepositRequest{
			AccountID:     accountID,
			Amount:        amount,
			WalletAddress: wallet,
			TxHash:        strings.TrimSpace(txHash),
			Status:        domain.StatusPending,
			CreatedAt:     s.clock(),
		}
		if err := q.CreateDeposit(ctx, req); err != nil {
			return fmt.Errorf("create deposit: %w", err)
		}
		out.add(notify.Event{
			Kind:      notify.KindDepositRequested,
			AccountID: acc.ID,
			Email:     acc.Email,
			Amount:    amount,
			Wallet:    wallet,
			TxHash:    req.TxHash,
			At:        req.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// TransitionDeposit approves or rejects a pending deposit. Approval credits
// the balance and pays the referral cascade on the deposited amount.
// A terminal request is returned unchanged.
func (s *Service) TransitionDeposit(ctx context.Context, requestID int64, status domain.RequestStatus) (*domain.DepositRequest, error) {
	var req *domain.DepositRequest
	err := s.run(ctx, "deposit_transition", func(q store.Queries, out *outbox) error {
		if !status.Terminal() {
			return domain.Invalid("status", "must be approved or rejected")
		}
		var err error
		req, err = q.LockDeposit(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status.Terminal() {
			return nil
		}

		now := s.clock()
		if status == domain.StatusApproved {
			acc, _, err := ledger.Post(ctx, q, ledger.Posting{
				AccountID: req.AccountID,
				Kind:      domain.KindDeposit,
				Amount:    req.Amount,
				Comment:   fmt.Sprintf("deposit #%d", req.ID),
				At:        now,
			})
			if err != nil {
				return err
			}
			payouts, err := s.cascade.Distribute(ctx, q, acc, req.Amount, now)
			if err != nil {
				return err
			}
			out.add(notify.Event{
				Kind:      notify.KindDepositConfirmed,
				AccountID: acc.ID,
				Email:     acc.Email,
				Amount:    req.Amount,
				Wallet:    req.WalletAddress,
				TxHash:    req.TxHash,
				At:        now,
			})
			referralEvents(out, payouts, now)
		}

		if err := q.SetDepositStatus(ctx, req.ID, status, now); err != nil {
			return fmt.Errorf("set deposit status: %w", err)
		}
		req.Status = status
		req.ProcessedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("deposit transitioned", zap.Int64("request_id", requestID), zap.String("status", string(req.Status)))
	return req, nil
}

func (s *Service) Deposits(ctx context.Context, status domain.RequestStatus) ([]domain.DepositRequest, error) {
	var reqs []domain.DepositRequest
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		reqs, err = q.ListDeposits(ctx, status)
		return err
	})
	return reqs, err
}
