package service

import (
	"context"
	"fmt"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/ledger"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/referral"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"go.uber.org/zap"
)

// Purchase records a pending request to buy one unit of a level.
// No funds move until an operator approves it.
func (s *Service) Purchase(ctx context.Context, accountID, levelID int64) (*domain.BuyRequest, error) {
	var req *domain.BuyRequest
	err := s.run(ctx, "purchase_request", func(q store.Queries, out *outbox) error {
		acc, err := q.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		level, err := q.GetLevel(ctx, levelID)
		if err != nil {
			return err
		}
		req = &domain.BuyRequest{AccountID: accountID, LevelID: levelID, Status: domain.StatusPending, CreatedAt: s.clock()}
		if err := q.CreateBuyRequest(ctx, req); err != nil {
			return fmt.Errorf("create buy request: %w", err)
		}
		out.add(notify.Event{
			Kind:      notify.KindPurchaseRequested,
			AccountID: acc.ID,
			Email:     acc.Email,
			Amount:    level.Price,
			Level:     level.Name(),
			Status:    string(domain.StatusPending),
			At:        req.CreatedAt,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// PurchaseSettlement is the outcome of an approved purchase.
type PurchaseSettlement struct {
	Request domain.BuyRequest
	Holding domain.Holding
	Entry   domain.LedgerEntry
	Payouts []referral.Payout
}

// ApprovePurchase settles a pending request atomically: the holding is
// incremented, the price debited, referrers credited and the request
// marked approved. Any failure leaves every row unchanged.
func (s *Service) ApprovePurchase(ctx context.Context, requestID int64) (*PurchaseSettlement, error) {
	var res *PurchaseSettlement
	err := s.run(ctx, "purchase_approve", func(q store.Queries, out *outbox) error {
		req, err := q.LockBuyRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.StatusPending {
			return domain.Precondition(domain.ErrNotPending, fmt.Sprintf("buy request %d is %s", req.ID, req.Status))
		}
		level, err := q.GetLevel(ctx, req.LevelID)
		if err != nil {
			return &domain.IntegrityError{Reason: fmt.Sprintf("buy request %d references level %d", req.ID, req.LevelID), Err: err}
		}

		now := s.clock()
		holding, err := q.UpsertHolding(ctx, req.AccountID, level.ID, now)
		if err != nil {
			return fmt.Errorf("upsert holding: %w", err)
		}
		acc, entry, err := ledger.Post(ctx, q, ledger.Posting{
			AccountID: req.AccountID,
			Kind:      domain.KindBuy,
			Amount:    level.Price.Neg(),
			Comment:   "purchase " + level.Name(),
			At:        now,
		})
		if err != nil {
			return err
		}
		payouts, err := s.cascade.Distribute(ctx, q, acc, level.Price, now)
		if err != nil {
			return err
		}
		if err := q.SetBuyRequestStatus(ctx, req.ID, domain.StatusApproved, now); err != nil {
			return fmt.Errorf("approve buy request: %w", err)
		}

		req.Status = domain.StatusApproved
		req.UpdatedAt = now
		holding.Level = level
		res = &PurchaseSettlement{Request: *req, Holding: *holding, Entry: *entry, Payouts: payouts}

		out.add(notify.Event{
			Kind:      notify.KindPurchaseStatus,
			AccountID: acc.ID,
			Email:     acc.Email,
			Amount:    level.Price,
			Level:     level.Name(),
			Status:    string(domain.StatusApproved),
			At:        now,
		})
		referralEvents(out, payouts, now)
		return nil
	})
	if err != nil {
		s.log.Warn("purchase settlement failed", zap.Int64("request_id", requestID), zap.Error(err))
		return nil, err
	}
	s.log.Info("purchase settled",
		zap.Int64("request_id", requestID),
		zap.Int64("account_id", res.Request.AccountID),
		zap.String("amount", res.Entry.Amount.String()),
		zap.Int("referral_payouts", len(res.Payouts)),
	)
	return res, nil
}

// PurchaseResult reports one item of a batch approval.
type PurchaseResult struct {
	RequestID  int64
	Settlement *PurchaseSettlement
	Err        error
}

// ApprovePurchases settles each request in its own transaction so one
// failure does not affect the others.
func (s *Service) ApprovePurchases(ctx context.Context, ids []int64) []PurchaseResult {
	results := make([]PurchaseResult, 0, len(ids))
	for _, id := range ids {
		settlement, err := s.ApprovePurchase(ctx, id)
		results = append(results, PurchaseResult{RequestID: id, Settlement: settlement, Err: err})
	}
	return results
}

// RejectPurchase closes a pending request without moving funds.
func (s *Service) RejectPurchase(ctx context.Context, requestID int64) (*domain.BuyRequest, error) {
	var req *domain.BuyRequest
	err := s.run(ctx, "purchase_reject", func(q store.Queries, out *outbox) error {
		var err error
		req, err = q.LockBuyRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != domain.StatusPending {
			return domain.Precondition(domain.ErrNotPending, fmt.Sprintf("buy request %d is %s", req.ID, req.Status))
		}
		now := s.clock()
		if err := q.SetBuyRequestStatus(ctx, req.ID, domain.StatusRejected, now); err != nil {
			return err
		}
		req.Status = domain.StatusRejected
		req.UpdatedAt = now

		acc, err := q.GetAccount(ctx, req.AccountID)
		if err != nil {
			return err
		}
		e := notify.Event{Kind: notify.KindPurchaseStatus, AccountID: acc.ID, Email: acc.Email, Status: string(domain.StatusRejected), At: now}
		if level, err := q.GetLevel(ctx, req.LevelID); err == nil {
			e.Level = level.Name()
		}
		out.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// BuyRequests lists requests with the given status; empty means all.
func (s *Service) BuyRequests(ctx context.Context, status domain.RequestStatus) ([]domain.BuyRequest, error) {
	var reqs []domain.BuyRequest
	err := s.read(ctx, func(q store.Queries) error {
		var err error
		reqs, err = q.ListBuyRequests(ctx, status)
		return err
	})
	return reqs, err
}
