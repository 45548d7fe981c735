// Package models holds the HTTP request and response payloads.
package models

import (
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

type RegisterRequest struct {
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code,omitempty"`
}

type PurchaseRequest struct {
	LevelID int64 `json:"level_id"`
}

// WithdrawalRequest carries the gross amount to take from the balance.
type WithdrawalRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
}

type DepositRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
	TxHash        string          `json:"tx_hash,omitempty"`
}

// TransitionRequest moves a withdrawal or deposit to a terminal status.
type TransitionRequest struct {
	Status domain.RequestStatus `json:"status"`
}

type BatchApprovalRequest struct {
	RequestIDs []int64 `json:"request_ids"`
}

type BatchApprovalItem struct {
	RequestID  int64                       `json:"request_id"`
	Approved   bool                        `json:"approved"`
	Error      string                      `json:"error,omitempty"`
	Settlement *PurchaseSettlementResponse `json:"settlement,omitempty"`
}

type BatchApprovalResponse struct {
	Results  []BatchApprovalItem `json:"results"`
	Approved int                 `json:"approved"`
	Failed   int                 `json:"failed"`
}

type AdjustmentRequest struct {
	Amount  decimal.Decimal `json:"amount"`
	Comment string          `json:"comment,omitempty"`
}

type AssignReferrerRequest struct {
	ReferrerID int64 `json:"referrer_id"`
}

type Payout struct {
	AccountID int64           `json:"account_id"`
	Depth     int             `json:"depth"`
	Amount    decimal.Decimal `json:"amount"`
}

type PurchaseSettlementResponse struct {
	Request domain.BuyRequest  `json:"request"`
	Holding domain.Holding     `json:"holding"`
	Entry   domain.LedgerEntry `json:"entry"`
	Payouts []Payout           `json:"payouts"`
}

type ClaimResponse struct {
	Status    string               `json:"status"`
	Balance   decimal.Decimal      `json:"new_balance"`
	Timestamp time.Time            `json:"new_timestamp"`
	Report    *domain.DailyReport  `json:"report,omitempty"`
	Scooters  []domain.ScooterStat `json:"scooters,omitempty"`
}

type DailyReportResponse struct {
	Report   domain.DailyReport   `json:"report"`
	Scooters []domain.ScooterStat `json:"scooters"`
}

type ReferralSummaryResponse struct {
	ReferralCode string          `json:"referral_code"`
	Levels       []int           `json:"levels"`
	Total        int             `json:"total_referrals"`
	Earnings     decimal.Decimal `json:"referral_earnings"`
}

type OverviewResponse struct {
	Account       domain.Account       `json:"account"`
	ScooterCount  int                  `json:"scooters_count"`
	HighestLevel  int                  `json:"highest_level"`
	TotalEarnings decimal.Decimal      `json:"total_earnings"`
	Investment    decimal.Decimal      `json:"total_investment"`
	Recent        []domain.LedgerEntry `json:"recent_transactions"`
	LastClaimAt   *time.Time           `json:"last_claim_timestamp,omitempty"`
}

// Level adds the payback period to a catalog tier.
type Level struct {
	domain.Level
	ROIDays int64 `json:"roi_days,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// RetryAfter is set on cool-down errors, in whole seconds.
	RetryAfter int64 `json:"retry_after,omitempty"`
}
