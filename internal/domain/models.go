package domain

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// EntryKind classifies a ledger entry.
type EntryKind string

const (
	KindDeposit  EntryKind = "deposit"
	KindEarning  EntryKind = "earning"
	KindWithdraw EntryKind = "withdraw"
	KindBuy      EntryKind = "buy"
	KindReferral EntryKind = "referral"
	KindAdmin    EntryKind = "admin"
)

// Valid reports whether k is one of the known entry kinds.
func (k EntryKind) Valid() bool {
	switch k {
	case KindDeposit, KindEarning, KindWithdraw, KindBuy, KindReferral, KindAdmin:
		return true
	}
	return false
}

// RequestStatus is shared by buy, withdrawal and deposit requests.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed.
func (s RequestStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Account is a user's balance holder in the ledger.
// Balance always equals the sum of the account's ledger entries.
type Account struct {
	ID           int64           `json:"id"`
	Email        string          `json:"email"`
	Balance      decimal.Decimal `json:"balance"`
	TotalEarned  decimal.Decimal `json:"total_earned"`
	InvitedBy    *int64          `json:"invited_by,omitempty"`
	ReferralCode string          `json:"referral_code"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LedgerEntry is an immutable balance-affecting event.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	Kind      EntryKind       `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Comment   string          `json:"comment,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Level is one tier of the investment catalog.
type Level struct {
	ID             int64           `json:"id"`
	Number         int             `json:"number"`
	Price          decimal.Decimal `json:"price"`
	Income         decimal.Decimal `json:"income"`
	MinDailyProfit decimal.Decimal `json:"min_daily_profit"`
	MaxDailyProfit decimal.Decimal `json:"max_daily_profit"`
	Description    string          `json:"description,omitempty"`
	Photo          string          `json:"photo,omitempty"`
}

// Name is the display label used in notifications.
func (l Level) Name() string {
	return "Level " + strconv.Itoa(l.Number)
}

// Holding is the quantity of one level owned by an account.
type Holding struct {
	ID          int64     `json:"id"`
	AccountID   int64     `json:"account_id"`
	LevelID     int64     `json:"level_id"`
	Quantity    int       `json:"quantity"`
	PurchasedAt time.Time `json:"purchased_at"`
	Level       *Level    `json:"level,omitempty"`
}

// BuyRequest asks an operator to settle a level purchase.
type BuyRequest struct {
	ID        int64         `json:"id"`
	AccountID int64         `json:"account_id"`
	LevelID   int64         `json:"level_id"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// WithdrawalRequest holds the net payable amount; the gross was reserved
// from the balance when the request was created.
type WithdrawalRequest struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Commission    decimal.Decimal `json:"commission"`
	WalletAddress string          `json:"wallet_address"`
	Status        RequestStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// Gross is the amount originally removed from the balance.
func (w WithdrawalRequest) Gross() decimal.Decimal {
	return w.Amount.Add(w.Commission)
}

// DepositRequest is credited only once an operator approves it.
type DepositRequest struct {
	ID            int64           `json:"id"`
	AccountID     int64           `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address"`
	TxHash        string          `json:"tx_hash,omitempty"`
	Status        RequestStatus   `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// DailyReport aggregates one day of generated scooter statistics.
type DailyReport struct {
	AccountID        int64           `json:"account_id"`
	ReportDate       time.Time       `json:"report_date"`
	TotalDistance    decimal.Decimal `json:"total_distance"`
	ProfitPercentage decimal.Decimal `json:"profit_percentage"`
	ProfitAmount     decimal.Decimal `json:"profit_amount"`
	NumberOfTrips    int             `json:"number_of_trips"`
}

// ScooterStat is the synthetic telemetry of one holding instance for a day.
type ScooterStat struct {
	AccountID     int64           `json:"account_id"`
	ReportDate    time.Time       `json:"report_date"`
	ScooterNumber string          `json:"scooter_number"`
	Distance      decimal.Decimal `json:"distance"`
	Trips         int             `json:"trips"`
	Profit        decimal.Decimal `json:"profit"`
	Percentage    decimal.Decimal `json:"percentage"`
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
