package store

import (
	"context"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Queries is the data access surface shared by the connection and a transaction.
// Lock* methods take a row lock that is held until the surrounding
// transaction ends; outside WithTx they behave as plain reads.
type Queries interface {
	CreateAccount(ctx context.Context, a *domain.Account) error
	GetAccount(ctx context.Context, id int64) (*domain.Account, error)
	LockAccount(ctx context.Context, id int64) (*domain.Account, error)
	FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	SetInvitedBy(ctx context.Context, accountID, referrerID int64) error
	// LockReferralGraph serializes referrer assignments until the
	// transaction ends, so a cycle check cannot race another assignment.
	LockReferralGraph(ctx context.Context) error
	UpdateBalance(ctx context.Context, id int64, balance, totalEarned decimal.Decimal) error
	ListInvitees(ctx context.Context, referrerIDs []int64) ([]int64, error)

	InsertEntry(ctx context.Context, e *domain.LedgerEntry) error
	ListEntries(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error)
	LatestEntry(ctx context.Context, accountID int64, kind domain.EntryKind) (*domain.LedgerEntry, error)
	SumEntries(ctx context.Context, accountID int64, kinds ...domain.EntryKind) (decimal.Decimal, error)

	ListLevels(ctx context.Context) ([]domain.Level, error)
	GetLevel(ctx context.Context, id int64) (*domain.Level, error)
	UpsertLevel(ctx context.Context, l *domain.Level) error

	UpsertHolding(ctx context.Context, accountID, levelID int64, at time.Time) (*domain.Holding, error)
	ListHoldings(ctx context.Context, accountID int64) ([]domain.Holding, error)

	CreateBuyRequest(ctx context.Context, r *domain.BuyRequest) error
	LockBuyRequest(ctx context.Context, id int64) (*domain.BuyRequest, error)
	SetBuyRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error
	ListBuyRequests(ctx context.Context, status domain.RequestStatus) ([]domain.BuyRequest, error)

	CreateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error
	LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error)
	SetWithdrawalStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error
	LatestWithdrawal(ctx context.Context, accountID int64) (*domain.WithdrawalRequest, error)
	ListWithdrawals(ctx context.Context, status domain.RequestStatus) ([]domain.WithdrawalRequest, error)

	CreateDeposit(ctx context.Context, d *domain.DepositRequest) error
	LockDeposit(ctx context.Context, id int64) (*domain.DepositRequest, error)
	SetDepositStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error
	ListDeposits(ctx context.Context, status domain.RequestStatus) ([]domain.DepositRequest, error)

	ReplaceDailyYield(ctx context.Context, report domain.DailyReport, stats []domain.ScooterStat) error
	GetDailyReport(ctx context.Context, accountID int64, date time.Time) (*domain.DailyReport, error)
	ListScooterStats(ctx context.Context, accountID int64, date time.Time) ([]domain.ScooterStat, error)
	ListDailyReports(ctx context.Context, accountID int64) ([]domain.DailyReport, error)
}

// Store runs fn inside a single transaction. If fn returns an error every
// write made through q is rolled back. Reads use the same entry point.
type Store interface {
	WithTx(ctx context.Context, fn func(q Queries) error) error
	Close()
}
