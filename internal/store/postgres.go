package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (p *Postgres) Close() {
	p.Db.Close()
}

// Migrate creates the schema if it does not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema migration failed: %w", err)
	}
	return nil
}

// WithTx runs fn in a read-committed transaction. Row locks taken through
// the Lock* queries serialize writers on the same account.
func (p *Postgres) WithTx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := p.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQueries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

type pgQueries struct {
	db dbtx
}

// uniqueViolation returns the violated constraint name, or "" if err is
// not a unique violation.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}

func notFound(err, sentinel error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return sentinel
	}
	return err
}

const accountColumns = "id, email, balance, total_earned, invited_by, referral_code, created_at"

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.Email, &a.Balance, &a.TotalEarned, &a.InvitedBy, &a.ReferralCode, &a.CreatedAt)
	if err != nil {
		return nil, notFound(err, domain.ErrAccountNotFound)
	}
	return &a, nil
}

func (q *pgQueries) CreateAccount(ctx context.Context, a *domain.Account) error {
	err := q.db.QueryRow(ctx,
		`INSERT INTO accounts (email, balance, total_earned, invited_by, referral_code, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		a.Email, a.Balance, a.TotalEarned, a.InvitedBy, a.ReferralCode, stamp(a.CreatedAt),
	).Scan(&a.ID)
	switch uniqueViolation(err) {
	case "":
	case "accounts_referral_code_key":
		return domain.ErrReferralCodeTaken
	case "accounts_email_key":
		return domain.ErrEmailTaken
	default:
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return domain.ErrAccountNotFound
	}
	return err
}

func (q *pgQueries) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

func (q *pgQueries) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
}

func (q *pgQueries) FindAccountByReferralCode(ctx context.Context, code string) (*domain.Account, error) {
	return scanAccount(q.db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE referral_code = $1", code))
}

func (q *pgQueries) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)", email).Scan(&exists)
	return exists, err
}

func (q *pgQueries) SetInvitedBy(ctx context.Context, accountID, referrerID int64) error {
	tag, err := q.db.Exec(ctx, "UPDATE accounts SET invited_by = $1 WHERE id = $2", referrerID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// referralGraphLockKey identifies the advisory lock guarding invited_by writes.
const referralGraphLockKey int64 = 0x5c007e12

func (q *pgQueries) LockReferralGraph(ctx context.Context) error {
	_, err := q.db.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", referralGraphLockKey)
	return err
}

func (q *pgQueries) UpdateBalance(ctx context.Context, id int64, balance, totalEarned decimal.Decimal) error {
	tag, err := q.db.Exec(ctx,
		"UPDATE accounts SET balance = $1, total_earned = $2 WHERE id = $3",
		balance, totalEarned, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (q *pgQueries) ListInvitees(ctx context.Context, referrerIDs []int64) ([]int64, error) {
	if len(referrerIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.Query(ctx, "SELECT id FROM accounts WHERE invited_by = ANY($1) ORDER BY id", referrerIDs)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (q *pgQueries) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	e.CreatedAt = stamp(e.CreatedAt)
	return q.db.QueryRow(ctx,
		`INSERT INTO ledger_entries (account_id, kind, amount, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		e.AccountID, string(e.Kind), e.Amount, e.Comment, e.CreatedAt,
	).Scan(&e.ID)
}

func scanEntries(rows pgx.Rows) ([]domain.LedgerEntry, error) {
	defer rows.Close()
	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.AccountID, &kind, &e.Amount, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Kind = domain.EntryKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (q *pgQueries) ListEntries(ctx context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	sql := `SELECT id, account_id, kind, amount, comment, created_at FROM ledger_entries
		WHERE account_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{accountID}
	if limit > 0 {
		sql += " LIMIT $2"
		args = append(args, limit)
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

func (q *pgQueries) LatestEntry(ctx context.Context, accountID int64, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, account_id, kind, amount, comment, created_at FROM ledger_entries
		 WHERE account_id = $1 AND kind = $2 ORDER BY created_at DESC, id DESC LIMIT 1`,
		accountID, string(kind))
	if err != nil {
		return nil, err
	}
	entries, err := scanEntries(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

func (q *pgQueries) SumEntries(ctx context.Context, accountID int64, kinds ...domain.EntryKind) (decimal.Decimal, error) {
	sql := "SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE account_id = $1"
	args := []any{accountID}
	if len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		sql += " AND kind = ANY($2)"
		args = append(args, names)
	}
	var sum decimal.Decimal
	err := q.db.QueryRow(ctx, sql, args...).Scan(&sum)
	return sum, err
}

const levelColumns = "id, number, price, income, min_daily_profit, max_daily_profit, description, photo"

func scanLevel(row pgx.Row) (*domain.Level, error) {
	var l domain.Level
	err := row.Scan(&l.ID, &l.Number, &l.Price, &l.Income, &l.MinDailyProfit, &l.MaxDailyProfit, &l.Description, &l.Photo)
	if err != nil {
		return nil, notFound(err, domain.ErrLevelNotFound)
	}
	return &l, nil
}

func (q *pgQueries) ListLevels(ctx context.Context) ([]domain.Level, error) {
	rows, err := q.db.Query(ctx, "SELECT "+levelColumns+" FROM levels ORDER BY number")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var levels []domain.Level
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, err
		}
		levels = append(levels, *l)
	}
	return levels, rows.Err()
}

func (q *pgQueries) GetLevel(ctx context.Context, id int64) (*domain.Level, error) {
	return scanLevel(q.db.QueryRow(ctx, "SELECT "+levelColumns+" FROM levels WHERE id = $1", id))
}

func (q *pgQueries) UpsertLevel(ctx context.Context, l *domain.Level) error {
	return q.db.QueryRow(ctx,
		`INSERT INTO levels (number, price, income, min_daily_profit, max_daily_profit, description, photo)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (number) DO UPDATE SET
		   price = EXCLUDED.price,
		   income = EXCLUDED.income,
		   min_daily_profit = EXCLUDED.min_daily_profit,
		   max_daily_profit = EXCLUDED.max_daily_profit
		 RETURNING id`,
		l.Number, l.Price, l.Income, l.MinDailyProfit, l.MaxDailyProfit, l.Description, l.Photo,
	).Scan(&l.ID)
}

func (q *pgQueries) UpsertHolding(ctx context.Context, accountID, levelID int64, at time.Time) (*domain.Holding, error) {
	h := domain.Holding{AccountID: accountID, LevelID: levelID}
	err := q.db.QueryRow(ctx,
		`INSERT INTO holdings (account_id, level_id, quantity, purchased_at)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (account_id, level_id) DO UPDATE SET quantity = holdings.quantity + 1
		 RETURNING id, quantity, purchased_at`,
		accountID, levelID, stamp(at),
	).Scan(&h.ID, &h.Quantity, &h.PurchasedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (q *pgQueries) ListHoldings(ctx context.Context, accountID int64) ([]domain.Holding, error) {
	rows, err := q.db.Query(ctx,
		`SELECT h.id, h.account_id, h.level_id, h.quantity, h.purchased_at,
		        l.id, l.number, l.price, l.income, l.min_daily_profit, l.max_daily_profit, l.description, l.photo
		 FROM holdings h JOIN levels l ON l.id = h.level_id
		 WHERE h.account_id = $1 ORDER BY h.id`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		var h domain.Holding
		var l domain.Level
		if err := rows.Scan(&h.ID, &h.AccountID, &h.LevelID, &h.Quantity, &h.PurchasedAt,
			&l.ID, &l.Number, &l.Price, &l.Income, &l.MinDailyProfit, &l.MaxDailyProfit, &l.Description, &l.Photo); err != nil {
			return nil, err
		}
		h.Level = &l
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (q *pgQueries) CreateBuyRequest(ctx context.Context, r *domain.BuyRequest) error {
	r.CreatedAt = stamp(r.CreatedAt)
	r.UpdatedAt = r.CreatedAt
	return q.db.QueryRow(ctx,
		`INSERT INTO buy_requests (account_id, level_id, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		r.AccountID, r.LevelID, string(r.Status), r.CreatedAt,
	).Scan(&r.ID)
}

func scanBuyRequest(row pgx.Row) (*domain.BuyRequest, error) {
	var r domain.BuyRequest
	var status string
	if err := row.Scan(&r.ID, &r.AccountID, &r.LevelID, &status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, notFound(err, domain.ErrRequestNotFound)
	}
	r.Status = domain.RequestStatus(status)
	return &r, nil
}

func (q *pgQueries) LockBuyRequest(ctx context.Context, id int64) (*domain.BuyRequest, error) {
	return scanBuyRequest(q.db.QueryRow(ctx,
		"SELECT id, account_id, level_id, status, created_at, updated_at FROM buy_requests WHERE id = $1 FOR UPDATE", id))
}

func (q *pgQueries) SetBuyRequestStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	return q.setStatus(ctx, "buy_requests", "updated_at", id, status, at)
}

func (q *pgQueries) ListBuyRequests(ctx context.Context, status domain.RequestStatus) ([]domain.BuyRequest, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, account_id, level_id, status, created_at, updated_at FROM buy_requests
		 WHERE $1 = '' OR status = $1 ORDER BY id DESC`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.BuyRequest
	for rows.Next() {
		r, err := scanBuyRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// setStatus updates a request row's status and its timestamp column.
func (q *pgQueries) setStatus(ctx context.Context, table, column string, id int64, status domain.RequestStatus, at time.Time) error {
	sql := fmt.Sprintf("UPDATE %s SET status = $1, %s = $2 WHERE id = $3", table, column)
	tag, err := q.db.Exec(ctx, sql, string(status), stamp(at), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

const withdrawalColumns = "id, account_id, amount, commission, wallet_address, status, created_at, processed_at"

func scanWithdrawal(row pgx.Row) (*domain.WithdrawalRequest, error) {
	var w domain.WithdrawalRequest
	var status string
	if err := row.Scan(&w.ID, &w.AccountID, &w.Amount, &w.Commission, &w.WalletAddress, &status, &w.CreatedAt, &w.ProcessedAt); err != nil {
		return nil, notFound(err, domain.ErrRequestNotFound)
	}
	w.Status = domain.RequestStatus(status)
	return &w, nil
}

func (q *pgQueries) CreateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	w.CreatedAt = stamp(w.CreatedAt)
	return q.db.QueryRow(ctx,
		`INSERT INTO withdrawal_requests (account_id, amount, commission, wallet_address, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		w.AccountID, w.Amount, w.Commission, w.WalletAddress, string(w.Status), w.CreatedAt,
	).Scan(&w.ID)
}

func (q *pgQueries) LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	return scanWithdrawal(q.db.QueryRow(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE id = $1 FOR UPDATE", id))
}

func (q *pgQueries) SetWithdrawalStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	return q.setStatus(ctx, "withdrawal_requests", "processed_at", id, status, at)
}

func (q *pgQueries) LatestWithdrawal(ctx context.Context, accountID int64) (*domain.WithdrawalRequest, error) {
	w, err := scanWithdrawal(q.db.QueryRow(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE account_id = $1 ORDER BY created_at DESC LIMIT 1",
		accountID))
	if errors.Is(err, domain.ErrRequestNotFound) {
		return nil, nil
	}
	return w, err
}

func (q *pgQueries) ListWithdrawals(ctx context.Context, status domain.RequestStatus) ([]domain.WithdrawalRequest, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+withdrawalColumns+" FROM withdrawal_requests WHERE $1 = '' OR status = $1 ORDER BY id DESC",
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

const depositColumns = "id, account_id, amount, wallet_address, tx_hash, status, created_at, processed_at"

func scanDeposit(row pgx.Row) (*domain.DepositRequest, error) {
	var d domain.DepositRequest
	var status string
	if err := row.Scan(&d.ID, &d.AccountID, &d.Amount, &d.WalletAddress, &d.TxHash, &status, &d.CreatedAt, &d.ProcessedAt); err != nil {
		return nil, notFound(err, domain.ErrRequestNotFound)
	}
	d.Status = domain.RequestStatus(status)
	return &d, nil
}

func (q *pgQueries) CreateDeposit(ctx context.Context, d *domain.DepositRequest) error {
	d.CreatedAt = stamp(d.CreatedAt)
	return q.db.QueryRow(ctx,
		`INSERT INTO deposit_requests (account_id, amount, wallet_address, tx_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.AccountID, d.Amount, d.WalletAddress, d.TxHash, string(d.Status), d.CreatedAt,
	).Scan(&d.ID)
}

func (q *pgQueries) LockDeposit(ctx context.Context, id int64) (*domain.DepositRequest, error) {
	return scanDeposit(q.db.QueryRow(ctx,
		"SELECT "+depositColumns+" FROM deposit_requests WHERE id = $1 FOR UPDATE", id))
}

func (q *pgQueries) SetDepositStatus(ctx context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	return q.setStatus(ctx, "deposit_requests", "processed_at", id, status, at)
}

func (q *pgQueries) ListDeposits(ctx context.Context, status domain.RequestStatus) ([]domain.DepositRequest, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+depositColumns+" FROM deposit_requests WHERE $1 = '' OR status = $1 ORDER BY id DESC",
		string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DepositRequest
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ReplaceDailyYield discards the stats and report for the day and writes the new run.
func (q *pgQueries) ReplaceDailyYield(ctx context.Context, report domain.DailyReport, stats []domain.ScooterStat) error {
	day := domain.Day(report.ReportDate)

	if _, err := q.db.Exec(ctx,
		"DELETE FROM scooter_stats WHERE account_id = $1 AND report_date = $2", report.AccountID, day); err != nil {
		return fmt.Errorf("clear scooter stats: %w", err)
	}

	batch := &pgx.Batch{}
	for _, st := range stats {
		batch.Queue(
			`INSERT INTO scooter_stats (account_id, report_date, scooter_number, distance, trips, profit, percentage)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			report.AccountID, day, st.ScooterNumber, st.Distance, st.Trips, st.Profit, st.Percentage)
	}
	batch.Queue(
		`INSERT INTO daily_reports (account_id, report_date, total_distance, profit_percentage, profit_amount, number_of_trips)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (account_id, report_date) DO UPDATE SET
		   total_distance = EXCLUDED.total_distance,
		   profit_percentage = EXCLUDED.profit_percentage,
		   profit_amount = EXCLUDED.profit_amount,
		   number_of_trips = EXCLUDED.number_of_trips`,
		report.AccountID, day, report.TotalDistance, report.ProfitPercentage, report.ProfitAmount, report.NumberOfTrips)

	if err := q.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write daily yield: %w", err)
	}
	return nil
}

const reportColumns = "account_id, report_date, total_distance, profit_percentage, profit_amount, number_of_trips"

func scanReport(row pgx.Row) (*domain.DailyReport, error) {
	var r domain.DailyReport
	if err := row.Scan(&r.AccountID, &r.ReportDate, &r.TotalDistance, &r.ProfitPercentage, &r.ProfitAmount, &r.NumberOfTrips); err != nil {
		return nil, notFound(err, domain.ErrReportNotFound)
	}
	return &r, nil
}

func (q *pgQueries) GetDailyReport(ctx context.Context, accountID int64, date time.Time) (*domain.DailyReport, error) {
	return scanReport(q.db.QueryRow(ctx,
		"SELECT "+reportColumns+" FROM daily_reports WHERE account_id = $1 AND report_date = $2",
		accountID, domain.Day(date)))
}

func (q *pgQueries) ListDailyReports(ctx context.Context, accountID int64) ([]domain.DailyReport, error) {
	rows, err := q.db.Query(ctx,
		"SELECT "+reportColumns+" FROM daily_reports WHERE account_id = $1 ORDER BY report_date DESC", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DailyReport
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (q *pgQueries) ListScooterStats(ctx context.Context, accountID int64, date time.Time) ([]domain.ScooterStat, error) {
	rows, err := q.db.Query(ctx,
		`SELECT account_id, report_date, scooter_number, distance, trips, profit, percentage
		 FROM scooter_stats WHERE account_id = $1 AND report_date = $2 ORDER BY scooter_number`,
		accountID, domain.Day(date))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.ScooterStat
	for rows.Next() {
		var st domain.ScooterStat
		if err := rows.Scan(&st.AccountID, &st.ReportDate, &st.ScooterNumber, &st.Distance, &st.Trips, &st.Profit, &st.Percentage); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
