package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Memory is an in-process Store. A transaction works on a copy of the
// state and swaps it in on success, so a failed fn leaves nothing behind.
// All transactions are serialized by a single mutex.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type reportKey struct {
	accountID int64
	date      time.Time
}

type memState struct {
	seq map[string]int64

	accounts    map[int64]domain.Account
	entries     []domain.LedgerEntry
	levels      map[int64]domain.Level
	holdings    map[int64]domain.Holding
	buys        map[int64]domain.BuyRequest
	withdrawals map[int64]domain.WithdrawalRequest
	deposits    map[int64]domain.DepositRequest
	reports     map[reportKey]domain.DailyReport
	stats       map[reportKey][]domain.ScooterStat
}

func NewMemory() *Memory {
	return &Memory{state: &memState{
		seq:         map[string]int64{},
		accounts:    map[int64]domain.Account{},
		levels:      map[int64]domain.Level{},
		holdings:    map[int64]domain.Holding{},
		buys:        map[int64]domain.BuyRequest{},
		withdrawals: map[int64]domain.WithdrawalRequest{},
		deposits:    map[int64]domain.DepositRequest{},
		reports:     map[reportKey]domain.DailyReport{},
		stats:       map[reportKey][]domain.ScooterStat{},
	}}
}

func (s *memState) clone() *memState {
	c := &memState{
		seq:         make(map[string]int64, len(s.seq)),
		accounts:    make(map[int64]domain.Account, len(s.accounts)),
		entries:     append([]domain.LedgerEntry(nil), s.entries...),
		levels:      make(map[int64]domain.Level, len(s.levels)),
		holdings:    make(map[int64]domain.Holding, len(s.holdings)),
		buys:        make(map[int64]domain.BuyRequest, len(s.buys)),
		withdrawals: make(map[int64]domain.WithdrawalRequest, len(s.withdrawals)),
		deposits:    make(map[int64]domain.DepositRequest, len(s.deposits)),
		reports:     make(map[reportKey]domain.DailyReport, len(s.reports)),
		stats:       make(map[reportKey][]domain.ScooterStat, len(s.stats)),
	}
	for k, v := range s.seq {
		c.seq[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.levels {
		c.levels[k] = v
	}
	for k, v := range s.holdings {
		c.holdings[k] = v
	}
	for k, v := range s.buys {
		c.buys[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.deposits {
		c.deposits[k] = v
	}
	for k, v := range s.reports {
		c.reports[k] = v
	}
	for k, v := range s.stats {
		c.stats[k] = append([]domain.ScooterStat(nil), v...)
	}
	return c
}

func (s *memState) next(table string) int64 {
	s.seq[table]++
	return s.seq[table]
}

func (m *Memory) WithTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) Close() {}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

// memState implements Queries for the transaction in progress.

func (s *memState) CreateAccount(_ context.Context, a *domain.Account) error {
	for _, existing := range s.accounts {
		if existing.Email == a.Email {
			return domain.ErrEmailTaken
		}
		if existing.ReferralCode == a.ReferralCode {
			return domain.ErrReferralCodeTaken
		}
	}
	if a.InvitedBy != nil {
		if _, ok := s.accounts[*a.InvitedBy]; !ok {
			return domain.ErrAccountNotFound
		}
	}
	a.ID = s.next("accounts")
	a.CreatedAt = stamp(a.CreatedAt)
	s.accounts[a.ID] = *a
	return nil
}

func (s *memState) GetAccount(_ context.Context, id int64) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (s *memState) LockAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *memState) FindAccountByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	for _, a := range s.accounts {
		if a.ReferralCode == code {
			return &a, nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (s *memState) EmailExists(_ context.Context, email string) (bool, error) {
	for _, a := range s.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memState) SetInvitedBy(_ context.Context, accountID, referrerID int64) error {
	a, ok := s.accounts[accountID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.InvitedBy = &referrerID
	s.accounts[accountID] = a
	return nil
}

// LockReferralGraph is a no-op: WithTx already holds the store-wide mutex.
func (s *memState) LockReferralGraph(context.Context) error { return nil }

func (s *memState) UpdateBalance(_ context.Context, id int64, balance, totalEarned decimal.Decimal) error {
	a, ok := s.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Balance = balance
	a.TotalEarned = totalEarned
	s.accounts[id] = a
	return nil
}

func (s *memState) ListInvitees(_ context.Context, referrerIDs []int64) ([]int64, error) {
	parents := make(map[int64]bool, len(referrerIDs))
	for _, id := range referrerIDs {
		parents[id] = true
	}
	var ids []int64
	for _, a := range s.accounts {
		if a.InvitedBy != nil && parents[*a.InvitedBy] {
			ids = append(ids, a.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *memState) InsertEntry(_ context.Context, e *domain.LedgerEntry) error {
	if _, ok := s.accounts[e.AccountID]; !ok {
		return domain.ErrAccountNotFound
	}
	e.ID = s.next("ledger_entries")
	e.CreatedAt = stamp(e.CreatedAt)
	s.entries = append(s.entries, *e)
	return nil
}

// newestFirst orders by creation time, then insertion order.
func newestFirst(entries []domain.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

func (s *memState) ListEntries(_ context.Context, accountID int64, limit int) ([]domain.LedgerEntry, error) {
	var out []domain.LedgerEntry
	for _, e := range s.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	newestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memState) LatestEntry(ctx context.Context, accountID int64, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	entries, _ := s.ListEntries(ctx, accountID, 0)
	for _, e := range entries {
		if e.Kind == kind {
			return &e, nil
		}
	}
	return nil, nil
}

func (s *memState) SumEntries(_ context.Context, accountID int64, kinds ...domain.EntryKind) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, e := range s.entries {
		if e.AccountID != accountID {
			continue
		}
		if len(kinds) > 0 && !containsKind(kinds, e.Kind) {
			continue
		}
		sum = sum.Add(e.Amount)
	}
	return sum, nil
}

func containsKind(kinds []domain.EntryKind, k domain.EntryKind) bool {
	for _, kk := range kinds {
		if kk == k {
			return true
		}
	}
	return false
}

func (s *memState) ListLevels(_ context.Context) ([]domain.Level, error) {
	out := make([]domain.Level, 0, len(s.levels))
	for _, l := range s.levels {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *memState) GetLevel(_ context.Context, id int64) (*domain.Level, error) {
	l, ok := s.levels[id]
	if !ok {
		return nil, domain.ErrLevelNotFound
	}
	return &l, nil
}

func (s *memState) UpsertLevel(_ context.Context, l *domain.Level) error {
	for id, existing := range s.levels {
		if existing.Number == l.Number {
			l.ID = id
			s.levels[id] = *l
			return nil
		}
	}
	l.ID = s.next("levels")
	s.levels[l.ID] = *l
	return nil
}

func (s *memState) UpsertHolding(_ context.Context, accountID, levelID int64, at time.Time) (*domain.Holding, error) {
	for id, h := range s.holdings {
		if h.AccountID == accountID && h.LevelID == levelID {
			h.Quantity++
			s.holdings[id] = h
			return &h, nil
		}
	}
	h := domain.Holding{
		ID:          s.next("holdings"),
		AccountID:   accountID,
		LevelID:     levelID,
		Quantity:    1,
		PurchasedAt: stamp(at),
	}
	s.holdings[h.ID] = h
	return &h, nil
}

func (s *memState) ListHoldings(_ context.Context, accountID int64) ([]domain.Holding, error) {
	var out []domain.Holding
	for _, h := range s.holdings {
		if h.AccountID != accountID {
			continue
		}
		if l, ok := s.levels[h.LevelID]; ok {
			h.Level = &l
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memState) CreateBuyRequest(_ context.Context, r *domain.BuyRequest) error {
	r.ID = s.next("buy_requests")
	r.CreatedAt = stamp(r.CreatedAt)
	r.UpdatedAt = r.CreatedAt
	s.buys[r.ID] = *r
	return nil
}

func (s *memState) LockBuyRequest(_ context.Context, id int64) (*domain.BuyRequest, error) {
	r, ok := s.buys[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return &r, nil
}

func (s *memState) SetBuyRequestStatus(_ context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	r, ok := s.buys[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	r.Status = status
	r.UpdatedAt = stamp(at)
	s.buys[id] = r
	return nil
}

func (s *memState) ListBuyRequests(_ context.Context, status domain.RequestStatus) ([]domain.BuyRequest, error) {
	var out []domain.BuyRequest
	for _, r := range s.buys {
		if status == "" || r.Status == status {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memState) CreateWithdrawal(_ context.Context, w *domain.WithdrawalRequest) error {
	w.ID = s.next("withdrawal_requests")
	w.CreatedAt = stamp(w.CreatedAt)
	s.withdrawals[w.ID] = *w
	return nil
}

func (s *memState) LockWithdrawal(_ context.Context, id int64) (*domain.WithdrawalRequest, error) {
	w, ok := s.withdrawals[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return &w, nil
}

func (s *memState) SetWithdrawalStatus(_ context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	w, ok := s.withdrawals[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	processed := stamp(at)
	w.Status = status
	w.ProcessedAt = &processed
	s.withdrawals[id] = w
	return nil
}

func (s *memState) LatestWithdrawal(_ context.Context, accountID int64) (*domain.WithdrawalRequest, error) {
	var latest *domain.WithdrawalRequest
	for _, w := range s.withdrawals {
		if w.AccountID != accountID {
			continue
		}
		if latest == nil || w.CreatedAt.After(latest.CreatedAt) {
			w := w
			latest = &w
		}
	}
	return latest, nil
}

func (s *memState) ListWithdrawals(_ context.Context, status domain.RequestStatus) ([]domain.WithdrawalRequest, error) {
	var out []domain.WithdrawalRequest
	for _, w := range s.withdrawals {
		if status == "" || w.Status == status {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memState) CreateDeposit(_ context.Context, d *domain.DepositRequest) error {
	d.ID = s.next("deposit_requests")
	d.CreatedAt = stamp(d.CreatedAt)
	s.deposits[d.ID] = *d
	return nil
}

func (s *memState) LockDeposit(_ context.Context, id int64) (*domain.DepositRequest, error) {
	d, ok := s.deposits[id]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return &d, nil
}

func (s *memState) SetDepositStatus(_ context.Context, id int64, status domain.RequestStatus, at time.Time) error {
	d, ok := s.deposits[id]
	if !ok {
		return domain.ErrRequestNotFound
	}
	processed := stamp(at)
	d.Status = status
	d.ProcessedAt = &processed
	s.deposits[id] = d
	return nil
}

func (s *memState) ListDeposits(_ context.Context, status domain.RequestStatus) ([]domain.DepositRequest, error) {
	var out []domain.DepositRequest
	for _, d := range s.deposits {
		if status == "" || d.Status == status {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memState) ReplaceDailyYield(_ context.Context, report domain.DailyReport, stats []domain.ScooterStat) error {
	key := reportKey{report.AccountID, domain.Day(report.ReportDate)}
	report.ReportDate = key.date
	s.reports[key] = report

	rows := make([]domain.ScooterStat, len(stats))
	for i, st := range stats {
		st.ReportDate = key.date
		rows[i] = st
	}
	s.stats[key] = rows
	return nil
}

func (s *memState) GetDailyReport(_ context.Context, accountID int64, date time.Time) (*domain.DailyReport, error) {
	r, ok := s.reports[reportKey{accountID, domain.Day(date)}]
	if !ok {
		return nil, domain.ErrReportNotFound
	}
	return &r, nil
}

func (s *memState) ListScooterStats(_ context.Context, accountID int64, date time.Time) ([]domain.ScooterStat, error) {
	rows := s.stats[reportKey{accountID, domain.Day(date)}]
	out := append([]domain.ScooterStat(nil), rows...)
	sort.Slice(out, func(i, j int) bool { return out[i].ScooterNumber < out[j].ScooterNumber })
	return out, nil
}

func (s *memState) ListDailyReports(_ context.Context, accountID int64) ([]domain.DailyReport, error) {
	var out []domain.DailyReport
	for k, r := range s.reports {
		if k.accountID == accountID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReportDate.After(out[j].ReportDate) })
	return out, nil
}
