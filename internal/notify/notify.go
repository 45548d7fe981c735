// Package notify delivers operator notifications for ledger events.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EventKind string

const (
	KindRegistration        EventKind = "registration"
	KindReferralSignup      EventKind = "referral_signup"
	KindBalanceCredit       EventKind = "balance_credit"
	KindReferralBonus       EventKind = "referral_bonus"
	KindWithdrawalRequested EventKind = "withdrawal_requested"
	KindWithdrawalConfirmed EventKind = "withdrawal_confirmed"
	KindWithdrawalRejected  EventKind = "withdrawal_rejected"
	KindDepositRequested    EventKind = "deposit_requested"
	KindDepositConfirmed    EventKind = "deposit_confirmed"
	KindPurchaseRequested   EventKind = "purchase_requested"
	KindPurchaseStatus      EventKind = "purchase_status"
	KindClaimStarted        EventKind = "claim_started"
	KindYieldClaimed        EventKind = "yield_claimed"
	KindAdminAdjustment     EventKind = "admin_adjustment"
)

// Event is the payload handed to a Notifier. Fields that do not apply to
// a kind are left zero.
type Event struct {
	Kind      EventKind
	AccountID int64
	Email     string
	Amount    decimal.Decimal
	Wallet    string
	TxHash    string
	Level     string
	Depth     int
	Status    string
	Comment   string
	// Inviter is the referrer email on referral signups.
	Inviter string
	At      time.Time
}

// Notifier sends one event to an outside channel.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

var (
	sentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications delivered, labeled by kind",
	}, []string{"kind"})
	failedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Notifications that failed delivery, labeled by kind",
	}, []string{"kind"})
)

// Dispatcher sends events in the background once the owning transaction
// has committed. Failures are logged and counted; nothing is retried.
type Dispatcher struct {
	n       Notifier
	log     *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(n Notifier, log *zap.Logger) *Dispatcher {
	if n == nil {
		n = Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{n: n, log: log, timeout: 10 * time.Second}
}

// Dispatch queues events for delivery and returns immediately.
func (d *Dispatcher) Dispatch(events ...Event) {
	for _, e := range events {
		d.wg.Add(1)
		go func(e Event) {
			defer d.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := d.n.Notify(ctx, e); err != nil {
				failedTotal.WithLabelValues(string(e.Kind)).Inc()
				d.log.Warn("notification failed",
					zap.String("kind", string(e.Kind)),
					zap.Int64("account_id", e.AccountID),
					zap.Error(err),
				)
				return
			}
			sentTotal.WithLabelValues(string(e.Kind)).Inc()
		}(e)
	}
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Noop discards events.
type Noop struct{}

func (Noop) Notify(context.Context, Event) error { return nil }

// Log writes events to a zap logger instead of an external channel.
type Log struct {
	L *zap.Logger
}

func (l Log) Notify(_ context.Context, e Event) error {
	l.L.Info("notification",
		zap.String("kind", string(e.Kind)),
		zap.Int64("account_id", e.AccountID),
		zap.String("email", e.Email),
		zap.String("amount", e.Amount.StringFixed(2)),
		zap.String("status", e.Status),
	)
	return nil
}
