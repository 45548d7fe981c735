// Package service runs the account workflows: registration, purchases,
// claims, withdrawals, deposits and operator adjustments.
//
// Each workflow executes in one store transaction. Notifications are
// collected while the transaction runs and dispatched only after it commits.
package service

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/punchamoorthee/scooterledger/internal/config"
	"github.com/punchamoorthee/scooterledger/internal/domain"
	"github.com/punchamoorthee/scooterledger/internal/notify"
	"github.com/punchamoorthee/scooterledger/internal/referral"
	"github.com/punchamoorthee/scooterledger/internal/store"
	"github.com/punchamoorthee/scooterledger/internal/yield"
	"go.uber.org/zap"
)

var (
	settlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scooterledger_settlements_total",
		Help: "Workflow executions by operation and outcome",
	}, []string{"operation", "outcome"})

	settlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scooterledger_settlement_duration_seconds",
		Help:    "Time spent inside workflow transactions",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"operation"})
)

type Service struct {
	store    store.Store
	settings config.Settings
	cascade  *referral.Cascade
	gen      *yield.Generator
	notifier *notify.Dispatcher
	log      *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for cool-down tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithDispatcher(d *notify.Dispatcher) Option {
	return func(s *Service) { s.notifier = d }
}

// WithRandSource seeds the yield generator.
func WithRandSource(src rand.Source) Option {
	return func(s *Service) { s.gen = yield.NewGenerator(src) }
}

func New(st store.Store, settings config.Settings, opts ...Option) *Service {
	s := &Service{
		store:    st,
		settings: settings,
		cascade:  referral.New(settings.ReferralRates),
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gen == nil {
		s.gen = yield.NewGenerator(nil)
	}
	if s.notifier == nil {
		s.notifier = notify.NewDispatcher(notify.Noop{}, s.log)
	}
	return s
}

// Settings returns the accounting rules the service was built with.
func (s *Service) Settings() config.Settings {
	return s.settings
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// run executes fn in a transaction, records metrics, and dispatches the
// collected events only if the transaction committed.
func (s *Service) run(ctx context.Context, op string, fn func(q store.Queries, out *outbox) error) error {
	timer := prometheus.NewTimer(settlementLatency.WithLabelValues(op))
	defer timer.ObserveDuration()

	out := &outbox{}
	err := s.store.WithTx(ctx, func(q store.Queries) error {
		out.reset()
		return fn(q, out)
	})
	settlementsTotal.WithLabelValues(op, outcome(err)).Inc()
	if err != nil {
		return err
	}
	s.notifier.Dispatch(out.events...)
	return nil
}

// read runs a read-only transaction without metrics or notifications.
func (s *Service) read(ctx context.Context, fn func(q store.Queries) error) error {
	return s.store.WithTx(ctx, fn)
}

type outbox struct {
	events []notify.Event
}

func (o *outbox) add(e notify.Event) {
	o.events = append(o.events, e)
}

func (o *outbox) reset() {
	o.events = o.events[:0]
}

func outcome(err error) string {
	var (
		ve *domain.ValidationError
		pe *domain.PreconditionError
		ce *domain.CooldownError
		ie *domain.IntegrityError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &ie):
		return "integrity"
	case errors.As(err, &ve):
		return "invalid"
	case errors.As(err, &ce):
		return "cooldown"
	case errors.As(err, &pe):
		return "rejected"
	case domain.IsNotFound(err):
		return "not_found"
	}
	return "error"
}

func referralEvents(out *outbox, payouts []referral.Payout, at time.Time) {
	for _, p := range payouts {
		out.add(notify.Event{
			Kind:      notify.KindReferralBonus,
			AccountID: p.AccountID,
			Email:     p.Email,
			Amount:    p.Amount,
			Depth:     p.Depth,
			At:        at,
		})
	}
}

const dateLayout = "2006-01-02"

// parseDate reads a YYYY-MM-DD date; empty means today.
func (s *Service) parseDate(v string) (time.Time, error) {
	if v == "" {
		return domain.Day(s.clock()), nil
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return time.Time{}, domain.Invalid("date", "expected YYYY-MM-DD")
	}
	return t, nil
}
