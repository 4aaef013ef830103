package syncer

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"golang.org/x/time/rate"
)

// Ticker is the tick source of a Scheduler.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct{ t *time.Ticker }

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Syncer is what the scheduler triggers.
type Syncer interface {
	StartSync(ctx context.Context) (Result, error)
	ResetBackoff(ctx context.Context) error
}

// Subscriber delivers connectivity transitions.
type Subscriber interface {
	Subscribe(fn func(online bool)) (unsubscribe func())
}

const (
	DefaultInterval   = 30 * time.Second
	DefaultMinSyncGap = 5 * time.Second
)

// Scheduler funnels periodic ticks, connectivity regain and manual triggers
// into StartSync. Ticks and manual triggers closer together than the minimum
// gap are dropped; the next tick picks up whatever they would have done.
// Connectivity regain always starts a run, and a run that found the device
// offline or another run in flight does not count against the gap.
type Scheduler struct {
	syncer    Syncer
	conn      Subscriber
	interval  time.Duration
	limiter   *rate.Limiter
	newTicker func(time.Duration) Ticker
	onResult  func(Result, error)
	log       logging.Logger

	trigger  chan struct{}
	regained chan struct{}
}

type SchedulerOption func(*Scheduler)

func WithInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithMinGap sets the minimum time between two started runs. Zero disables
// limiting.
func WithMinGap(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

func WithTicker(fn func(time.Duration) Ticker) SchedulerOption {
	return func(s *Scheduler) { s.newTicker = fn }
}

// WithResultHandler receives the outcome of every run the scheduler starts.
func WithResultHandler(fn func(Result, error)) SchedulerOption {
	return func(s *Scheduler) { s.onResult = fn }
}

func WithSchedulerLogger(l logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler creates a Scheduler. conn may be nil.
func NewScheduler(sy Syncer, conn Subscriber, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		syncer:    sy,
		conn:      conn,
		interval:  DefaultInterval,
		limiter:   rate.NewLimiter(rate.Every(DefaultMinSyncGap), 1),
		newTicker: NewTimeTicker,
		log:       logging.Nop(),
		trigger:   make(chan struct{}, 1),
		regained:  make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "scheduler")
	return s
}

// Trigger asks for a run as soon as possible. It never blocks.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Run starts a sync immediately and then on every trigger until ctx is
// done. It returns nil on cancellation and the error of the first run that
// failed hard.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.conn != nil {
		unsubscribe := s.conn.Subscribe(func(online bool) {
			if !online {
				return
			}
			select {
			case s.regained <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	t := s.newTicker(s.interval)
	defer t.Stop()

	if err := s.fire(ctx, "startup", true); err != nil {
		return err
	}

	for {
		var (
			reason  string
			limited = true
		)
		select {
		case <-ctx.Done():
			return nil
		case <-t.C():
			reason = "tick"
		case <-s.trigger:
			reason = "manual"
		case <-s.regained:
			reason, limited = "connectivity", false
			if err := s.syncer.ResetBackoff(ctx); err != nil {
				s.log.Warn(ctx, "could not reset backoff", "err", err)
			}
		}
		if err := s.fire(ctx, reason, limited); err != nil {
			return err
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, reason string, limited bool) error {
	if limited && !s.limiter.Allow() {
		s.log.Debug(ctx, "sync trigger dropped by rate limit", "reason", reason)
		return nil
	}

	s.log.Debug(ctx, "starting sync", "reason", reason)
	res, err := s.syncer.StartSync(ctx)
	if res.Offline || res.InProgress {
		// nothing was synced, so the gap starts over
		s.limiter = rate.NewLimiter(s.limiter.Limit(), s.limiter.Burst())
	}
	if s.onResult != nil {
		s.onResult(res, err)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
