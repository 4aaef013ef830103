package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Probe performs one reachability check. A nil error means online.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error { return f(ctx) }

const (
	DefaultInterval  = 3 * time.Second
	DefaultThreshold = 2
)

// Observer publishes debounced connectivity state.
//
// The first observation sets the state directly. After that a transition is
// published only once Threshold consecutive observations disagree with the
// current state.
type Observer struct {
	probe     Probe
	interval  time.Duration
	threshold int
	log       logging.Logger

	mu        sync.Mutex
	known     bool
	online    bool
	streak    int
	subs      map[int]func(online bool)
	nextSubId int
}

type Option func(*Observer)

func WithInterval(d time.Duration) Option {
	return func(o *Observer) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithThreshold(n int) Option {
	return func(o *Observer) {
		if n > 0 {
			o.threshold = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(o *Observer) { o.log = l }
}

// NewObserver creates an Observer. probe may be nil when state only arrives
// through Report.
func NewObserver(probe Probe, opts ...Option) *Observer {
	o := &Observer{
		probe:     probe,
		interval:  DefaultInterval,
		threshold: DefaultThreshold,
		log:       logging.Nop(),
		subs:      make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.log = o.log.With("module", "connectivity")
	return o
}

// Online returns the current debounced state. Before any observation the
// remote is assumed unreachable.
func (o *Observer) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.online
}

// Subscribe registers fn for state transitions. fn runs on the goroutine that
// made the deciding observation and must not block.
func (o *Observer) Subscribe(fn func(online bool)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextSubId
	o.nextSubId++
	o.subs[id] = fn
	o.mu.Unlock()

	return func() {
		o.mu.Lock()
		delete(o.subs, id)
		o.mu.Unlock()
	}
}

// Report feeds an observation pushed by the host platform.
func (o *Observer) Report(online bool) {
	o.observe(context.Background(), online)
}

// Check runs the probe once, records the observation and returns the
// resulting state.
func (o *Observer) Check(ctx context.Context) bool {
	if o.probe == nil {
		return o.Online()
	}
	err := o.probe.Probe(ctx)
	if err != nil && ctx.Err() != nil {
		// cancelled, not a real observation
		return o.Online()
	}
	if err != nil {
		o.log.Debug(ctx, "probe failed", "err", err)
	}
	o.observe(ctx, err == nil)
	return o.Online()
}

// Run probes immediately and then every interval until ctx is done.
func (o *Observer) Run(ctx context.Context) {
	o.Check(ctx)

	t := time.NewTicker(o.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.Check(ctx)
		}
	}
}

func (o *Observer) observe(ctx context.Context, online bool) {
	o.mu.Lock()
	changed := false
	switch {
	case !o.known:
		o.known = true
		o.online = online
		changed = true
	case online == o.online:
		o.streak = 0
	default:
		o.streak++
		if o.streak >= o.threshold {
			o.online = online
			o.streak = 0
			changed = true
		}
	}

	var fns []func(bool)
	if changed {
		fns = make([]func(bool), 0, len(o.subs))
		for _, fn := range o.subs {
			fns = append(fns, fn)
		}
	}
	o.mu.Unlock()

	if !changed {
		return
	}
	o.log.Info(ctx, "connectivity changed", "online", online)
	for _, fn := range fns {
		fn(online)
	}
}
