// Package pending answers the "what still needs to sync" questions a UI
// asks: per-inspection badges and owner-wide totals. It is a read-only view
// over the local store and keeps no state of its own beyond a short-lived
// cache that store change notifications invalidate.
package pending

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/patrickmn/go-cache"
)

const (
	LabelSynced   = "synced"
	LabelConflict = "conflict"

	DefaultTTL = 2 * time.Second

	badgePrefix   = "badge:"
	summaryPrefix = "summary:"
)

// Store is the part of store.Store the accessor reads.
type Store interface {
	InspectionBadge(ctx context.Context, inspectionId string) (store.Badge, error)
	StatusCounts(ctx context.Context, ownerId string) (store.Counts, error)
	OnChange(fn func(store.Change)) (unsubscribe func())
}

// Summary is the owner-wide sync state.
type Summary struct {
	Pending   int
	Conflicts int
	Label     string
}

type Accessor struct {
	store Store
	cache *cache.Cache
	ttl   time.Duration
	log   logging.Logger

	// gen is bumped on every change so that a read racing a write does not
	// cache what it saw before the write. mu makes the bump and the cache
	// deletes one step, and the check and Set in remember another.
	mu          sync.Mutex
	gen         uint64
	unsubscribe func()
}

type Option func(*Accessor)

func WithTTL(d time.Duration) Option {
	return func(a *Accessor) {
		if d > 0 {
			a.ttl = d
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(a *Accessor) { a.log = l }
}

func NewAccessor(st Store, opts ...Option) *Accessor {
	a := &Accessor{
		store: st,
		ttl:   DefaultTTL,
		log:   logging.Nop(),
	}
	for _, o := range opts {
		o(a)
	}
	a.cache = cache.New(a.ttl, 2*a.ttl)
	a.log = a.log.With("module", "pending")
	a.unsubscribe = st.OnChange(a.invalidate)
	return a
}

// Close stops listening to store changes.
func (a *Accessor) Close() {
	a.unsubscribe()
}

func (a *Accessor) invalidate(c store.Change) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.gen++
	if c.InspectionId != "" {
		a.cache.Delete(badgePrefix + c.InspectionId)
	}
	for k := range a.cache.Items() {
		if strings.HasPrefix(k, summaryPrefix) {
			a.cache.Delete(k)
		}
	}
}

// Badge returns "synced", "N pending" or "conflict" for one inspection. A
// conflict anywhere in the inspection wins over pending work.
func (a *Accessor) Badge(ctx context.Context, inspectionId string) (string, error) {
	key := badgePrefix + inspectionId
	if v, found := a.cache.Get(key); found {
		return v.(string), nil
	}

	gen := a.generation()
	b, err := a.store.InspectionBadge(ctx, inspectionId)
	if err != nil {
		return "", err
	}

	label := BadgeLabel(b)
	a.remember(gen, key, label)
	return label, nil
}

// BadgeLabel renders a store badge.
func BadgeLabel(b store.Badge) string {
	if b.Status == models.StatusConflict || b.ConflictEntries > 0 {
		return LabelConflict
	}
	n := b.PendingEntries
	if b.Status == models.StatusPending {
		n++
	}
	return label(n)
}

func label(pending int) string {
	if pending == 0 {
		return LabelSynced
	}
	return fmt.Sprintf("%d pending", pending)
}

// Summary totals pending and conflicting records for an owner; an empty
// ownerId covers every owner.
func (a *Accessor) Summary(ctx context.Context, ownerId string) (Summary, error) {
	key := summaryPrefix + ownerId
	if v, found := a.cache.Get(key); found {
		return v.(Summary), nil
	}

	gen := a.generation()
	c, err := a.store.StatusCounts(ctx, ownerId)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Pending: c.Pending(), Conflicts: c.Conflicts()}
	switch {
	case s.Conflicts > 0:
		s.Label = fmt.Sprintf("%d conflicts", s.Conflicts)
		if s.Conflicts == 1 {
			s.Label = "1 conflict"
		}
	default:
		s.Label = label(s.Pending)
	}

	a.remember(gen, key, s)
	return s, nil
}

func (a *Accessor) generation() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gen
}

func (a *Accessor) remember(gen uint64, key string, v any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gen != gen {
		return
	}
	a.cache.Set(key, v, cache.DefaultExpiration)
}

// Watch calls fn with the owner's summary right away and then every
// interval until ctx is done. Read errors are logged and skipped.
func (a *Accessor) Watch(ctx context.Context, ownerId string, interval time.Duration, fn func(Summary)) {
	emit := func() {
		s, err := a.Summary(ctx, ownerId)
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warn(ctx, "could not read sync summary", "err", err)
			}
			return
		}
		fn(s)
	}

	emit()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			emit()
		}
	}
}
