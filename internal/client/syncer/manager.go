package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/assets"
	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Store is the part of store.Store the manager drives.
type Store interface {
	ListPending(ctx context.Context, now time.Time) (store.PendingSet, error)
	PendingCount(ctx context.Context) (int, error)
	GetEntry(ctx context.Context, id string) (*models.Entry, error)

	MarkInspectionSynced(ctx context.Context, id string, revision, version int64) (bool, error)
	MarkEntrySynced(ctx context.Context, id string, revision, version int64) (bool, error)
	MarkInspectionConflict(ctx context.Context, id string, serverVersion int64) error
	MarkEntryConflict(ctx context.Context, id string, serverVersion int64) error
	RecordPushFailure(ctx context.Context, kind models.RecordKind, id string, attempts int, nextAt time.Time, cause error) error
	ResetBackoff(ctx context.Context) error
	ReplaceAttachment(ctx context.Context, entryId, attachmentId, remoteRef, digest string) error

	SaveInspection(ctx context.Context, in models.Inspection) (bool, error)
	SetLastPullAt(ctx context.Context, at time.Time) error
}

// Uploads is the part of assets.Pipeline the manager drives.
type Uploads interface {
	UploadAll(ctx context.Context, attachments []models.Attachment) []assets.Outcome
}

type Connectivity interface {
	Online() bool
}

var ErrOffline = errors.New("offline")

// Result summarizes one StartSync call. Failed includes Skipped.
type Result struct {
	Succeeded  int
	Failed     int
	Conflicted int
	// Skipped counts entries not pushed because the server does not know
	// their inspection yet, or because they left pending while their
	// attachments were uploading.
	Skipped  int
	Uploaded int
	Pulled   int

	PullError error

	// InProgress is set when another run was already in flight; nothing
	// else was done.
	InProgress bool
	// Offline is set when connectivity was down; nothing else was done.
	Offline bool
}

type Manager struct {
	store   Store
	remote  client.Client
	uploads Uploads
	conn    Connectivity
	backoff Backoff
	metrics *Metrics
	log     logging.Logger
	now     func() time.Time

	running sync.Mutex
}

type Option func(*Manager)

func WithBackoff(b Backoff) Option {
	return func(m *Manager) { m.backoff = b }
}

func WithMetrics(mt *Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(st Store, remote client.Client, uploads Uploads, conn Connectivity, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		remote:  remote,
		uploads: uploads,
		conn:    conn,
		backoff: NewBackoff(DefaultBackoffBase, DefaultBackoffCap),
		log:     logging.Nop(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = NewMetrics(nil)
	}
	m.log = m.log.With("module", "syncer")
	return m
}

// GetPendingCount returns pending inspections plus pending entries.
// Conflicts are not counted.
func (m *Manager) GetPendingCount(ctx context.Context) (int, error) {
	n, err := m.store.PendingCount(ctx)
	if err != nil {
		return 0, err
	}
	m.metrics.Pending.Set(float64(n))
	return n, nil
}

// ResetBackoff makes every pending record eligible on the next run.
func (m *Manager) ResetBackoff(ctx context.Context) error {
	return m.store.ResetBackoff(ctx)
}

// StartSync runs one sync pass. A call made while another pass is running
// returns immediately with InProgress set. The returned error is non-nil only
// for failures that make continuing pointless: the store failing or the
// session being rejected.
func (m *Manager) StartSync(ctx context.Context) (Result, error) {
	if !m.running.TryLock() {
		m.metrics.Runs.WithLabelValues(outcomeInProgress).Inc()
		return Result{InProgress: true}, nil
	}
	defer m.running.Unlock()

	if m.conn != nil && !m.conn.Online() {
		m.metrics.Runs.WithLabelValues(outcomeOffline).Inc()
		return Result{Offline: true}, nil
	}

	start := m.now()
	res, err := m.run(ctx)
	m.metrics.RunDuration.Observe(m.now().Sub(start).Seconds())

	switch {
	case err != nil:
		m.metrics.Runs.WithLabelValues(outcomeError).Inc()
		m.log.Error(ctx, "sync run aborted", "err", err)
	case res.Failed > 0 || res.PullError != nil:
		m.metrics.Runs.WithLabelValues(outcomePartial).Inc()
	default:
		m.metrics.Runs.WithLabelValues(outcomeOK).Inc()
	}

	if err == nil {
		if _, cerr := m.GetPendingCount(ctx); cerr != nil {
			m.log.Warn(ctx, "could not refresh pending count", "err", cerr)
		}
	}

	m.log.Info(ctx, "sync run finished",
		"succeeded", res.Succeeded, "failed", res.Failed, "conflicted", res.Conflicted,
		"uploaded", res.Uploaded, "pulled", res.Pulled)
	return res, err
}

func (m *Manager) run(ctx context.Context) (Result, error) {
	var res Result

	set, err := m.store.ListPending(ctx, m.now())
	if err != nil {
		return res, fmt.Errorf("list pending: %w", err)
	}

	// answered holds inspections the server accepted or rejected with a
	// conflict in this run; either way it knows them now.
	answered := make(map[string]bool)
	for _, p := range set.Inspections {
		if ctx.Err() != nil {
			return res, nil
		}
		ack, perr := m.remote.PushInspection(ctx, p.Inspection)
		failed, err := m.settle(ctx, models.KindInspection, p.Id, p.Revision, p.Attempts, ack, perr, &res)
		if err != nil {
			return res, err
		}
		if !failed {
			answered[p.Id] = true
		}
	}

	for _, p := range set.Entries {
		if ctx.Err() != nil {
			return res, nil
		}
		if p.ParentUnacknowledged && !answered[p.InspectionId] {
			m.log.Debug(ctx, "entry waits for its inspection", "entry", p.Id, "inspection", p.InspectionId)
			res.Failed++
			res.Skipped++
			continue
		}
		if err := m.syncEntry(ctx, p, &res); err != nil {
			return res, err
		}
	}

	if ctx.Err() != nil {
		return res, nil
	}
	if err := m.pull(ctx, &res); err != nil {
		return res, err
	}
	return res, nil
}

func (m *Manager) syncEntry(ctx context.Context, p store.PendingEntry, res *Result) error {
	e := p.Entry

	if local := e.LocalAttachments(); len(local) > 0 {
		var uploadErr error
		outcomes := m.uploads.UploadAll(ctx, local)
		wctx := context.WithoutCancel(ctx)
		for _, o := range outcomes {
			if o.Err != nil {
				m.metrics.Uploads.WithLabelValues(resultFailed).Inc()
				uploadErr = errors.Join(uploadErr, o.Err)
				continue
			}
			if err := m.store.ReplaceAttachment(wctx, e.Id, o.Attachment.Id, o.RemoteRef, o.Digest); err != nil {
				return fmt.Errorf("commit upload of %s: %w", o.Attachment.Id, err)
			}
			m.metrics.Uploads.WithLabelValues(resultOK).Inc()
			res.Uploaded++
		}

		if uploadErr != nil {
			if ctx.Err() != nil {
				res.Failed++
				return nil
			}
			m.log.Warn(ctx, "attachment upload failed", "entry", e.Id, "err", uploadErr)
			return m.recordFailure(ctx, models.KindEntry, e.Id, p.Attempts, uploadErr, res)
		}
		if ctx.Err() != nil {
			return nil
		}

		fresh, err := m.store.GetEntry(ctx, e.Id)
		if err != nil {
			return fmt.Errorf("reload entry %s: %w", e.Id, err)
		}
		if fresh.SyncStatus != models.StatusPending {
			m.log.Debug(ctx, "entry left pending during upload", "entry", e.Id, "status", fresh.SyncStatus)
			res.Failed++
			res.Skipped++
			return nil
		}
		e = *fresh
	}

	// The acknowledgement uses the enumerated revision: replacing references
	// does not bump it, user edits made meanwhile do.
	ack, perr := m.remote.PushEntry(ctx, e)
	_, err := m.settle(ctx, models.KindEntry, e.Id, p.Revision, p.Attempts, ack, perr, res)
	return err
}

// settle applies the outcome of one push. failed reports a transient
// failure; err is set only for failures that abort the run.
//
// Store writes use a context detached from cancellation: once the server has
// answered, the answer is recorded even if the run is being cancelled.
func (m *Manager) settle(ctx context.Context, kind models.RecordKind, id string, revision int64, attempts int, ack client.Ack, perr error, res *Result) (failed bool, err error) {
	runCtx := ctx
	ctx = context.WithoutCancel(ctx)
	var conflict *client.ConflictError

	switch {
	case perr == nil:
		var synced bool
		if kind == models.KindInspection {
			synced, err = m.store.MarkInspectionSynced(ctx, id, revision, ack.Version)
		} else {
			synced, err = m.store.MarkEntrySynced(ctx, id, revision, ack.Version)
		}
		if err != nil {
			return false, fmt.Errorf("acknowledge %s %s: %w", kind, id, err)
		}
		if !synced {
			m.log.Debug(ctx, "record edited during push, staying pending", "kind", kind, "id", id)
		}
		m.metrics.Pushes.WithLabelValues(string(kind), resultOK).Inc()
		res.Succeeded++
		return false, nil

	case errors.Is(perr, client.ErrUnauthorized):
		return false, fmt.Errorf("push %s %s: %w", kind, id, perr)

	case errors.As(perr, &conflict):
		if kind == models.KindInspection {
			err = m.store.MarkInspectionConflict(ctx, id, conflict.Version)
		} else {
			err = m.store.MarkEntryConflict(ctx, id, conflict.Version)
		}
		if err != nil {
			return false, fmt.Errorf("mark conflict on %s %s: %w", kind, id, err)
		}
		m.log.Warn(ctx, "push rejected with version conflict", "kind", kind, "id", id, "server_version", conflict.Version)
		m.metrics.Pushes.WithLabelValues(string(kind), resultConflict).Inc()
		res.Conflicted++
		return false, nil
	}

	m.metrics.Pushes.WithLabelValues(string(kind), resultFailed).Inc()
	if runCtx.Err() != nil {
		res.Failed++
		return true, nil
	}
	m.log.Warn(ctx, "push failed", "kind", kind, "id", id, "err", perr)
	return true, m.recordFailure(ctx, kind, id, attempts, fmt.Errorf("%w: %w", common.ErrPushFailed, perr), res)
}

func (m *Manager) recordFailure(ctx context.Context, kind models.RecordKind, id string, attempts int, cause error, res *Result) error {
	attempts++
	next := m.now().Add(m.backoff.Delay(attempts))
	if err := m.store.RecordPushFailure(ctx, kind, id, attempts, next, cause); err != nil {
		return fmt.Errorf("record failure of %s %s: %w", kind, id, err)
	}
	res.Failed++
	return nil
}

func (m *Manager) pull(ctx context.Context, res *Result) error {
	list, err := m.remote.ListMine(ctx)
	if errors.Is(err, client.ErrUnauthorized) {
		return fmt.Errorf("pull: %w", err)
	}
	if err != nil {
		m.log.Warn(ctx, "pull failed", "err", err)
		res.PullError = err
		return nil
	}

	for _, in := range list {
		applied, err := m.store.SaveInspection(ctx, in)
		if err != nil {
			return fmt.Errorf("ingest inspection %s: %w", in.Id, err)
		}
		if applied {
			res.Pulled++
			m.metrics.Pulled.Inc()
		}
	}

	if err := m.store.SetLastPullAt(ctx, m.now()); err != nil {
		return fmt.Errorf("record pull time: %w", err)
	}
	return nil
}

// CopyInspection asks the server to copy an inspection and stores the copy.
func (m *Manager) CopyInspection(ctx context.Context, id string, opts client.CopyOptions) (*models.Inspection, error) {
	if m.conn != nil && !m.conn.Online() {
		return nil, ErrOffline
	}

	in, err := m.remote.CopyInspection(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("copy inspection %s: %w", id, err)
	}
	if _, err := m.store.SaveInspection(ctx, *in); err != nil {
		return nil, fmt.Errorf("store copy %s: %w", in.Id, err)
	}
	return in, nil
}
