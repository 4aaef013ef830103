package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/assets"
	"github.com/dmitrijs2005/fieldsync/internal/client/client"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/store"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory API server that enforces base versions.
type fakeRemote struct {
	mu          sync.Mutex
	inspections map[string]models.Inspection
	entries     map[string]models.Entry

	inspectionPushes int
	entryPushes      int
	lists            int

	failInspection func(id string) error
	failEntry      func(id string) error
	listErr        error

	// gate, when set, blocks pushes until closed; entered is signalled first.
	gate    chan struct{}
	entered chan struct{}
	// duringPush runs inside a push before the server answers.
	duringPush func(kind models.RecordKind, id string)
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		inspections: map[string]models.Inspection{},
		entries:     map[string]models.Entry{},
	}
}

func (f *fakeRemote) seed(in models.Inspection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range in.Entries {
		e.InspectionId = in.Id
		f.entries[e.Id] = e
	}
	in.Entries = nil
	f.inspections[in.Id] = in
}

func (f *fakeRemote) enter(kind models.RecordKind, id string) {
	f.mu.Lock()
	gate, entered, hook := f.gate, f.entered, f.duringPush
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		<-gate
	}
	if hook != nil {
		hook(kind, id)
	}
}

func (f *fakeRemote) PushInspection(ctx context.Context, in models.Inspection) (client.Ack, error) {
	f.mu.Lock()
	f.inspectionPushes++
	f.mu.Unlock()

	f.enter(models.KindInspection, in.Id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInspection != nil {
		if err := f.failInspection(in.Id); err != nil {
			return client.Ack{}, err
		}
	}
	cur, ok := f.inspections[in.Id]
	if ok && in.Version != cur.Version {
		return client.Ack{}, &client.ConflictError{Id: in.Id, Version: cur.Version}
	}
	if ok {
		in.Template = cur.Template
	}
	in.Version = cur.Version + 1
	in.Entries = nil
	in.SyncStatus = ""
	f.inspections[in.Id] = in
	return client.Ack{Id: in.Id, Version: in.Version}, nil
}

func (f *fakeRemote) PushEntry(ctx context.Context, e models.Entry) (client.Ack, error) {
	f.mu.Lock()
	f.entryPushes++
	f.mu.Unlock()

	f.enter(models.KindEntry, e.Id)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEntry != nil {
		if err := f.failEntry(e.Id); err != nil {
			return client.Ack{}, err
		}
	}
	if _, ok := f.inspections[e.InspectionId]; !ok {
		return client.Ack{}, fmt.Errorf("inspection %s: %w", e.InspectionId, common.ErrNotFound)
	}
	for _, a := range e.Attachments {
		if !a.IsRemote() {
			return client.Ack{}, fmt.Errorf("%w: local attachment pushed", client.ErrRejected)
		}
	}
	cur, ok := f.entries[e.Id]
	if ok && e.Version != cur.Version {
		return client.Ack{}, &client.ConflictError{Id: e.Id, Version: cur.Version}
	}
	e.Version = cur.Version + 1
	e.SyncStatus = ""
	f.entries[e.Id] = e
	return client.Ack{Id: e.Id, Version: e.Version}, nil
}

func (f *fakeRemote) ListMine(ctx context.Context) ([]models.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	out := make([]models.Inspection, 0, len(f.inspections))
	for _, in := range f.inspections {
		for _, e := range f.entries {
			if e.InspectionId == in.Id {
				in.Entries = append(in.Entries, e)
			}
		}
		sort.Slice(in.Entries, func(i, j int) bool { return in.Entries[i].Id < in.Entries[j].Id })
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out, nil
}

func (f *fakeRemote) CopyInspection(ctx context.Context, id string, opts client.CopyOptions) (*models.Inspection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.inspections[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := src
	cp.Id = id + "-copy"
	cp.Type = opts.Type
	cp.ScheduledAt = opts.ScheduledAt
	cp.Status = models.LifecycleScheduled
	cp.Version = 1
	if !opts.CopyText {
		cp.Notes = ""
	}
	f.inspections[cp.Id] = cp
	return &cp, nil
}

func (f *fakeRemote) Health(context.Context) error { return nil }

func (f *fakeRemote) pushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inspectionPushes + f.entryPushes
}

func (f *fakeRemote) entry(id string) models.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries[id]
}

// memStorage is an assets.Uploader keeping objects in memory.
type memStorage struct {
	mu    sync.Mutex
	puts  atomic.Int32
	fail  map[string]error
	store map[string][]byte
	// onPut runs before each object is stored.
	onPut func(key string)
}

func newMemStorage() *memStorage {
	return &memStorage{fail: map[string]error{}, store: map[string][]byte{}}
}

func (m *memStorage) Put(ctx context.Context, obj assets.Object) (string, error) {
	m.puts.Add(1)
	if m.onPut != nil {
		m.onPut(obj.Key)
	}
	b, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[string(b)]; err != nil {
		return "", err
	}
	m.store[obj.Key] = b
	return "https://cdn.test/" + obj.Key, nil
}

type switchConn struct{ on atomic.Bool }

func (c *switchConn) Online() bool { return c.on.Load() }

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type env struct {
	dbPath  string
	st      *store.Store
	remote  *fakeRemote
	objects *memStorage
	conn    *switchConn
	clock   *testClock
	metrics *Metrics
	m       *Manager
}

func newEnv(t *testing.T) *env {
	t.Helper()

	e := &env{
		dbPath:  filepath.Join(t.TempDir(), "local.db"),
		remote:  newFakeRemote(),
		objects: newMemStorage(),
		conn:    &switchConn{},
		clock:   &testClock{t: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)},
		metrics: NewMetrics(nil),
	}
	e.conn.on.Store(true)
	e.open(t)
	return e
}

// open (re)creates the store and manager on the same database file.
func (e *env) open(t *testing.T) {
	t.Helper()

	e.st = store.New(e.dbPath)
	require.NoError(t, e.st.Initialize(context.Background()))
	st := e.st
	t.Cleanup(func() { _ = st.Close() })

	pipeline := assets.NewPipeline(e.objects, e.conn, assets.WithConcurrency(2))
	e.m = NewManager(e.st, e.remote, pipeline, e.conn,
		WithClock(e.clock.Now),
		WithMetrics(e.metrics),
	)
}

func (e *env) photo(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

var errBoom = errors.New("boom")
