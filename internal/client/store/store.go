package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/client/migrations"
	"github.com/dmitrijs2005/fieldsync/internal/client/models"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/entries"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/inspections"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/ledger"
	"github.com/dmitrijs2005/fieldsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldsync/internal/common"
	"github.com/dmitrijs2005/fieldsync/internal/dbx"
	"github.com/dmitrijs2005/fieldsync/internal/filex"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is the local persistent store. Construct it with New and call
// Initialize before any other method.
type Store struct {
	path  string
	log   logging.Logger
	now   func() time.Time
	newId func() string

	mu sync.RWMutex
	db *sqlx.DB

	writeMu sync.Mutex

	lmu       sync.Mutex
	listeners map[int]func(Change)
	nextLid   int
}

// Option customizes a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIdGenerator replaces the UUID generator used for new records.
func WithIdGenerator(fn func() string) Option {
	return func(s *Store) { s.newId = fn }
}

// New returns a Store backed by the database file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:      path,
		log:       logging.Nop(),
		now:       time.Now,
		newId:     func() string { return uuid.NewString() },
		listeners: make(map[int]func(Change)),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("module", "store")
	return s
}

// Initialize opens or creates the database and applies migrations. Calling
// it on an initialized store is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if err := filex.EnsureParentDir(s.path); err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	db, err := dbx.OpenSQLite(ctx, s.path)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if err := migrations.Up(ctx, db.DB); err != nil {
		_ = db.Close()
		return fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	s.db = db
	s.log.Info(ctx, "local store ready", "path", s.path)
	return nil
}

// Close releases the database. The store may be initialized again later.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, common.ErrNotInitialized
	}
	return s.db, nil
}

// repos groups repositories bound to one handle, either the pool or a
// transaction.
type repos struct {
	inspections inspections.Repository
	entries     entries.Repository
	ledger      ledger.Repository
	metadata    metadata.Repository

	changes []Change
}

func newRepos(q dbx.DBTX) *repos {
	return &repos{
		inspections: inspections.NewSQLiteRepository(q),
		entries:     entries.NewSQLiteRepository(q),
		ledger:      ledger.NewSQLiteRepository(q),
		metadata:    metadata.NewSQLiteRepository(q),
	}
}

func (r *repos) changed(kind models.RecordKind, id, inspectionId string, op ChangeOp) {
	r.changes = append(r.changes, Change{Kind: kind, Id: id, InspectionId: inspectionId, Op: op})
}

func (s *Store) reader() (*repos, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	return newRepos(db), nil
}

// write runs fn in one transaction under the write mutex and notifies
// listeners once the transaction has committed.
func (s *Store) write(ctx context.Context, fn func(ctx context.Context, r *repos) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}

	changes, err := func() ([]Change, error) {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()

		var r *repos
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			r = newRepos(tx)
			return fn(ctx, r)
		})
		if err != nil {
			return nil, err
		}
		return r.changes, nil
	}()
	if err != nil {
		return err
	}

	s.notify(changes)
	return nil
}

// snapshot runs fn in a read transaction so multi-table reads see one
// consistent state. It does not take the write mutex.
func (s *Store) snapshot(ctx context.Context, fn func(ctx context.Context, r *repos) error) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	return dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
}

// localStatus is the status a record takes after a local write: conflict
// stays conflict until resolved, everything else becomes pending.
func localStatus(cur models.SyncStatus) models.SyncStatus {
	if cur == models.StatusConflict {
		return models.StatusConflict
	}
	return models.StatusPending
}
