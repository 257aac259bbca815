package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/broadcast"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// ErrClosed is returned by mutations submitted after Close.
var ErrClosed = errors.New("task store is closed")

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock sets the clock used for creation defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store is the durable task collection. Mutations run one at a time on a
// single worker goroutine; every committed mutation that changed a row
// publishes fresh snapshots on the observable feeds.
type Store struct {
	db   *gorm.DB
	repo *Repository

	all       *broadcast.Broadcaster[[]domain.Task]
	completed *broadcast.Broadcaster[[]domain.Task]
	pending   *broadcast.Broadcaster[[]domain.Task]

	reads      singleflight.Group
	generation atomic.Uint64

	mutations chan *mutation
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	now    func() time.Time
	logger *slog.Logger
}

type mutation struct {
	op     string
	apply  func(ctx context.Context, repo *Repository) (changed bool, err error)
	result chan error
}

type snapshots struct {
	all       []domain.Task
	completed []domain.Task
	pending   []domain.Task
}

// NewStore loads the current contents of db, publishes them as the initial
// snapshots and starts the mutation worker.
func NewStore(ctx context.Context, db *gorm.DB, opts ...Option) (*Store, error) {
	s := &Store{
		db:        db,
		repo:      NewRepository(db),
		all:       broadcast.New[[]domain.Task]("tasks.all"),
		completed: broadcast.New[[]domain.Task]("tasks.completed"),
		pending:   broadcast.New[[]domain.Task]("tasks.pending"),
		mutations: make(chan *mutation),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	snap, err := s.load(ctx, s.repo)
	if err != nil {
		return nil, &domain.StorageError{Op: "load", Err: err}
	}
	s.publish(snap)

	go s.run()

	s.logger.Info("Task store ready", "tasks", len(snap.all))
	return s, nil
}

// Insert validates t, applies the creation defaults and stores it.
// It returns the assigned ID. A zero DueDate is replaced with now.
func (s *Store) Insert(ctx context.Context, t domain.Task) (int64, error) {
	if t.Persisted() {
		return 0, &domain.ValidationError{Field: "id", Reason: "must be empty for a new task"}
	}
	t = t.Clone().WithDefaults(s.now())
	if err := t.Validate(); err != nil {
		return 0, err
	}

	var id int64
	err := s.submit(ctx, "insert", func(ctx context.Context, repo *Repository) (bool, error) {
		if err := repo.Create(ctx, &t); err != nil {
			return false, err
		}
		id = t.ID
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update replaces every field of the stored task with the same ID.
func (s *Store) Update(ctx context.Context, t domain.Task) error {
	if !t.Persisted() {
		return &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	if err := t.Validate(); err != nil {
		return err
	}
	t = t.Clone()

	return s.submit(ctx, "update", func(ctx context.Context, repo *Repository) (bool, error) {
		if err := repo.Replace(ctx, t); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Modify loads the task with the given ID, applies patch to it and stores
// the result, all inside one mutation. Concurrent Modify calls on the same
// task therefore see each other's changes. It returns the stored task.
func (s *Store) Modify(ctx context.Context, id int64, patch func(*domain.Task) error) (domain.Task, error) {
	if id == 0 {
		return domain.Task{}, &domain.ValidationError{Field: "id", Reason: "is required"}
	}

	var updated domain.Task
	err := s.submit(ctx, "modify", func(ctx context.Context, repo *Repository) (bool, error) {
		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return false, err
		}
		t := current.Clone()
		if err := patch(&t); err != nil {
			return false, err
		}
		t.ID = id
		if err := t.Validate(); err != nil {
			return false, err
		}
		if err := repo.Replace(ctx, t); err != nil {
			return false, err
		}
		updated = t
		return true, nil
	})
	if err != nil {
		return domain.Task{}, err
	}
	return updated.Clone(), nil
}

// SetCompleted sets the completion flag of the task with the given ID.
func (s *Store) SetCompleted(ctx context.Context, id int64, completed bool) error {
	if id == 0 {
		return &domain.ValidationError{Field: "id", Reason: "is required"}
	}
	return s.submit(ctx, "set-completed", func(ctx context.Context, repo *Repository) (bool, error) {
		if err := repo.SetCompleted(ctx, id, completed); err != nil {
			return false, err
		}
		return true, nil
	})
}

// MarkCompleted flags the task as done.
func (s *Store) MarkCompleted(ctx context.Context, id int64) error {
	return s.SetCompleted(ctx, id, true)
}

// Delete removes the task with the given ID. Deleting an absent task is a
// no-op that publishes nothing; removed reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, id int64) (removed bool, err error) {
	err = s.submit(ctx, "delete", func(ctx context.Context, repo *Repository) (bool, error) {
		ok, err := repo.Delete(ctx, id)
		if err != nil {
			return false, err
		}
		removed = ok
		return ok, nil
	})
	return removed, err
}

// GetByID reads one task from storage. found is false when no task has the ID.
// Concurrent reads of the same ID share one query; a caller whose ctx ends
// stops waiting with ctx.Err() without failing the others.
func (s *Store) GetByID(ctx context.Context, id int64) (t domain.Task, found bool, err error) {
	if err := ctx.Err(); err != nil {
		return domain.Task{}, false, err
	}

	key := fmt.Sprintf("%d@%d", id, s.generation.Load())
	shared := context.WithoutCancel(ctx)
	ch := s.reads.DoChan(key, func() (any, error) {
		return s.repo.FindByID(shared, id)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return domain.Task{}, false, ctx.Err()
	}
	if res.Err != nil {
		if errors.Is(res.Err, domain.ErrNotFound) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, &domain.StorageError{Op: "get", Err: res.Err}
	}
	return res.Val.(*domain.Task).Clone(), true, nil
}

// WatchAll subscribes to the full collection in insertion order. The current
// snapshot is delivered first.
func (s *Store) WatchAll(ctx context.Context) *broadcast.Subscription[[]domain.Task] {
	return s.all.Subscribe(ctx)
}

// WatchByStatus subscribes to the tasks with the given completion flag,
// ordered by due date ascending.
func (s *Store) WatchByStatus(ctx context.Context, completed bool) *broadcast.Subscription[[]domain.Task] {
	return s.statusFeed(completed).Subscribe(ctx)
}

// Snapshot returns a copy of the latest full collection.
func (s *Store) Snapshot() []domain.Task {
	return latest(s.all)
}

// SnapshotByStatus returns a copy of the latest status feed value.
func (s *Store) SnapshotByStatus(completed bool) []domain.Task {
	return latest(s.statusFeed(completed))
}

// SubscriberCount returns the number of live subscriptions across all feeds.
func (s *Store) SubscriberCount() int {
	return s.all.SubscriberCount() + s.completed.SubscriberCount() + s.pending.SubscriberCount()
}

// Close stops the worker after the in-flight mutation and ends every
// subscription. The database handle is left open.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		s.all.Close()
		s.completed.Close()
		s.pending.Close()
	})
	return nil
}

func (s *Store) statusFeed(completed bool) *broadcast.Broadcaster[[]domain.Task] {
	if completed {
		return s.completed
	}
	return s.pending
}

func latest(b *broadcast.Broadcaster[[]domain.Task]) []domain.Task {
	v, ok := b.Latest()
	if !ok {
		return []domain.Task{}
	}
	return slices.Clone(v)
}

// submit hands the mutation to the worker and waits for its outcome. A
// mutation that was handed over always runs to completion, even when ctx is
// cancelled afterwards.
func (s *Store) submit(ctx context.Context, op string, apply func(context.Context, *Repository) (bool, error)) error {
	m := &mutation{op: op, apply: apply, result: make(chan error, 1)}

	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.stop:
		return ErrClosed
	default:
	}

	select {
	case s.mutations <- m:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stop:
		return ErrClosed
	}
	return <-m.result
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case m := <-s.mutations:
			m.result <- s.execute(m)
		case <-s.stop:
			return
		}
	}
}

func (s *Store) execute(m *mutation) error {
	ctx := context.Background()

	var (
		changed bool
		snap    snapshots
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		ok, err := m.apply(ctx, repo)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		changed = true

		snap, err = s.load(ctx, repo)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
			return err
		}
		s.logger.Error("Task mutation failed", "op", m.op, "error", err)
		return &domain.StorageError{Op: m.op, Err: err}
	}

	if changed {
		s.generation.Add(1)
		s.publish(snap)
		s.logger.Debug("Task mutation applied", "op", m.op, "tasks", len(snap.all))
	}
	return nil
}

func (s *Store) load(ctx context.Context, repo *Repository) (snapshots, error) {
	all, err := repo.FindAll(ctx)
	if err != nil {
		return snapshots{}, err
	}
	completed, err := repo.FindByStatus(ctx, true)
	if err != nil {
		return snapshots{}, err
	}
	pending, err := repo.FindByStatus(ctx, false)
	if err != nil {
		return snapshots{}, err
	}
	return snapshots{all: all, completed: completed, pending: pending}, nil
}

func (s *Store) publish(snap snapshots) {
	s.all.Publish(snap.all)
	s.completed.Publish(snap.completed)
	s.pending.Publish(snap.pending)
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Count returns the number of stored tasks.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.repo.Count(ctx)
}
