// Package tasklist derives sorted and filtered task lists from the store feed.
package tasklist

import (
	"context"
	"slices"
	"sync"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/broadcast"
)

// Source publishes the full task collection.
type Source interface {
	WatchAll(ctx context.Context) *broadcast.Subscription[[]domain.Task]
}

// List is one derived list together with the query that produced it.
type List struct {
	Query domain.Query
	Tasks []domain.Task
}

// View is a live list: the latest store snapshot passed through a Query.
// A new list is published whenever the snapshot, the sort key or the filter
// key changes.
type View struct {
	mu       sync.Mutex
	query    domain.Query
	snapshot []domain.Task
	ready    bool
	current  []domain.Task

	out    *broadcast.Broadcaster[List]
	cancel context.CancelFunc
	done   chan struct{}
}

// New starts a view over src. The view stops when ctx is done, when Close is
// called, or when the source feed ends.
func New(ctx context.Context, src Source, q domain.Query) *View {
	ctx, cancel := context.WithCancel(ctx)
	v := &View{
		query:   q,
		current: []domain.Task{},
		out:     broadcast.New[List]("tasklist"),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go v.run(src.WatchAll(ctx))
	return v
}

func (v *View) run(sub *broadcast.Subscription[[]domain.Task]) {
	defer close(v.done)
	defer v.out.Close()

	for snapshot := range sub.C() {
		v.mu.Lock()
		v.snapshot = snapshot
		v.ready = true
		v.recompute()
		v.mu.Unlock()
	}
}

// recompute must be called with v.mu held.
func (v *View) recompute() {
	v.current = domain.Apply(v.snapshot, v.query)
	v.out.Publish(List{Query: v.query, Tasks: v.current})
}

// SetSort changes the sort key.
func (v *View) SetSort(key domain.SortKey) {
	v.update(func(q *domain.Query) { q.Sort = key })
}

// SetFilter changes the filter key.
func (v *View) SetFilter(key domain.FilterKey) {
	v.update(func(q *domain.Query) { q.Filter = key })
}

// SetQuery replaces the whole query.
func (v *View) SetQuery(q domain.Query) {
	v.update(func(cur *domain.Query) { *cur = q })
}

func (v *View) update(change func(*domain.Query)) {
	v.mu.Lock()
	defer v.mu.Unlock()

	q := v.query
	change(&q)
	if q == v.query {
		return
	}
	v.query = q
	if v.ready {
		v.recompute()
	}
}

// Query returns the active query.
func (v *View) Query() domain.Query {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.query
}

// Current returns a copy of the latest derived list.
func (v *View) Current() []domain.Task {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.current)
}

// Subscribe delivers the latest derived list followed by every later one.
// Subscribers must not modify the delivered tasks.
func (v *View) Subscribe(ctx context.Context) *broadcast.Subscription[List] {
	return v.out.Subscribe(ctx)
}

// Done is closed once the view has stopped.
func (v *View) Done() <-chan struct{} {
	return v.done
}

// Close stops the view and ends its subscriptions.
func (v *View) Close() {
	v.cancel()
	<-v.done
}
