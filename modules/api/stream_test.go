package api

import (
	"context"
	"testing"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/broadcast"
	"github.com/example/task-manager/modules/tasklist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticFeed struct {
	b *broadcast.Broadcaster[[]domain.Task]
}

func (f staticFeed) WatchAll(ctx context.Context) *broadcast.Subscription[[]domain.Task] {
	return f.b.Subscribe(ctx)
}

func TestApplyCommand(t *testing.T) {
	feed := staticFeed{b: broadcast.New[[]domain.Task]("test")}
	feed.b.Publish([]domain.Task{
		{ID: 1, Title: "b", DueDate: 2},
		{ID: 2, Title: "a", DueDate: 1, IsCompleted: true},
	})

	view := tasklist.New(context.Background(), feed, domain.DefaultQuery())
	defer view.Close()

	require.NoError(t, applyCommand(view, StreamCommand{Type: "sort", Value: "Alphabetically"}))
	require.NoError(t, applyCommand(view, StreamCommand{Type: "filter", Value: "pending"}))
	assert.Equal(t, domain.SortAlphabetical, view.Query().Sort)
	assert.Equal(t, domain.FilterPending, view.Query().Filter)

	assert.Eventually(t, func() bool {
		cur := view.Current()
		return len(cur) == 1 && cur[0].ID == 1
	}, time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, applyCommand(view, StreamCommand{Type: "sort", Value: "colour"}), domain.ErrValidation)
	assert.ErrorIs(t, applyCommand(view, StreamCommand{Type: "filter", Value: "done"}), domain.ErrValidation)
	assert.Error(t, applyCommand(view, StreamCommand{Type: "refresh"}))
}

func TestParseQuery(t *testing.T) {
	m := NewModule(Config{PriorityOrder: domain.PriorityOrderLexical})

	q, err := m.parseQuery("", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SortByDueDate, q.Sort)
	assert.Equal(t, domain.FilterAll, q.Filter)
	assert.Equal(t, domain.PriorityOrderLexical, q.PriorityOrder)

	_, err = m.parseQuery("Priority", "sometimes")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestListMessage(t *testing.T) {
	desc := "details"
	msg := listMessage(
		domain.Query{Sort: domain.SortByPriority, Filter: domain.FilterAll},
		[]domain.Task{{ID: 3, Title: "x", Description: &desc, Priority: domain.PriorityHigh}},
	)

	assert.Equal(t, "tasks", msg.Type)
	assert.Equal(t, "Priority", msg.Sort)
	assert.Equal(t, "All", msg.Filter)
	require.Len(t, msg.Tasks, 1)
	assert.Equal(t, "details", msg.Tasks[0].DescriptionText)
	assert.Equal(t, "01/01/1970", msg.Tasks[0].Due)

	empty := listMessage(domain.DefaultQuery(), nil)
	assert.NotNil(t, empty.Tasks)
	assert.Equal(t, 0, empty.Total)
}
