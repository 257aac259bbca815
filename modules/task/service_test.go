package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestModule(t *testing.T) *TaskModule {
	t.Helper()

	m := NewModule(Options{
		Database: DatabaseConfig{Path: ":memory:"},
		Clock:    func() time.Time { return testNow },
	})
	require.NoError(t, m.Start(context.Background()))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func TestService_CreateTask(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	t.Run("applies defaults and trims input", func(t *testing.T) {
		resp, err := m.createTask(ctx, CreateTaskRequest{Title: "  Buy milk  ", Description: "   "}, nil)
		require.NoError(t, err)
		require.Nil(t, resp.Error)

		assert.Equal(t, int64(1), resp.ID)
		assert.Equal(t, "Buy milk", resp.Title)
		assert.Nil(t, resp.Description)
		assert.Equal(t, string(domain.PriorityLow), resp.Priority)
		assert.Equal(t, testNow.UnixMilli(), resp.DueDate)
	})

	t.Run("blank title is a validation error", func(t *testing.T) {
		resp, err := m.createTask(ctx, CreateTaskRequest{Title: ""}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, CodeValidation, resp.Error.Code)
		assert.Equal(t, "title", resp.Error.Field)
	})

	t.Run("unknown priority is a validation error", func(t *testing.T) {
		resp, err := m.createTask(ctx, CreateTaskRequest{Title: "x", Priority: "urgent"}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "priority", resp.Error.Field)
	})

	t.Run("priority label is case insensitive", func(t *testing.T) {
		resp, err := m.createTask(ctx, CreateTaskRequest{Title: "x", Priority: "high", DueDate: 42}, nil)
		require.NoError(t, err)
		require.Nil(t, resp.Error)
		assert.Equal(t, "High", resp.Priority)
		assert.Equal(t, int64(42), resp.DueDate)
	})
}

func TestService_GetTask(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{Title: "Find me", Description: "details"}, nil)
	require.NoError(t, err)

	resp, err := m.getTask(ctx, GetTaskRequest{TaskID: created.ID}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	require.NotNil(t, resp.Description)
	assert.Equal(t, "details", *resp.Description)

	missing, err := m.getTask(ctx, GetTaskRequest{TaskID: 404}, nil)
	require.NoError(t, err)
	require.NotNil(t, missing.Error)
	assert.Equal(t, CodeNotFound, missing.Error.Code)
	assert.Equal(t, int64(404), missing.Error.TaskID)
}

func TestService_UpdateTask(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{Title: "Original", Description: "keep", Priority: "Low", DueDate: 100}, nil)
	require.NoError(t, err)

	title := "Renamed"
	priority := "Medium"
	resp, err := m.updateTask(ctx, UpdateTaskRequest{TaskID: created.ID, Title: &title, Priority: &priority}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Equal(t, "Renamed", resp.Title)
	assert.Equal(t, "Medium", resp.Priority)
	assert.Equal(t, int64(100), resp.DueDate)
	require.NotNil(t, resp.Description)
	assert.Equal(t, "keep", *resp.Description)

	empty := ""
	resp, err = m.updateTask(ctx, UpdateTaskRequest{TaskID: created.ID, Description: &empty}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.Nil(t, resp.Description)

	resp, err = m.updateTask(ctx, UpdateTaskRequest{TaskID: created.ID, Title: &empty}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeValidation, resp.Error.Code)

	resp, err = m.updateTask(ctx, UpdateTaskRequest{TaskID: 999, Title: &title}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestService_ConcurrentUpdatesOfDifferentFields(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{Title: "orig", Priority: "Low", DueDate: 100}, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		title := fmt.Sprintf("title %d", i)
		priority := "High"
		if i%2 == 0 {
			priority = "Medium"
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := m.updateTask(ctx, UpdateTaskRequest{TaskID: created.ID, Title: &title}, nil)
			assert.NoError(t, err)
			assert.Nil(t, resp.Error)
		}()
		go func() {
			defer wg.Done()
			resp, err := m.updateTask(ctx, UpdateTaskRequest{TaskID: created.ID, Priority: &priority}, nil)
			assert.NoError(t, err)
			assert.Nil(t, resp.Error)
		}()
		wg.Wait()

		got, err := m.getTask(ctx, GetTaskRequest{TaskID: created.ID}, nil)
		require.NoError(t, err)
		require.Nil(t, got.Error)
		assert.Equal(t, title, got.Title)
		assert.Equal(t, priority, got.Priority)
	}
}

func TestService_CompleteTask(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{Title: "Finish"}, nil)
	require.NoError(t, err)

	resp, err := m.completeTask(ctx, CompleteTaskRequest{TaskID: created.ID}, nil)
	require.NoError(t, err)
	require.Nil(t, resp.Error)
	assert.True(t, resp.IsCompleted)

	resp, err = m.completeTask(ctx, CompleteTaskRequest{TaskID: 999}, nil)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestService_DeleteTask(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	created, err := m.createTask(ctx, CreateTaskRequest{Title: "Remove"}, nil)
	require.NoError(t, err)

	resp, err := m.deleteTask(ctx, DeleteTaskRequest{TaskID: created.ID}, nil)
	require.NoError(t, err)
	assert.True(t, resp.Deleted)

	resp, err = m.deleteTask(ctx, DeleteTaskRequest{TaskID: created.ID}, nil)
	require.NoError(t, err)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Deleted)
}

func TestService_ListTasks(t *testing.T) {
	m := setupTestModule(t)
	ctx := context.Background()

	for _, req := range []CreateTaskRequest{
		{Title: "Buy milk", Priority: "High", DueDate: 200},
		{Title: "Call bank", Priority: "Low", DueDate: 100},
		{Title: "Pay rent", Priority: "Medium", DueDate: 300},
	} {
		resp, err := m.createTask(ctx, req, nil)
		require.NoError(t, err)
		require.Nil(t, resp.Error)
	}
	_, err := m.completeTask(ctx, CompleteTaskRequest{TaskID: 1}, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		req    ListTasksRequest
		titles []string
	}{
		{name: "default is due date", req: ListTasksRequest{}, titles: []string{"Call bank", "Buy milk", "Pay rent"}},
		{name: "priority by severity", req: ListTasksRequest{Sort: "Priority"}, titles: []string{"Buy milk", "Pay rent", "Call bank"}},
		{name: "alphabetical pending", req: ListTasksRequest{Sort: "Alphabetically", Filter: "Pending"}, titles: []string{"Call bank", "Pay rent"}},
		{name: "completed", req: ListTasksRequest{Filter: "Completed"}, titles: []string{"Buy milk"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := m.listTasks(ctx, tt.req, nil)
			require.NoError(t, err)
			require.Nil(t, resp.Error)

			titles := make([]string, 0, len(resp.Tasks))
			for _, tk := range resp.Tasks {
				titles = append(titles, tk.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, len(tt.titles), resp.Total)
		})
	}

	t.Run("unknown sort key", func(t *testing.T) {
		resp, err := m.listTasks(ctx, ListTasksRequest{Sort: "colour"}, nil)
		require.NoError(t, err)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "sort", resp.Error.Field)
	})

	t.Run("by status", func(t *testing.T) {
		resp, err := m.listTasksByStatus(ctx, ListByStatusRequest{Completed: false}, nil)
		require.NoError(t, err)
		require.Len(t, resp.Tasks, 2)
		assert.Equal(t, "Call bank", resp.Tasks[0].Title)
		assert.Equal(t, "Pay rent", resp.Tasks[1].Title)
	})
}

func TestServiceError_Err(t *testing.T) {
	var nilErr *ServiceError
	assert.NoError(t, nilErr.Err())

	err := (&ServiceError{Code: CodeValidation, Field: "title", Message: "must not be empty"}).Err()
	assert.ErrorIs(t, err, domain.ErrValidation)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "title", ve.Field)

	err = (&ServiceError{Code: CodeNotFound, TaskID: 9}).Err()
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = (&ServiceError{Code: CodeStorage, Message: "disk full"}).Err()
	assert.ErrorIs(t, err, domain.ErrStorage)

	err = toServiceError(context.Canceled).Err()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, domain.ErrStorage))

	err = toServiceError(fmt.Errorf("lookup: %w", context.DeadlineExceeded)).Err()
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestModule_Health(t *testing.T) {
	m := NewModule(Options{Database: DatabaseConfig{Path: ":memory:"}})
	assert.False(t, m.Health(context.Background()).Healthy)

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop(context.Background())

	status := m.Health(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, int64(0), status.Details["tasks"])
}
