package task

import (
	"context"
	"log"
	"strings"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/events"
	"github.com/go-monolith/mono"
)

// createTask handles the create service request.
func (m *TaskModule) createTask(ctx context.Context, req CreateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	draft := domain.Draft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
	}
	if req.DueDate != 0 {
		due := time.UnixMilli(req.DueDate)
		draft.DueDate = &due
	}

	now := m.now()
	newTask, err := draft.Task(now)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}

	id, err := m.store.Insert(ctx, newTask)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}
	newTask.ID = id

	// Emit TaskCreated event
	if m.eventBus != nil {
		event := events.TaskCreatedEvent{
			TaskID:    newTask.ID,
			Title:     newTask.Title,
			Priority:  string(newTask.Priority),
			DueDate:   newTask.DueDate,
			CreatedAt: now,
		}
		if err := events.TaskCreatedV1.Publish(m.eventBus, event, nil); err != nil {
			// Event publishing is best-effort; log but don't fail the operation
			log.Printf("[task] Warning: failed to publish TaskCreated event for task %d: %v", newTask.ID, err)
		}
	}

	return toTaskResponse(newTask), nil
}

// getTask handles the get service request.
func (m *TaskModule) getTask(ctx context.Context, req GetTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	t, err := m.find(ctx, req.TaskID)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}
	return toTaskResponse(t), nil
}

// updateTask handles the update service request.
func (m *TaskModule) updateTask(ctx context.Context, req UpdateTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	var priority domain.Priority
	if req.Priority != nil {
		p, err := domain.ParsePriority(*req.Priority)
		if err != nil {
			return TaskResponse{Error: toServiceError(err)}, nil
		}
		priority = p
	}

	// The patch runs on the store worker against the current row.
	t, err := m.store.Modify(ctx, req.TaskID, func(t *domain.Task) error {
		if req.Title != nil {
			t.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			if desc := strings.TrimSpace(*req.Description); desc != "" {
				t.Description = &desc
			} else {
				t.Description = nil
			}
		}
		if req.Priority != nil {
			t.Priority = priority
		}
		if req.DueDate != nil {
			t.DueDate = *req.DueDate
		}
		if req.IsCompleted != nil {
			t.IsCompleted = *req.IsCompleted
		}
		return nil
	})
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}

	if m.eventBus != nil {
		event := events.TaskUpdatedEvent{
			TaskID:    t.ID,
			Title:     t.Title,
			UpdatedAt: m.now(),
		}
		if err := events.TaskUpdatedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[task] Warning: failed to publish TaskUpdated event for task %d: %v", t.ID, err)
		}
	}

	return toTaskResponse(t), nil
}

// completeTask handles the complete service request.
func (m *TaskModule) completeTask(ctx context.Context, req CompleteTaskRequest, _ *mono.Msg) (TaskResponse, error) {
	if err := m.store.MarkCompleted(ctx, req.TaskID); err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}

	t, err := m.find(ctx, req.TaskID)
	if err != nil {
		return TaskResponse{Error: toServiceError(err)}, nil
	}

	if m.eventBus != nil {
		event := events.TaskCompletedEvent{
			TaskID:      t.ID,
			Title:       t.Title,
			CompletedAt: m.now(),
		}
		if err := events.TaskCompletedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[task] Warning: failed to publish TaskCompleted event for task %d: %v", t.ID, err)
		}
	}

	return toTaskResponse(t), nil
}

// deleteTask handles the delete service request. Deleting an unknown ID
// succeeds with Deleted set to false.
func (m *TaskModule) deleteTask(ctx context.Context, req DeleteTaskRequest, _ *mono.Msg) (DeleteTaskResponse, error) {
	removed, err := m.store.Delete(ctx, req.TaskID)
	if err != nil {
		return DeleteTaskResponse{TaskID: req.TaskID, Error: toServiceError(err)}, nil
	}

	if removed && m.eventBus != nil {
		event := events.TaskDeletedEvent{
			TaskID:    req.TaskID,
			DeletedAt: m.now(),
		}
		if err := events.TaskDeletedV1.Publish(m.eventBus, event, nil); err != nil {
			log.Printf("[task] Warning: failed to publish TaskDeleted event for task %d: %v", req.TaskID, err)
		}
	}

	return DeleteTaskResponse{TaskID: req.TaskID, Deleted: removed}, nil
}

// listTasks handles the list service request.
func (m *TaskModule) listTasks(_ context.Context, req ListTasksRequest, _ *mono.Msg) (ListTasksResponse, error) {
	sortKey, err := domain.ParseSortKey(req.Sort)
	if err != nil {
		return ListTasksResponse{Error: toServiceError(err)}, nil
	}
	filterKey, err := domain.ParseFilterKey(req.Filter)
	if err != nil {
		return ListTasksResponse{Error: toServiceError(err)}, nil
	}

	q := domain.Query{Sort: sortKey, Filter: filterKey, PriorityOrder: m.priorityOrder}
	response := toListResponse(domain.Apply(m.store.Snapshot(), q))
	response.Sort = string(sortKey)
	response.Filter = string(filterKey)
	return response, nil
}

// listTasksByStatus handles the list-by-status service request.
func (m *TaskModule) listTasksByStatus(_ context.Context, req ListByStatusRequest, _ *mono.Msg) (ListTasksResponse, error) {
	return toListResponse(m.store.SnapshotByStatus(req.Completed)), nil
}

func (m *TaskModule) find(ctx context.Context, id int64) (domain.Task, error) {
	t, found, err := m.store.GetByID(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if !found {
		return domain.Task{}, &domain.NotFoundError{ID: id}
	}
	return t, nil
}

// toTaskResponse converts a domain Task to a TaskResponse.
func toTaskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		IsCompleted: t.IsCompleted,
	}
}

func toListResponse(tasks []domain.Task) ListTasksResponse {
	response := ListTasksResponse{
		Tasks: make([]TaskResponse, 0, len(tasks)),
		Total: len(tasks),
	}
	for _, t := range tasks {
		response.Tasks = append(response.Tasks, toTaskResponse(t))
	}
	return response
}
