package task

import (
	"context"
	"errors"

	domain "github.com/example/task-manager/domain/task"
)

// Error codes carried in ServiceError.
const (
	CodeValidation = "validation_error"
	CodeNotFound   = "not_found"
	CodeStorage    = "storage_error"
	CodeCanceled   = "canceled"
	CodeTimeout    = "timeout"
)

// ServiceError is a domain failure returned inside a service response so the
// caller can tell validation and missing-record errors apart from transport
// failures.
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	TaskID  int64  `json:"task_id,omitempty"`
}

// Err converts the service error back into the domain error taxonomy.
func (e *ServiceError) Err() error {
	if e == nil {
		return nil
	}
	switch e.Code {
	case CodeValidation:
		return &domain.ValidationError{Field: e.Field, Reason: e.Message}
	case CodeNotFound:
		return &domain.NotFoundError{ID: e.TaskID}
	case CodeCanceled:
		return context.Canceled
	case CodeTimeout:
		return context.DeadlineExceeded
	default:
		return &domain.StorageError{Op: "service", Err: errors.New(e.Message)}
	}
}

func toServiceError(err error) *ServiceError {
	var validationErr *domain.ValidationError
	var notFoundErr *domain.NotFoundError
	switch {
	case errors.As(err, &validationErr):
		return &ServiceError{Code: CodeValidation, Field: validationErr.Field, Message: validationErr.Reason}
	case errors.As(err, &notFoundErr):
		return &ServiceError{Code: CodeNotFound, TaskID: notFoundErr.ID, Message: notFoundErr.Error()}
	case errors.Is(err, context.Canceled):
		return &ServiceError{Code: CodeCanceled, Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return &ServiceError{Code: CodeTimeout, Message: err.Error()}
	default:
		return &ServiceError{Code: CodeStorage, Message: err.Error()}
	}
}

// CreateTaskRequest is the request for creating a task.
// DueDate is epoch milliseconds; zero means now.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	DueDate     int64  `json:"due_date,omitempty"`
}

// GetTaskRequest is the request for getting a task.
type GetTaskRequest struct {
	TaskID int64 `json:"task_id"`
}

// UpdateTaskRequest is the request for editing a task. Nil fields keep
// their stored value; an empty description clears it.
type UpdateTaskRequest struct {
	TaskID      int64   `json:"task_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *int64  `json:"due_date,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// CompleteTaskRequest is the request for completing a task.
type CompleteTaskRequest struct {
	TaskID int64 `json:"task_id"`
}

// DeleteTaskRequest is the request for deleting a task.
type DeleteTaskRequest struct {
	TaskID int64 `json:"task_id"`
}

// DeleteTaskResponse is the response for deleting a task. Deleted is false
// when no task had the ID.
type DeleteTaskResponse struct {
	TaskID  int64         `json:"task_id"`
	Deleted bool          `json:"deleted"`
	Error   *ServiceError `json:"error,omitempty"`
}

// ListTasksRequest selects the sort and filter of a listing.
type ListTasksRequest struct {
	Sort   string `json:"sort,omitempty"`
	Filter string `json:"filter,omitempty"`
}

// ListByStatusRequest selects one status feed.
type ListByStatusRequest struct {
	Completed bool `json:"completed"`
}

// ListTasksResponse is the response for listing tasks.
type ListTasksResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Sort   string         `json:"sort,omitempty"`
	Filter string         `json:"filter,omitempty"`
	Error  *ServiceError  `json:"error,omitempty"`
}

// TaskResponse is the response for a single task.
type TaskResponse struct {
	ID          int64         `json:"id"`
	Title       string        `json:"title"`
	Description *string       `json:"description,omitempty"`
	Priority    string        `json:"priority"`
	DueDate     int64         `json:"due_date"`
	IsCompleted bool          `json:"is_completed"`
	Error       *ServiceError `json:"error,omitempty"`
}

// Task converts the response back into a domain task.
func (r TaskResponse) Task() domain.Task {
	return domain.Task{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    domain.Priority(r.Priority),
		DueDate:     r.DueDate,
		IsCompleted: r.IsCompleted,
	}
}

// TaskPort defines the task operations available to driving adapters such as
// the HTTP API.
type TaskPort interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (*TaskResponse, error)
	GetTask(ctx context.Context, taskID int64) (*TaskResponse, error)
	UpdateTask(ctx context.Context, req *UpdateTaskRequest) (*TaskResponse, error)
	CompleteTask(ctx context.Context, taskID int64) (*TaskResponse, error)
	DeleteTask(ctx context.Context, taskID int64) (*DeleteTaskResponse, error)
	ListTasks(ctx context.Context, req *ListTasksRequest) (*ListTasksResponse, error)
	ListTasksByStatus(ctx context.Context, completed bool) (*ListTasksResponse, error)
}
