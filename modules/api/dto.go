package api

import (
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/notification"
	"github.com/example/task-manager/modules/task"
)

const (
	// dueLayout renders due dates as dd/MM/yyyy.
	dueLayout = "02/01/2006"

	noDescription = "No description available."
)

// CreateTaskRequest is the HTTP request for creating a task. The due date
// is given either as epoch milliseconds or as a dd/MM/yyyy string, the string
// winning when both are set. A zero or missing due date means now.
type CreateTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     int64  `json:"due_date"`
	Due         string `json:"due"`
}

// UpdateTaskRequest is the HTTP request for editing a task. Omitted fields
// keep their value.
type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	DueDate     *int64  `json:"due_date,omitempty"`
	Due         *string `json:"due,omitempty"`
	IsCompleted *bool   `json:"is_completed,omitempty"`
}

// TaskResponse is the HTTP response for a single task.
type TaskResponse struct {
	ID              int64   `json:"id"`
	Title           string  `json:"title"`
	Description     *string `json:"description"`
	DescriptionText string  `json:"description_text"`
	Priority        string  `json:"priority"`
	DueDate         int64   `json:"due_date"`
	Due             string  `json:"due"`
	IsCompleted     bool    `json:"is_completed"`
}

// ListTasksResponse is the HTTP response for listing tasks.
type ListTasksResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Sort   string         `json:"sort,omitempty"`
	Filter string         `json:"filter,omitempty"`
}

// DeleteTaskResponse is the HTTP response for deleting a task.
type DeleteTaskResponse struct {
	ID      int64 `json:"id"`
	Deleted bool  `json:"deleted"`
}

// NotificationResponse lists recent notices.
type NotificationResponse struct {
	Notifications []notification.Notice `json:"notifications"`
	Total         int                   `json:"total"`
}

// HealthResponse is the HTTP response for health check.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorResponse is the HTTP response for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamCommand is sent by websocket clients to change the live list.
type StreamCommand struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// StreamMessage is pushed to websocket clients.
type StreamMessage struct {
	Type    string         `json:"type"`
	Sort    string         `json:"sort,omitempty"`
	Filter  string         `json:"filter,omitempty"`
	Tasks   []TaskResponse `json:"tasks"`
	Total   int            `json:"total"`
	Message string         `json:"message,omitempty"`
}

const (
	streamTypeTasks = "tasks"
	streamTypeError = "error"

	commandSort   = "sort"
	commandFilter = "filter"
)

func toTaskResponse(t domain.Task) TaskResponse {
	text := noDescription
	if t.Description != nil && *t.Description != "" {
		text = *t.Description
	}
	return TaskResponse{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Description,
		DescriptionText: text,
		Priority:        string(t.Priority),
		DueDate:         t.DueDate,
		Due:             t.Due().Format(dueLayout),
		IsCompleted:     t.IsCompleted,
	}
}

func fromServiceTask(resp *task.TaskResponse) TaskResponse {
	return toTaskResponse(resp.Task())
}

func toTaskResponses(tasks []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

func fromServiceList(resp *task.ListTasksResponse) ListTasksResponse {
	out := ListTasksResponse{
		Tasks:  make([]TaskResponse, 0, len(resp.Tasks)),
		Total:  resp.Total,
		Sort:   resp.Sort,
		Filter: resp.Filter,
	}
	for i := range resp.Tasks {
		out.Tasks = append(out.Tasks, fromServiceTask(&resp.Tasks[i]))
	}
	return out
}

// parseDue reads a dd/MM/yyyy date as midnight UTC in epoch milliseconds.
func parseDue(s string) (int64, error) {
	d, err := time.ParseInLocation(dueLayout, s, time.UTC)
	if err != nil {
		return 0, &domain.ValidationError{Field: "due", Reason: "must be formatted dd/MM/yyyy"}
	}
	return domain.Millis(d), nil
}
