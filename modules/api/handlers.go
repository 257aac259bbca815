package api

import (
	"context"
	"errors"
	"strconv"
	"strings"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/modules/notification"
	"github.com/example/task-manager/modules/task"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check endpoint
	app.Get("/health", m.healthHandler)

	// Live task list
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tasks", websocket.New(m.handleTaskStream))

	// API v1 routes
	api := app.Group("/api/v1")

	tasks := api.Group("/tasks")
	tasks.Post("/", m.createTask)
	tasks.Get("/", m.listTasks)
	tasks.Get("/status/:status", m.listTasksByStatus)
	tasks.Get("/:id", m.getTask)
	tasks.Put("/:id", m.updateTask)
	tasks.Delete("/:id", m.deleteTask)
	tasks.Post("/:id/complete", m.completeTask)

	api.Get("/notifications", m.listNotifications)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":         "api",
			"addr":           m.cfg.Addr,
			"active_streams": m.streams.Load(),
		},
	})
}

// createTask handles POST /api/v1/tasks.
func (m *APIModule) createTask(c *fiber.Ctx) error {
	var req CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	dueDate := req.DueDate
	if req.Due != "" {
		parsed, err := parseDue(req.Due)
		if err != nil {
			return writeError(c, err)
		}
		dueDate = parsed
	}

	resp, err := m.taskAdapter.CreateTask(c.UserContext(), &task.CreateTaskRequest{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     dueDate,
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fromServiceTask(resp))
}

// listTasks handles GET /api/v1/tasks?sort=&filter=.
func (m *APIModule) listTasks(c *fiber.Ctx) error {
	resp, err := m.taskAdapter.ListTasks(c.UserContext(), &task.ListTasksRequest{
		Sort:   c.Query("sort"),
		Filter: c.Query("filter"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fromServiceList(resp))
}

// listTasksByStatus handles GET /api/v1/tasks/status/:status.
func (m *APIModule) listTasksByStatus(c *fiber.Ctx) error {
	var completed bool
	switch strings.ToLower(c.Params("status")) {
	case "completed":
		completed = true
	case "pending":
		completed = false
	default:
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Status must be completed or pending",
		})
	}

	resp, err := m.taskAdapter.ListTasksByStatus(c.UserContext(), completed)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fromServiceList(resp))
}

// getTask handles GET /api/v1/tasks/:id.
func (m *APIModule) getTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := m.taskAdapter.GetTask(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fromServiceTask(resp))
}

// updateTask handles PUT /api/v1/tasks/:id.
func (m *APIModule) updateTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err)
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	dueDate := req.DueDate
	if req.Due != nil {
		parsed, err := parseDue(*req.Due)
		if err != nil {
			return writeError(c, err)
		}
		dueDate = &parsed
	}

	resp, err := m.taskAdapter.UpdateTask(c.UserContext(), &task.UpdateTaskRequest{
		TaskID:      id,
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		DueDate:     dueDate,
		IsCompleted: req.IsCompleted,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fromServiceTask(resp))
}

// deleteTask handles DELETE /api/v1/tasks/:id.
func (m *APIModule) deleteTask(c *fiber.Ctx) error {
	id, err := anyTaskID(c)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := m.taskAdapter.DeleteTask(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(DeleteTaskResponse{ID: id, Deleted: resp.Deleted})
}

// completeTask handles POST /api/v1/tasks/:id/complete.
func (m *APIModule) completeTask(c *fiber.Ctx) error {
	id, err := taskID(c)
	if err != nil {
		return writeError(c, err)
	}

	resp, err := m.taskAdapter.CompleteTask(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fromServiceTask(resp))
}

// listNotifications handles GET /api/v1/notifications.
func (m *APIModule) listNotifications(c *fiber.Ctx) error {
	var notices []notification.Notice
	if m.notices != nil {
		notices = m.notices.GetNotifications()
	}
	if notices == nil {
		notices = []notification.Notice{}
	}
	return c.JSON(NotificationResponse{
		Notifications: notices,
		Total:         len(notices),
	})
}

func taskID(c *fiber.Ctx) (int64, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, &domain.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return int64(id), nil
}

// anyTaskID accepts every integer; used where an unknown ID is not an error.
func anyTaskID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, &domain.ValidationError{Field: "id", Reason: "must be an integer"}
	}
	return id, nil
}

// writeError maps the task error taxonomy onto HTTP status codes.
func writeError(c *fiber.Ctx, err error) error {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: validationErr.Error(),
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: err.Error(),
		})
	case errors.Is(err, context.Canceled):
		return c.Status(fiber.StatusRequestTimeout).JSON(ErrorResponse{
			Error:   "request_canceled",
			Message: "Request was canceled",
		})
	case errors.Is(err, context.DeadlineExceeded):
		return c.Status(fiber.StatusGatewayTimeout).JSON(ErrorResponse{
			Error:   "timeout",
			Message: "Request timed out",
		})
	default:
		m := "Internal Server Error"
		if errors.Is(err, domain.ErrStorage) {
			m = "Task storage is unavailable"
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: m,
		})
	}
}
