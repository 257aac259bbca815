package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"time"

	domain "github.com/example/task-manager/domain/task"
	"github.com/example/task-manager/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/gorm"
)

// Options configures the task module.
type Options struct {
	Database      DatabaseConfig
	PriorityOrder domain.PriorityOrder
	Logger        *slog.Logger
	Clock         func() time.Time
}

// TaskModule owns the task store and exposes it as request-reply services.
type TaskModule struct {
	opts          Options
	db            *gorm.DB
	store         *Store
	eventBus      mono.EventBus
	priorityOrder domain.PriorityOrder
	now           func() time.Time
}

// Compile-time interface checks.
var _ mono.Module = (*TaskModule)(nil)
var _ mono.ServiceProviderModule = (*TaskModule)(nil)
var _ mono.EventEmitterModule = (*TaskModule)(nil)
var _ mono.HealthCheckableModule = (*TaskModule)(nil)

// NewModule creates a new TaskModule.
func NewModule(opts Options) *TaskModule {
	if opts.Database.Path == "" {
		opts.Database.Path = "tasks.db"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &TaskModule{
		opts:          opts,
		priorityOrder: opts.PriorityOrder,
		now:           opts.Clock,
	}
}

// Name returns the module name.
func (m *TaskModule) Name() string {
	return "task"
}

// Store returns the task store. It is nil before Start.
func (m *TaskModule) Store() *Store {
	return m.store
}

// SetEventBus is called by the framework before Start.
func (m *TaskModule) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events published by this module.
func (m *TaskModule) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.TaskCreatedV1.ToBase(),
		events.TaskUpdatedV1.ToBase(),
		events.TaskCompletedV1.ToBase(),
		events.TaskDeletedV1.ToBase(),
	}
}

// Health reports database connectivity and feed activity.
func (m *TaskModule) Health(ctx context.Context) mono.HealthStatus {
	if m.store == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "store not initialized",
		}
	}

	if err := m.store.Ping(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	count, err := m.store.Count(ctx)
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to count tasks: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver":      m.driverName(),
			"path":        m.opts.Database.Path,
			"tasks":       count,
			"subscribers": m.store.SubscriberCount(),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
// The framework prefixes service names with "services.task.".
func (m *TaskModule) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "create", json.Unmarshal, json.Marshal, m.createTask,
	); err != nil {
		return fmt.Errorf("failed to register create service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "get", json.Unmarshal, json.Marshal, m.getTask,
	); err != nil {
		return fmt.Errorf("failed to register get service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "update", json.Unmarshal, json.Marshal, m.updateTask,
	); err != nil {
		return fmt.Errorf("failed to register update service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "complete", json.Unmarshal, json.Marshal, m.completeTask,
	); err != nil {
		return fmt.Errorf("failed to register complete service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "delete", json.Unmarshal, json.Marshal, m.deleteTask,
	); err != nil {
		return fmt.Errorf("failed to register delete service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list", json.Unmarshal, json.Marshal, m.listTasks,
	); err != nil {
		return fmt.Errorf("failed to register list service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "list-by-status", json.Unmarshal, json.Marshal, m.listTasksByStatus,
	); err != nil {
		return fmt.Errorf("failed to register list-by-status service: %w", err)
	}

	log.Printf("[task] Registered services: services.task.{create,get,update,complete,delete,list,list-by-status}")
	return nil
}

// Start opens the database and starts the store.
func (m *TaskModule) Start(ctx context.Context) error {
	log.Printf("[task] Connecting to SQLite database: %s (driver %s)", m.opts.Database.Path, m.driverName())

	db, err := OpenDatabase(m.opts.Database)
	if err != nil {
		return err
	}
	m.db = db

	store, err := NewStore(ctx, db, WithLogger(m.opts.Logger), WithClock(m.now))
	if err != nil {
		m.closeDB()
		return fmt.Errorf("failed to start task store: %w", err)
	}
	m.store = store

	if m.eventBus == nil {
		log.Println("[task] Warning: eventBus not set, events will not be published")
	}
	log.Printf("[task] Module started (priority order: %s)", m.priorityOrder)
	return nil
}

// Stop drains the store and closes the database connection.
func (m *TaskModule) Stop(_ context.Context) error {
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("failed to close task store: %w", err)
		}
	}
	if m.db == nil {
		return nil
	}

	log.Println("[task] Closing database connection...")
	if err := m.closeDB(); err != nil {
		return err
	}
	log.Println("[task] Database connection closed")
	return nil
}

func (m *TaskModule) closeDB() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func (m *TaskModule) driverName() string {
	if m.opts.Database.Driver == "" {
		return DriverCGO
	}
	return m.opts.Database.Driver
}
