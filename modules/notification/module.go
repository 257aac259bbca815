package notification

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/example/task-manager/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	nanoid "github.com/jaevor/go-nanoid"
)

// DefaultCapacity bounds the number of notices kept in memory.
const DefaultCapacity = 100

// Notice is a short user-facing message derived from a task event.
type Notice struct {
	ID        string    `json:"id"`
	TaskID    int64     `json:"task_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationModule turns task events into notices.
type NotificationModule struct {
	notices  []Notice
	capacity int
	newID    func() string
	mu       sync.RWMutex
}

var _ mono.Module = (*NotificationModule)(nil)
var _ mono.EventConsumerModule = (*NotificationModule)(nil)

// NewModule creates a NotificationModule keeping at most capacity notices.
func NewModule(capacity int) *NotificationModule {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	newID, err := nanoid.Standard(12)
	if err != nil {
		// only fails for sizes outside 2..255
		panic(err)
	}
	return &NotificationModule{
		notices:  make([]Notice, 0),
		capacity: capacity,
		newID:    newID,
	}
}

func (m *NotificationModule) Name() string {
	return "notification"
}

func (m *NotificationModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1, m.handleTaskCreated, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskUpdatedV1, m.handleTaskUpdated, m); err != nil {
		return fmt.Errorf("failed to register TaskUpdated consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCompletedV1, m.handleTaskCompleted, m); err != nil {
		return fmt.Errorf("failed to register TaskCompleted consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1, m.handleTaskDeleted, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	log.Printf("[notification] Registered event consumers: TaskCreated, TaskUpdated, TaskCompleted, TaskDeleted")
	return nil
}

func (m *NotificationModule) handleTaskCreated(_ context.Context, event events.TaskCreatedEvent, _ *mono.Msg) error {
	log.Printf("[notification] Task created: %d - %s", event.TaskID, event.Title)
	m.record(event.TaskID, "task_created", "Task Added!", event.CreatedAt)
	return nil
}

func (m *NotificationModule) handleTaskUpdated(_ context.Context, event events.TaskUpdatedEvent, _ *mono.Msg) error {
	m.record(event.TaskID, "task_updated", "Task Updated!", event.UpdatedAt)
	return nil
}

func (m *NotificationModule) handleTaskCompleted(_ context.Context, event events.TaskCompletedEvent, _ *mono.Msg) error {
	log.Printf("[notification] Task completed: %d", event.TaskID)
	m.record(event.TaskID, "task_completed", fmt.Sprintf("Task '%s' completed!", event.Title), event.CompletedAt)
	return nil
}

func (m *NotificationModule) handleTaskDeleted(_ context.Context, event events.TaskDeletedEvent, _ *mono.Msg) error {
	m.record(event.TaskID, "task_deleted", "Task "+strconv.FormatInt(event.TaskID, 10)+" deleted", event.DeletedAt)
	return nil
}

func (m *NotificationModule) record(taskID int64, noticeType, message string, at time.Time) {
	if at.IsZero() {
		at = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.notices = append(m.notices, Notice{
		ID:        m.newID(),
		TaskID:    taskID,
		Type:      noticeType,
		Message:   message,
		Timestamp: at,
	})
	// drop the oldest
	if over := len(m.notices) - m.capacity; over > 0 {
		m.notices = append(m.notices[:0:0], m.notices[over:]...)
	}
}

// GetNotifications returns the recorded notices, oldest first.
func (m *NotificationModule) GetNotifications() []Notice {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Notice, len(m.notices))
	copy(result, m.notices)
	return result
}

func (m *NotificationModule) Start(_ context.Context) error {
	log.Println("[notification] Module started - listening for task events")
	return nil
}

func (m *NotificationModule) Stop(_ context.Context) error {
	log.Println("[notification] Module stopped")
	return nil
}
