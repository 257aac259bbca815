package task

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/example/task-manager/domain/task"
	"gorm.io/gorm"
)

// Repository provides access to task storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new task repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create saves a new task and sets its ID.
func (r *Repository) Create(ctx context.Context, t *domain.Task) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// FindByID retrieves a task by its ID.
func (r *Repository) FindByID(ctx context.Context, id int64) (*domain.Task, error) {
	var t domain.Task
	if err := r.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &domain.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &t, nil
}

// FindAll retrieves all tasks in insertion order.
func (r *Repository) FindAll(ctx context.Context) ([]domain.Task, error) {
	tasks := []domain.Task{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("failed to find tasks: %w", err)
	}
	return tasks, nil
}

// FindByStatus retrieves the tasks with the given completion flag, earliest due first.
func (r *Repository) FindByStatus(ctx context.Context, completed bool) ([]domain.Task, error) {
	tasks := []domain.Task{}
	err := r.db.WithContext(ctx).
		Where("isCompleted = ?", completed).
		Order("dueDate ASC").
		Order("id ASC").
		Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find tasks by status: %w", err)
	}
	return tasks, nil
}

// Replace overwrites every mutable field of the task with the same ID.
func (r *Repository) Replace(ctx context.Context, t domain.Task) error {
	result := r.db.WithContext(ctx).Model(&domain.Task{}).Where("id = ?", t.ID).Updates(map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"priority":    string(t.Priority),
		"dueDate":     t.DueDate,
		"isCompleted": t.IsCompleted,
	})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{ID: t.ID}
	}
	return nil
}

// SetCompleted sets the completion flag of a task.
func (r *Repository) SetCompleted(ctx context.Context, id int64, completed bool) error {
	result := r.db.WithContext(ctx).Model(&domain.Task{}).Where("id = ?", id).Update("isCompleted", completed)
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if result.RowsAffected == 0 {
		return &domain.NotFoundError{ID: id}
	}
	return nil
}

// Delete permanently removes a task and reports whether a row was removed.
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Task{})
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to delete task: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// Count returns the number of stored tasks.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&domain.Task{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return n, nil
}
