package task

import (
	"context"
	"errors"
	"testing"

	domain "github.com/example/task-manager/domain/task"
	"gorm.io/gorm"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := OpenDatabase(DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func strPtr(s string) *string { return &s }

func TestRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &domain.Task{Title: "Buy milk", Description: strPtr("2 litres"), Priority: domain.PriorityHigh, DueDate: 200}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second := &domain.Task{Title: "Call bank", Priority: domain.PriorityLow, DueDate: 100}
	if err := repo.Create(ctx, second); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Errorf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}

	// Verify the row round-trips, including the nullable description
	var found domain.Task
	if err := db.First(&found, "id = ?", first.ID).Error; err != nil {
		t.Fatalf("failed to find created task: %v", err)
	}
	if found.Title != "Buy milk" || found.Priority != domain.PriorityHigh || found.DueDate != 200 {
		t.Errorf("unexpected task %+v", found)
	}
	if found.Description == nil || *found.Description != "2 litres" {
		t.Errorf("expected description %q, got %v", "2 litres", found.Description)
	}

	var noDesc domain.Task
	if err := db.First(&noDesc, "id = ?", second.ID).Error; err != nil {
		t.Fatalf("failed to find created task: %v", err)
	}
	if noDesc.Description != nil {
		t.Errorf("expected nil description, got %q", *noDesc.Description)
	}
}

func TestRepository_IDsAreNotReused(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	first := &domain.Task{Title: "one", Priority: domain.PriorityLow, DueDate: 1}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := repo.Delete(ctx, first.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	next := &domain.Task{Title: "two", Priority: domain.PriorityLow, DueDate: 1}
	if err := repo.Create(ctx, next); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if next.ID <= first.ID {
		t.Errorf("expected id greater than %d, got %d", first.ID, next.ID)
	}
}

func TestRepository_FindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	task := &domain.Task{Title: "FindByID Test", Priority: domain.PriorityMedium, DueDate: 10}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	t.Run("existing task", func(t *testing.T) {
		found, err := repo.FindByID(ctx, task.ID)
		if err != nil {
			t.Fatalf("FindByID() error = %v", err)
		}
		if found.Title != task.Title {
			t.Errorf("expected title %q, got %q", task.Title, found.Title)
		}
	})

	t.Run("non-existent task", func(t *testing.T) {
		_, err := repo.FindByID(ctx, 999)
		if !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestRepository_FindByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	fixtures := []domain.Task{
		{Title: "late pending", Priority: domain.PriorityLow, DueDate: 300},
		{Title: "done", Priority: domain.PriorityLow, DueDate: 50, IsCompleted: true},
		{Title: "early pending", Priority: domain.PriorityLow, DueDate: 100},
		{Title: "tie pending", Priority: domain.PriorityLow, DueDate: 100},
	}
	for i := range fixtures {
		if err := repo.Create(ctx, &fixtures[i]); err != nil {
			t.Fatalf("failed to create test task: %v", err)
		}
	}

	pending, err := repo.FindByStatus(ctx, false)
	if err != nil {
		t.Fatalf("FindByStatus() error = %v", err)
	}
	titles := make([]string, 0, len(pending))
	for _, tk := range pending {
		titles = append(titles, tk.Title)
	}
	want := []string{"early pending", "tie pending", "late pending"}
	if len(titles) != len(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("expected %v, got %v", want, titles)
			break
		}
	}

	completed, err := repo.FindByStatus(ctx, true)
	if err != nil {
		t.Fatalf("FindByStatus() error = %v", err)
	}
	if len(completed) != 1 || completed[0].Title != "done" {
		t.Errorf("expected [done], got %+v", completed)
	}
}

func TestRepository_Replace(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	task := &domain.Task{Title: "Original", Description: strPtr("text"), Priority: domain.PriorityLow, DueDate: 10}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	updated := domain.Task{ID: task.ID, Title: "Edited", Priority: domain.PriorityHigh, DueDate: 20, IsCompleted: true}
	if err := repo.Replace(ctx, updated); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	found, err := repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if found.Title != "Edited" || found.Priority != domain.PriorityHigh || found.DueDate != 20 || !found.IsCompleted {
		t.Errorf("unexpected task after replace: %+v", found)
	}
	if found.Description != nil {
		t.Errorf("expected description cleared, got %q", *found.Description)
	}

	err = repo.Replace(ctx, domain.Task{ID: 999, Title: "ghost", Priority: domain.PriorityLow})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_SetCompleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	task := &domain.Task{Title: "Finish me", Priority: domain.PriorityLow, DueDate: 10}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	if err := repo.SetCompleted(ctx, task.ID, true); err != nil {
		t.Fatalf("SetCompleted() error = %v", err)
	}
	// Setting the same value again still matches the row
	if err := repo.SetCompleted(ctx, task.ID, true); err != nil {
		t.Fatalf("SetCompleted() repeat error = %v", err)
	}

	found, err := repo.FindByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if !found.IsCompleted {
		t.Error("expected task to be completed")
	}

	if err := repo.SetCompleted(ctx, 999, true); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	task := &domain.Task{Title: "Delete me", Priority: domain.PriorityLow, DueDate: 10}
	if err := repo.Create(ctx, task); err != nil {
		t.Fatalf("failed to create test task: %v", err)
	}

	removed, err := repo.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !removed {
		t.Error("expected a row to be removed")
	}

	removed, err = repo.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete() repeat error = %v", err)
	}
	if removed {
		t.Error("expected second delete to remove nothing")
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 tasks, got %d", n)
	}
}
