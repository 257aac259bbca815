package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/example/task-manager/config"
	"github.com/example/task-manager/modules/api"
	"github.com/example/task-manager/modules/notification"
	"github.com/example/task-manager/modules/task"
	"github.com/example/task-manager/modules/tasklist"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

func main() {
	log.Println("=== Task Manager ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	monoLevel := mono.LogLevelInfo
	if cfg.LogLevel >= slog.LevelError {
		monoLevel = mono.LogLevelError
	}

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(cfg.ShutdownTimeout),
		mono.WithLogLevel(monoLevel),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	notificationModule := notification.NewModule(notification.DefaultCapacity)
	taskModule := task.NewModule(task.Options{
		Database: task.DatabaseConfig{
			Path:   cfg.DBPath,
			Driver: cfg.DBDriver,
			Debug:  cfg.DBDebug,
		},
		PriorityOrder: cfg.PriorityOrder,
		Logger:        logger,
	})
	apiModule := api.NewModule(api.Config{
		Addr:          cfg.HTTPAddr,
		CORSOrigins:   cfg.CORSOrigins,
		PriorityOrder: cfg.PriorityOrder,
		Logger:        logger,
	})

	// Live lists read the store directly; it only exists after the task module starts.
	apiModule.SetFeed(func() tasklist.Source {
		if s := taskModule.Store(); s != nil {
			return s
		}
		return nil
	})
	apiModule.SetNotices(notificationModule)

	// Order: event consumers first, then the store, then the driving adapter
	app.Register(notificationModule)
	app.Register(taskModule)
	app.Register(apiModule)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func printStartupInfo(cfg config.Config) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Printf("  Database: %s (driver %s)", cfg.DBPath, cfg.DBDriver)
	log.Printf("  Priority order: %s", cfg.PriorityOrder)
	log.Println("")
	log.Printf("REST API Endpoints (%s):", cfg.HTTPAddr)
	log.Println("  POST   /api/v1/tasks                 - Create a task")
	log.Println("  GET    /api/v1/tasks?sort=&filter=   - List tasks")
	log.Println("  GET    /api/v1/tasks/status/:status  - List completed or pending tasks")
	log.Println("  GET    /api/v1/tasks/:id             - Get a task by ID")
	log.Println("  PUT    /api/v1/tasks/:id             - Update a task")
	log.Println("  DELETE /api/v1/tasks/:id             - Delete a task")
	log.Println("  POST   /api/v1/tasks/:id/complete    - Complete a task")
	log.Println("  GET    /api/v1/notifications         - Recent task notifications")
	log.Println("  GET    /health                       - Health check")
	log.Println("")
	log.Println("WebSocket:")
	log.Println("  /ws/tasks?sort=&filter=  - Live task list")
	log.Println(`    send {"type":"sort","value":"Priority"} or {"type":"filter","value":"Pending"}`)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
