package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/chat"
	"github.com/example/collab-docs-demo/modules/cursor"
	"github.com/example/collab-docs-demo/modules/docsync"
	"github.com/example/collab-docs-demo/modules/lifecycle"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
	"github.com/example/collab-docs-demo/modules/storage"
	"github.com/example/collab-docs-demo/modules/wsserver"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Collab Docs Demo - Fiber + EventBus Pubsub ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	// Create modules. The hub, store and registry are shared state owned
	// by their modules and injected manually into the modules that use
	// them; the event bus is wired by the framework.
	broadcastModule := broadcast.NewModule()
	roomstateModule := roomstate.NewModule()
	presenceModule := presence.NewModule()
	storageModule := storage.NewModule()

	hub := broadcastModule.Hub()
	store := roomstateModule.Store()
	registry := presenceModule.Registry()

	docsyncModule := docsync.NewModule(store, hub, storageModule, app.Logger())
	cursorModule := cursor.NewModule(hub, app.Logger())
	chatModule := chat.NewModule(store, registry, hub, app.Logger())
	lifecycleModule := lifecycle.NewModule(store, registry, hub, chatModule.Dispatcher(), app.Logger())

	wsModule := wsserver.NewModule(
		":"+port,
		hub,
		store,
		docsyncModule.Engine(),
		cursorModule.Broadcaster(),
		chatModule.Dispatcher(),
		lifecycleModule.Manager(),
		app.Logger(),
	)

	// Register modules with the framework.
	// Order: shared-state owners first, then the domain modules that use
	// them, then the server that drives everything.
	app.Register(broadcastModule) // WebSocket hub
	app.Register(roomstateModule) // Room state store
	app.Register(presenceModule)  // User registry
	app.Register(storageModule)   // Document persistence + event consumer
	app.Register(docsyncModule)   // Document sync engine + event emitter
	app.Register(cursorModule)    // Cursor broadcaster
	app.Register(chatModule)      // Chat dispatcher + event emitter
	app.Register(lifecycleModule) // Join/disconnect transitions + event emitter
	app.Register(wsModule)        // HTTP/WebSocket server

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(port)

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
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

func printStartupInfo(port string) {
	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Println("  - Persistence: GORM + SQLite for document snapshots")
	log.Println("")
	log.Println("Event-Driven Collaboration:")
	log.Println("  - DocumentSaved events -> storage module -> SQLite")
	log.Println("  - MessageSent / UserJoined / UserLeft events for observers")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", port)
	log.Println("  GET    /health                 - Health check")
	log.Println("  GET    /api/v1/rooms/:id       - Room roster, typing and message count")
	log.Println("  GET    /api/v1/documents/:id   - Current document content")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", port)
	log.Println("  Frames: {\"event\": \"...\", \"payload\": ...}")
	log.Println("  Events: join-document, send-changes, save-document, join-room,")
	log.Println("          send-message, typing-start/stop, user-join, cursor-move")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
