package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/example/realtime-chat/config"
	"github.com/example/realtime-chat/modules/api"
	"github.com/example/realtime-chat/modules/archive"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/example/realtime-chat/modules/ratelimit"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== Realtime Chat - Fiber + EventBus Pubsub ===")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	// Create modules
	chatModule, err := chat.NewModule(engineConfig(cfg), chat.ModuleOptions{
		SweepInterval: cfg.TypingSweep,
		UseArchive:    cfg.ArchiveEnabled,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to create chat module: %v", err)
	}
	broadcastModule := broadcast.NewModule()
	rateLimitModule := ratelimit.NewModule(cfg.RedisAddr, ratelimit.Config{
		Events: cfg.RateLimitEvents,
		Window: cfg.RateLimitWindow,
	}, logger)
	apiModule := api.NewModule(api.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		UseArchive:     cfg.ArchiveEnabled,
	}, logger)

	// Inject the hub and the rate limit guard into the API module
	// (neither is exposed via ServiceContainer)
	apiModule.SetHub(broadcastModule.GetHub())
	apiModule.SetGuard(rateLimitModule.GetGuard())

	// Register modules with the framework.
	// Order: independent modules first, then modules with dependencies
	// - archive: SQLite message archive (event consumer + services)
	// - chat: Core domain (ServiceProviderModule + EventEmitterModule)
	// - broadcast: Event consumer writing deliveries to WebSocket clients
	// - ratelimit: Per-connection inbound limiter (Redis or in-process)
	// - api: Driving adapter (Fiber HTTP/WebSocket server, depends on chat)
	if cfg.ArchiveEnabled {
		app.Register(archive.NewModule(cfg.DBPath, cfg.DBDebug))
	}
	app.Register(chatModule)
	app.Register(broadcastModule)
	app.Register(rateLimitModule)
	app.Register(apiModule)

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo(cfg)

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

// engineConfig maps process configuration onto the chat engine.
func engineConfig(cfg *config.Config) chat.Config {
	rooms := cfg.Rooms()
	seeds := make([]chat.RoomSeed, 0, len(rooms))
	for _, r := range rooms {
		seeds = append(seeds, chat.RoomSeed{ID: r.ID, Name: r.Name})
	}
	return chat.Config{
		StrictRooms:       cfg.StrictRooms,
		DefaultRooms:      seeds,
		MaxUsernameLength: cfg.MaxUsernameLength,
		PageLimit:         cfg.PageLimit,
		MaxPageLimit:      cfg.MaxPageLimit,
		TypingTTL:         cfg.TypingTTL,
	}
}

func printStartupInfo(cfg *config.Config) {
	rateBackend := "in-process token bucket"
	if cfg.RedisAddr != "" {
		rateBackend = "Redis sliding window at " + cfg.RedisAddr + " (falls back to in-process)"
	}
	archiveInfo := "disabled"
	if cfg.ArchiveEnabled {
		archiveInfo = "SQLite at " + cfg.DBPath
	}

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Event Bus: NATS JetStream (internal pubsub)")
	log.Printf("  - Message archive: %s", archiveInfo)
	log.Printf("  - Rate limiting: %d events per %s, %s", cfg.RateLimitEvents, cfg.RateLimitWindow, rateBackend)
	log.Println("")
	log.Println("Event-Driven Chat:")
	log.Println("  - Delivery events -> broadcast module -> WebSocket clients")
	log.Println("  - MessageAppended events -> archive module -> SQLite")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%d):", cfg.Port)
	log.Println("  GET    /health                        - Health check")
	log.Println("  GET    /api/rooms                     - List all rooms")
	log.Println("  GET    /api/users?roomId=             - List online users")
	log.Println("  GET    /api/messages/:roomId          - Page of room history")
	log.Println("  GET    /api/messages/:roomId/search   - Search room history")
	log.Println("  GET    /api/archive/:roomId           - Archived room messages")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%d/ws):", cfg.Port)
	log.Println("  Frames: {\"event\": \"<name>\", \"data\": {...}}")
	log.Println("  Events: user_join, join_room, create_room, leave_room, view_room, send_message,")
	log.Println("          typing, private_message, add_reaction, mark_read, search_messages,")
	log.Println("          load_older_messages, get_unread_counts")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
