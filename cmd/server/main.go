package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HammerMeetNail/penpals/internal/blobstore"
	"github.com/HammerMeetNail/penpals/internal/config"
	"github.com/HammerMeetNail/penpals/internal/database"
	"github.com/HammerMeetNail/penpals/internal/handlers"
	"github.com/HammerMeetNail/penpals/internal/logging"
	"github.com/HammerMeetNail/penpals/internal/middleware"
	"github.com/HammerMeetNail/penpals/internal/push"
	"github.com/HammerMeetNail/penpals/internal/realtime"
	"github.com/HammerMeetNail/penpals/internal/services"
	"github.com/HammerMeetNail/penpals/internal/worker"
	"github.com/HammerMeetNail/penpals/migrations"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	logger.SetLevel(level)
	logging.SetDefaultLevel(level)

	logger.Info("Starting penpals server...", map[string]interface{}{"env": cfg.Environment()})

	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	logger.Info("Running database migrations...")
	migrator, err := database.NewMigrator(cfg.Database.DSN(), migrations.FS)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return fmt.Errorf("running migrations: %w", err)
	}
	_ = migrator.Close()
	logger.Info("Migrations completed")

	logger.Info("Connecting to Redis", map[string]interface{}{"addr": cfg.Redis.Addr()})
	redisDB, err := database.NewRedisDB(cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()
	logger.Info("Connected to Redis")

	blobs, err := blobstore.NewLocalStore(cfg.Blob.Dir, cfg.Blob.BaseURL)
	if err != nil {
		return fmt.Errorf("opening blob store: %w", err)
	}

	channel, err := push.New(cfg.Push, redisDB.Client)
	if err != nil {
		return fmt.Errorf("creating push channel: %w", err)
	}
	broker, err := realtime.New(cfg.Realtime, redisDB.Client)
	if err != nil {
		return fmt.Errorf("creating realtime broker: %w", err)
	}

	// Background work stops on SIGINT/SIGTERM, before the pool closes.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Services
	dbAdapter := services.NewPoolAdapter(db.Pool)

	notificationService := services.NewNotificationService(dbAdapter, channel, broker, blobs)
	notificationService.SetAsyncContext(ctx)

	userService := services.NewUserService(dbAdapter, blobs)
	friendService := services.NewFriendService(dbAdapter, notificationService, blobs)
	blockService := services.NewBlockService(dbAdapter, notificationService, blobs)
	communityService := services.NewCommunityService(dbAdapter, notificationService, blobs)
	messageService := services.NewMessageService(dbAdapter, notificationService, broker, blobs, cfg.Messaging.SeparatorGap)
	letterService := services.NewLetterService(dbAdapter, notificationService, blobs, cfg.Delivery.BatchSize)
	reactionService := services.NewReactionService(dbAdapter, notificationService)

	// Handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	friendHandler := handlers.NewFriendHandler(friendService)
	blockHandler := handlers.NewBlockHandler(blockService)
	communityHandler := handlers.NewCommunityHandler(communityService)
	messageHandler := handlers.NewMessageHandler(messageService)
	letterHandler := handlers.NewLetterHandler(letterService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	reactionHandler := handlers.NewReactionHandler(reactionService)
	deviceHandler := handlers.NewDeviceHandler(userService)
	attachmentHandler := handlers.NewAttachmentHandler(blobs)
	streamHandler := handlers.NewStreamHandler(broker, cfg.Server.AllowedOrigins)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	requestLogger := middleware.NewRequestLogger(logger)
	apiLimiter := middleware.NewAPIRateLimiter(redisDB.Client)
	writeLimiter := middleware.NewWriteRateLimiter(redisDB.Client)

	read := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuth(apiLimiter.Middleware(h))
	}
	write := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.RequireAuth(apiLimiter.Middleware(writeLimiter.Middleware(h)))
	}

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /ready", healthHandler.Ready)
	mux.HandleFunc("GET /live", healthHandler.Live)
	if cfg.Server.MetricsEnabled {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Friends
	mux.Handle("GET /api/friends", read(friendHandler.ListFriends))
	mux.Handle("DELETE /api/friends/{userId}", write(friendHandler.Unfriend))
	mux.Handle("POST /api/friends/requests", write(friendHandler.SendRequest))
	mux.Handle("GET /api/friends/requests", read(friendHandler.ListIncoming))
	mux.Handle("GET /api/friends/requests/sent", read(friendHandler.ListSent))
	mux.Handle("PUT /api/friends/requests/{id}/accept", write(friendHandler.AcceptRequest))
	mux.Handle("PUT /api/friends/requests/{id}/reject", write(friendHandler.RejectRequest))
	mux.Handle("DELETE /api/friends/requests/{id}/cancel", write(friendHandler.CancelRequest))

	// Blocks
	mux.Handle("POST /api/blocks", write(blockHandler.Block))
	mux.Handle("DELETE /api/blocks/{id}", write(blockHandler.Unblock))
	mux.Handle("GET /api/blocks", read(blockHandler.List))

	// Communities
	mux.Handle("POST /api/communities", write(communityHandler.Create))
	mux.Handle("GET /api/communities/{id}", read(communityHandler.Get))
	mux.Handle("DELETE /api/communities/{id}", write(communityHandler.Delete))
	mux.Handle("POST /api/communities/{id}/join", write(communityHandler.Join))
	mux.Handle("DELETE /api/communities/{id}/membership", write(communityHandler.Leave))
	mux.Handle("GET /api/communities/{id}/members", read(communityHandler.ListMembers))
	mux.Handle("GET /api/communities/{id}/requests", read(communityHandler.ListJoinRequests))
	mux.Handle("PUT /api/communities/memberships/{id}/accept", write(communityHandler.AcceptMember))
	mux.Handle("PUT /api/communities/memberships/{id}/reject", write(communityHandler.RejectMember))

	// Messaging
	mux.Handle("POST /api/messages", write(messageHandler.Send))
	mux.Handle("PUT /api/messages/{id}/read", read(messageHandler.MarkRead))
	mux.Handle("DELETE /api/messages/{id}", write(messageHandler.DeleteMessage))
	mux.Handle("GET /api/conversations", read(messageHandler.ListConversations))
	mux.Handle("DELETE /api/conversations/{id}", write(messageHandler.DeleteConversation))
	mux.Handle("GET /api/conversations/{id}/messages", read(messageHandler.ListMessages))
	mux.Handle("GET /api/conversations/{id}/messages/{messageId}/replies", read(messageHandler.ListReplies))
	mux.Handle("POST /api/attachments", write(attachmentHandler.Upload))
	mux.HandleFunc("GET /blobs/{ref}", attachmentHandler.Serve)

	// Letters
	mux.Handle("POST /api/letters", write(letterHandler.Schedule))
	mux.Handle("GET /api/letters/inbox", read(letterHandler.Inbox))
	mux.Handle("GET /api/letters/sent", read(letterHandler.Sent))
	mux.Handle("GET /api/letters/on-the-way", read(letterHandler.OnTheWay))
	mux.Handle("GET /api/letters/{id}", read(letterHandler.Get))
	mux.Handle("DELETE /api/letters/{id}", write(letterHandler.Delete))

	// Notifications
	mux.Handle("GET /api/notifications", read(notificationHandler.List))
	mux.Handle("GET /api/notifications/unread-count", read(notificationHandler.UnreadCount))
	mux.Handle("PUT /api/notifications/read-all", read(notificationHandler.MarkAllRead))
	mux.Handle("PUT /api/notifications/{id}/read", read(notificationHandler.MarkRead))
	mux.Handle("DELETE /api/notifications", write(notificationHandler.DeleteAll))

	// Reactions, devices, realtime
	mux.Handle("POST /api/posts/{id}/react", write(reactionHandler.React))
	mux.Handle("DELETE /api/posts/{id}/react", write(reactionHandler.Unreact))
	mux.Handle("PUT /api/devices", read(deviceHandler.Register))
	mux.Handle("GET /api/stream", authMiddleware.RequireAuth(http.HandlerFunc(streamHandler.Stream)))

	// Build middleware chain (order matters: outermost first)
	var handler http.Handler = mux
	handler = middleware.Metrics(handler)
	handler = requestLogger.Apply(handler)
	handler = authMiddleware.Authenticate(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.NewLetterSweeper(letterService, cfg.Delivery.SweepInterval).Run(ctx)
	}()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		logger.Info("Server is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		stop()
		wg.Wait()
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	wg.Wait()
	logger.Info("Server stopped")
	return nil
}
