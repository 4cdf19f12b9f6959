package http

import (
	"context"
	"fmt"
	"log"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"newsdesk/internal/cache"
	"newsdesk/internal/config"
	"newsdesk/internal/database"
	"newsdesk/internal/gateway"
	"newsdesk/internal/handler"
	"newsdesk/internal/notify"
	"newsdesk/internal/queue"
	"newsdesk/internal/redis"
	"newsdesk/internal/repository"
	"newsdesk/internal/service"
	"newsdesk/internal/worker"
)

// Run wires the whole server together and blocks until shutdown.
//
// Redis and R2 are optional: without Redis there is no likes cache, change
// feed or counter worker; without R2 there are no uploads. The core site
// still serves.
func Run() error {
	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to create redis client: %w", err)
		}
		if err := redisClient.Ping(ctx); err != nil {
			log.Printf("[Server] Redis unreachable, running without cache/worker: %v", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	mediaService, err := service.NewMediaService(ctx, cfg)
	if err != nil {
		log.Printf("[Server] Media storage disabled: %v", err)
		mediaService = nil
	}

	// Data-access gateway. The media service doubles as its file store;
	// the change feed rides the shared Redis client.
	var changeFeed *gateway.ChangeFeed
	var likesCache cache.LikesCache
	var publisher queue.Publisher
	if redisClient != nil {
		changeFeed = gateway.NewChangeFeed(redisClient.Client)
		likesCache = cache.NewLikesCache(redisClient.Client)
		publisher = queue.NewPublisher(redisClient.Client)
	}

	var fileStore gateway.FileStore
	if mediaService != nil {
		fileStore = mediaService
	}
	gw := gateway.NewStore(db, changeFeed, fileStore, cfg.UploadTimeout)

	// Repositories
	userRepo := repository.NewUserRepository(db, gw)
	postRepo := repository.NewPostRepository(db, gw)
	commentRepo := repository.NewCommentRepository(db, gw)
	settingsRepo := repository.NewSettingsRepository(db)

	// Services
	notifier := notify.NewCenter(notify.DefaultDuration)
	authService := service.NewAuthService(cfg)
	userService := service.NewUserService(userRepo, gw)
	postService := service.NewPostService(postRepo)
	settingsService := service.NewSettingsService(settingsRepo, gw, mediaService)
	commentService := service.NewCommentService(commentRepo, postRepo, userRepo, settingsRepo, gw, likesCache, publisher)
	moderationService := service.NewModerationService(commentRepo, postRepo, db, gw, publisher, notifier)
	if err := moderationService.WatchChanges(ctx); err != nil {
		return fmt.Errorf("failed to watch listing changes: %w", err)
	}
	defer moderationService.Stop()

	// Counter worker: consumes moderation events, keeps the denormalized
	// comment counters honest and rebroadcasts changes to listings.
	var manager *worker.Manager
	if redisClient != nil {
		consumer := queue.NewConsumer(redisClient.Client)
		eventHandler := worker.NewHandler(postRepo, changeFeed)
		manager = worker.NewManager(consumer, eventHandler, worker.DefaultManagerConfig())
		if err := manager.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker manager: %w", err)
		}
		defer manager.Stop()
	}

	router := NewRouter(RouterConfig{
		AuthHandler:       handler.NewAuthHandler(userService, authService),
		UserHandler:       handler.NewUserHandler(userService),
		PostHandler:       handler.NewPostHandler(postService),
		CommentHandler:    handler.NewCommentHandler(commentService),
		ModerationHandler: handler.NewModerationHandler(moderationService, notifier),
		SettingsHandler:   handler.NewSettingsHandler(settingsService),
		JWTSecret:         cfg.JWTSecret,
	})

	server := &stdhttp.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] Listening on :%s", cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("[Server] Received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
