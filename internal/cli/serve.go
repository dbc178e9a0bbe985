package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notifyhub/infrastructure/cache"
	"notifyhub/infrastructure/db"
	"notifyhub/infrastructure/queue"
	"notifyhub/infrastructure/ws"
	"notifyhub/internal/config"
	httpHandler "notifyhub/internal/delivery/http"
	"notifyhub/internal/delivery/websocket"
	"notifyhub/internal/entity"
	"notifyhub/internal/repository"
	"notifyhub/internal/usecase"
	"notifyhub/pkg/jwt"
	"notifyhub/pkg/logger"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := Run(ctx, cfg, log); err != nil {
				log.Error().Err(err).Msg("Server stopped with error")
				return err
			}
			return nil
		},
	}
}

// Run wires every component and serves until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	mongoDb, err := db.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer mongoDb.Close(context.Background())
	log.Info().Str("database", cfg.Mongo.Database).Msg("Connected to MongoDB")

	if err := mongoDb.EnsureIndexes(ctx); err != nil {
		log.Warn().Err(err).Msg("Index bootstrap failed")
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(mongoDb.DB)
	notificationRepo := repository.NewNotificationRepository(mongoDb.DB)

	hub := ws.NewHub(ws.Config{
		HeartbeatInterval:     cfg.Hub.HeartbeatInterval,
		AuthTimeout:           cfg.Hub.AuthTimeout,
		MaxConnectionsPerUser: cfg.Hub.MaxConnectionsPerUser,
		MaxConnections:        cfg.Hub.MaxConnections,
	}, log)

	var dispatcher ws.IDispatcher = hub.Dispatcher
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}

		relay := ws.NewRedisRelay(client, cfg.Server.Id, hub.Dispatcher, log)
		go func() {
			if err := relay.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Redis relay stopped")
			}
		}()
		dispatcher = relay
		log.Info().Str("addr", cfg.Redis.Addr).Str("serverId", cfg.Server.Id).Msg("Using Redis relay")
	} else {
		log.Info().Msg("Using in-memory dispatcher (single server)")
	}

	roleCache := cache.NewTTLCache[entity.Role](cfg.Hub.RoleCacheTTL)
	defer roleCache.Close()

	// Initialize use cases
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTTL)
	authUc := usecase.NewAuthUsecase(jwtManager)
	userUc := usecase.NewUserUsecase(userRepo, roleCache, cfg.Hub.RoleCacheTTL, log)
	notificationUc := usecase.NewNotificationUsecase(notificationRepo, dispatcher, log)
	jobUc := usecase.NewJobUsecase(dispatcher)

	if cfg.NATS.URL != "" {
		bridge, err := queue.NewJobBridge(cfg.NATS.URL, cfg.NATS.SubjectPrefix, jobUc, log)
		if err != nil {
			return err
		}
		defer bridge.Close()
		if err := bridge.Subscribe(); err != nil {
			return err
		}
	}

	// Initialize handlers
	websocketH := websocket.NewWebsocketHandler(hub, authUc, userUc, notificationUc, websocket.Config{
		CollaboratorTimeout: cfg.Hub.CollaboratorTimeout,
		AllowedOrigin:       cfg.CORS.AllowedOrigin,
	}, log)
	httpH := httpHandler.NewHttpHandler(notificationUc, log)
	adminH := httpHandler.NewAdminHandler(hub.Admin, dispatcher, notificationUc, jobUc, userUc, log)
	authMiddleware := httpHandler.NewAuthMiddleware(authUc, userUc)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(httpHandler.RequestLogger(log))
	router.Use(httpHandler.CORS(cfg.CORS.AllowedOrigin))

	// Map routes
	httpHandler.MapHttpRoutes(router, httpH, adminH, websocketH, authMiddleware)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		hub.Shutdown()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	hub.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
