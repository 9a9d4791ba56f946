package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openblog/apiserver/config"
	"github.com/openblog/apiserver/internal/auth"
	"github.com/openblog/apiserver/internal/db"
	"github.com/openblog/apiserver/internal/handlers"
	"github.com/openblog/apiserver/internal/mq"
	"github.com/openblog/apiserver/internal/services"
	"github.com/openblog/apiserver/internal/storage"
	"github.com/openblog/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and background consumers.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
	cancel     context.CancelFunc
}

// New constructs a Server with basic middleware and defaults.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	postRepo := store.NewPostRepository(dbConn)
	commentRepo := store.NewCommentRepository(dbConn)

	userService := services.NewUserService(userRepo)
	postService := services.NewPostService(postRepo, commentRepo)
	commentService := services.NewCommentService(commentRepo)

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret)

	broker, err := openBroker(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	var publisher services.RenamePublisher
	if broker != nil {
		publisher = broker
	}
	renameFanout := services.NewRenameFanout(postRepo, commentRepo, publisher)

	avatars, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		if broker != nil {
			_ = broker.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	requireAuth := handlers.RequireAuth(tokens, userService)
	optionalAuth := handlers.OptionalAuth(tokens, userService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokens, requireAuth)
		handlers.ProfileRouter(r, userService, renameFanout, avatars, requireAuth)
		handlers.BlogRouter(r, postService, commentService, requireAuth, optionalAuth)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	if broker != nil {
		go consumeRenames(consumerCtx, broker, renameFanout)
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		cancel:     cancel,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// openBroker builds the configured MQ backend, or returns nil when no
// broker is configured (rename fan-out then runs in-process).
func openBroker(ctx context.Context, cfg config.MQConfig) (*mq.MQ, error) {
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// openStorage builds the configured object-storage backend, or returns nil
// when avatars are disabled.
func openStorage(ctx context.Context, cfg config.StorageConfig) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}

// consumeRenames applies author-rename events published by profile updates.
// Malformed events are dropped rather than requeued.
func consumeRenames(ctx context.Context, broker *mq.MQ, fanout *services.RenameFanout) {
	_ = broker.Subscribe(ctx, services.RenameChannel, func(ctx context.Context, msg mq.Message) error {
		event, err := services.DecodeRenameEvent(msg.Data)
		if err != nil {
			return nil
		}
		return fanout.Apply(ctx, event.AuthorID, event.Name)
	})
}
