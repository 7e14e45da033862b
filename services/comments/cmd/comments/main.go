package main

import (
	"context"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/vidhub/internal/platform/auth"
	"github.com/example/vidhub/internal/platform/config"
	"github.com/example/vidhub/internal/platform/db"
	"github.com/example/vidhub/internal/platform/httpserver"
	"github.com/example/vidhub/internal/platform/logging"
	"github.com/example/vidhub/internal/platform/metrics"
	"github.com/example/vidhub/internal/platform/natsconn"
	"github.com/example/vidhub/internal/platform/run"
	"github.com/example/vidhub/services/comments/internal/events"
	"github.com/example/vidhub/services/comments/internal/handlers"
	"github.com/example/vidhub/services/comments/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	log = logging.ForService(log, cfg.ServiceName)
	defer func() { _ = log.Sync() }()

	metrics.Register()

	comments, closePool := initComments(log)
	if closePool != nil {
		defer closePool()
	}

	broker := events.NewBroker(log)

	// NATS is optional: without it events stay instance-local.
	nc, err := natsconn.Connect(natsconn.Options{})
	if err != nil {
		log.Warn("nats unavailable, events stay instance-local", zap.Error(err))
		nc = nil
	} else {
		defer nc.Close()
	}
	publisher := events.NewPublisher(nc, broker, log)

	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	verifier := auth.JWTVerifier{Secret: []byte(jwtSecret)}

	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	r.Handle("/metrics", metrics.Handler())

	// Public read: thread snapshot and live event stream. The stream
	// accepts but does not require a token.
	r.Get("/v1/videos/{video_id}/comments", handlers.GetThread(comments))
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(verifier))
		r.Get("/v1/videos/{video_id}/comments/events", handlers.StreamComments(broker, log))
	})

	// Writes require auth.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(verifier))
		r.Post("/v1/videos/{video_id}/comments", handlers.CreateComment(comments, publisher))
		r.Put("/v1/comments/{comment_id}", handlers.UpdateComment(comments, publisher))
		r.Delete("/v1/comments/{comment_id}", handlers.DeleteComment(comments, publisher))
	})

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		if nc != nil {
			if err := events.StartConsumer(ctx, nc, broker, log); err != nil {
				log.Error("event consumer", zap.Error(err))
			}
		}

		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}

// initComments selects the CommentStore backend.
// In production (APP_ENV=production) it requires a working Postgres
// connection and terminates the process otherwise.
func initComments(log *zap.Logger) (store.CommentStore, func()) {
	isProd := strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production")

	pool, err := db.Open(context.Background())
	if err != nil {
		if isProd {
			log.Error("postgres is required in production but unavailable", zap.Error(err))
			_ = log.Sync()
			os.Exit(1)
		}
		log.Warn("postgres unavailable, using in-memory comment store (development only)", zap.Error(err))
		return store.NewInMemoryCommentStore(), nil
	}

	log.Info("comments store: postgres")
	return store.NewPostgresCommentStore(pool), pool.Close
}
