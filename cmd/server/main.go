package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sanadhr/askhr-backend/internal/ai"
	"github.com/sanadhr/askhr-backend/internal/analysis"
	"github.com/sanadhr/askhr-backend/internal/auth"
	"github.com/sanadhr/askhr-backend/internal/config"
	"github.com/sanadhr/askhr-backend/internal/docs"
	"github.com/sanadhr/askhr-backend/internal/logging"
	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/qa"
	"github.com/sanadhr/askhr-backend/internal/results"
	"github.com/sanadhr/askhr-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Environment, cfg.LogLevel)
	ctx := context.Background()

	// ── PostgreSQL ────────────────────────────────────────────
	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connect")
	}
	defer pgPool.Close()
	pgStore := store.NewPostgresStore(pgPool)
	if err := pgStore.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("postgres migrate")
	}

	// ── MongoDB ──────────────────────────────────────────────
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect")
	}
	defer mongoClient.Disconnect(ctx)
	mongoStore := store.NewMongoStore(mongoClient.Database(cfg.MongoDB))

	// ── Redis ────────────────────────────────────────────────
	rdb, err := store.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connect")
	}
	defer rdb.Close()
	tokens := auth.NewTokenStore(rdb)

	// ── MinIO ────────────────────────────────────────────────
	minioStore, err := store.NewMinioStore(
		ctx, cfg.MinioEndpoint, cfg.MinioAccessKey,
		cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("minio connect")
	}

	// ── AI providers ─────────────────────────────────────────
	var primary, secondary ai.Provider
	if cfg.PrimaryAIURL != "" {
		primary = ai.NewHTTPProvider("primary", cfg.PrimaryAIURL, cfg.PrimaryAIKey, cfg.PrimaryAIModel)
	}
	if cfg.SecondaryAIURL != "" {
		secondary = ai.NewHTTPProvider("secondary", cfg.SecondaryAIURL, cfg.SecondaryAIKey, cfg.SecondaryAIModel)
	}
	generator := ai.NewFallback(primary, secondary)

	// ── Handlers ─────────────────────────────────────────────
	authHandler := auth.NewHandler(tokens)
	qaHandler := qa.NewHandler(pgStore, mongoStore, generator, cfg.RetrievalTopK)
	analysisHandler := analysis.NewHandler(pgStore, minioStore, pgStore, mongoStore, generator, cfg.RetrievalTopK)
	docsHandler := docs.NewHandler(pgStore, minioStore)
	resultsHandler := results.NewHandler(mongoStore)

	// ── Router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Token provisioning (public, demo-lenient)
		r.Post("/tokens", authHandler.Issue)
		r.Delete("/tokens/{token}", authHandler.Revoke)

		// Tenant-scoped surface
		r.Group(func(r chi.Router) {
			r.Use(middleware.ResolveTenant(tokens, cfg.DefaultTenantID))

			r.Post("/qa/stream", qaHandler.Stream)
			r.Post("/analysis/stream", analysisHandler.Stream)

			r.Route("/documents", func(r chi.Router) {
				r.Post("/", docsHandler.Create)
				r.Get("/", docsHandler.List)
				r.Get("/{id}", docsHandler.Get)
			})

			r.Route("/answers", func(r chi.Router) {
				r.Get("/", resultsHandler.ListAnswers)
				r.Get("/{id}", resultsHandler.GetAnswer)
			})
			r.Route("/analyses", func(r chi.Router) {
				r.Get("/", resultsHandler.ListAnalyses)
				r.Get("/{id}", resultsHandler.GetAnalysis)
			})
		})
	})

	// ── Server ───────────────────────────────────────────────
	// Long write timeout: answer and analysis streams stay open while the
	// provider generates.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  1 * time.Minute,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("askhr backend listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	shutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	srv.Shutdown(shutCtx)
}
