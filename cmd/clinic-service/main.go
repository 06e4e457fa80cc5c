package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/auth"
	"github.com/GestIAdev/Dentiagest-sub007/internal/auth/jwt"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/consumers"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/events"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/handler"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/config"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "clinic-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.JWT.Secret == "" {
		fmt.Fprintln(os.Stderr, "DENTIAGEST_JWT_SECRET must be set")
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Clinic Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(true)
	}

	repos := repository.New(db, m)
	served := repos.ServedTables()

	if cfg.Tenancy.EnforceOnStartup {
		if _, err := consumers.EnforceServedTables(ctx, db, served, log); err != nil {
			log.Fatal().Err(err).Msg("failed to enforce served tables")
		}
	}

	// RabbitMQ is optional: without it the service runs without events.
	var (
		rmq       *messaging.RabbitMQ
		publisher messaging.EventPublisher
	)
	if cfg.RabbitMQ.Enabled() {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		pub, err := messaging.NewPublisher(rmq, messaging.ExchangeClinicEvents, serviceName, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		publisher = pub

		migrator := migration.NewMigrator(db, log, migration.WithMetrics(m))
		consumer, err := consumers.NewMigrationEventConsumer(rmq, migrator, served, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create migration event consumer")
		}
		go func() {
			if err := consumer.Start(ctx); err != nil {
				log.Error().Err(err).Msg("migration event consumer stopped")
			}
		}()
	} else {
		log.Warn().Msg("rabbitmq not configured, events disabled")
	}

	svc := service.NewClinicService(db, repos, events.NewClinicEventPublisher(publisher, log), log)
	resolver := tenancy.NewResolver(tenancy.NewDirectory(db), m, log)
	authn := auth.NewMiddleware(jwt.NewManager(&cfg.JWT), log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Metrics(m))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", cfg.Tenancy.ClinicHeader},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			status["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, status)
	})
	if m != nil {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authn.Authenticate)
		r.Use(tenancy.Middleware(resolver, cfg.Tenancy.ClinicHeader))
		handler.Routes(r, svc, log)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
