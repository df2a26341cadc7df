// Package main is the entrypoint for the Reactivities API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/reactivities/reactivities/internal/account"
	"github.com/reactivities/reactivities/internal/activities"
	"github.com/reactivities/reactivities/internal/auth"
	"github.com/reactivities/reactivities/internal/cache"
	"github.com/reactivities/reactivities/internal/config"
	"github.com/reactivities/reactivities/internal/events"
	"github.com/reactivities/reactivities/internal/handler"
	"github.com/reactivities/reactivities/internal/mediator"
	"github.com/reactivities/reactivities/internal/metrics"
	"github.com/reactivities/reactivities/internal/middleware"
	"github.com/reactivities/reactivities/internal/photos"
	"github.com/reactivities/reactivities/internal/profiles"
	"github.com/reactivities/reactivities/internal/repository"
	"github.com/reactivities/reactivities/internal/server"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	logger.Info("connected to database")

	if cfg.MigrateOnStart {
		applied, err := repo.Migrate(ctx)
		if err != nil {
			repo.Close()
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied", "versions", applied)
	}

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("redis unavailable")
	}
	logger.Info("connected to Redis")

	accessor, err := newPhotoAccessor(ctx, cfg)
	if err != nil {
		repo.Close()
		cacheClient.Close()
		return fmt.Errorf("photo accessor: %w", err)
	}

	recorder := metrics.NewPrometheus()
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	eventRepo := repository.NewEventRepository(repo)
	publisher := events.NewPublisher(cacheClient.Client(), logger, recorder)

	m := mediator.New(
		mediator.Logging(logger.With("component", "mediator")),
		mediator.Metrics(recorder),
		mediator.Validation(),
	)
	activities.NewHandlers(repo, eventRepo, cacheClient, publisher, logger.With("component", "activities"), recorder).Register(m)
	photos.NewHandlers(repo, accessor, cacheClient, cfg.PhotoProvider, logger.With("component", "photos"), recorder).Register(m)
	account.NewHandlers(repo, tokens, logger.With("component", "account")).Register(m)
	profiles.NewHandlers(repo).Register(m)

	r := setupRouter(m, repo, cacheClient, tokens, recorder, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Hooks run LIFO: the worker drains before Kafka, Redis and Postgres close.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	if cfg.EventsWorkerEnabled {
		var forwarder events.Forwarder
		if brokers := cfg.GetKafkaBrokers(); len(brokers) > 0 {
			producer := events.NewKafkaProducer(brokers)
			forwarder = events.NewKafkaForwarder(producer, cfg.KafkaTopic)
			srv.OnShutdown("kafka", func(context.Context) error {
				return producer.Close()
			})
			logger.Info("forwarding activity events to kafka", "topic", cfg.KafkaTopic, "brokers", len(brokers))
		}

		worker := events.NewWorker(cacheClient.Client(), eventRepo, forwarder, logger, events.NewConsumerID(), recorder)
		srv.Go("events.worker", worker.Run)
		srv.OnShutdown("events.worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"photo_provider", cfg.PhotoProvider,
	)

	return srv.Run(ctx)
}

func newPhotoAccessor(ctx context.Context, cfg *config.Config) (photos.Accessor, error) {
	switch cfg.PhotoProvider {
	case config.PhotoProviderS3:
		return photos.NewS3Accessor(ctx, photos.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			PublicBaseURL:   cfg.S3PublicBaseURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
	default:
		return photos.NewCloudinaryAccessor(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	m *mediator.Mediator,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	tokens *auth.TokenIssuer,
	recorder *metrics.PrometheusRecorder,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))

	healthHandler := handler.NewHealthHandler(map[string]handler.HealthChecker{
		"database": repo,
		"redis":    cacheClient,
	})
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Method(http.MethodGet, "/metrics", recorder.Handler())

	authCfg := middleware.AuthConfig{
		Logger: logger,
		Tokens: tokens,
	}

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      logger,
		Limiter:     cacheClient,
		UserEnabled: cfg.RateLimitAPIEnabled,
		UserRPM:     cfg.RateLimitAPIRPM,
		UserBurst:   cfg.RateLimitAPIBurst,
		IPEnabled:   cfg.RateLimitAuthEnabled,
		IPRPS:       cfg.RateLimitAuthRPS,
		IPBurst:     cfg.RateLimitAuthBurst,
	}

	activityHandler := handler.NewActivityHandler(m, logger)
	photoHandler := handler.NewPhotoHandler(m, logger)
	accountHandler := handler.NewAccountHandler(m, logger)
	profileHandler := handler.NewProfileHandler(m, logger)

	validActivityID := middleware.CanonicalActivityID("id")

	r.Route("/api/v1", func(r chi.Router) {
		// Anonymous account endpoints, limited per client IP
		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
			r.Use(middleware.RateLimitIP(rateLimitCfg))
			r.Post("/account/register", accountHandler.Register)
			r.Post("/account/login", accountHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(authCfg))
			r.Use(middleware.RateLimitUser(rateLimitCfg))

			r.Get("/account", accountHandler.Current)

			r.Route("/activities", func(r chi.Router) {
				r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
				r.Get("/", activityHandler.List)
				r.Post("/", activityHandler.Create)
				r.Post("/save", activityHandler.Save)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(validActivityID)
					r.Get("/", activityHandler.Get)
					r.Put("/", activityHandler.Update)
					r.Delete("/", activityHandler.Delete)
					r.Post("/attend", activityHandler.Attend)
					r.Get("/events", activityHandler.Events)
				})
			})

			r.Route("/photos", func(r chi.Router) {
				r.With(middleware.MaxBodySize(cfg.MaxUploadSize)).Post("/", photoHandler.Add)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.ValidateURLParam("id", middleware.ValidatePhotoID))
					r.Delete("/", photoHandler.Delete)
					r.Post("/main", photoHandler.SetMain)
				})
			})

			r.With(middleware.ValidateURLParam("username", middleware.ValidateUsername)).
				Get("/profiles/{username}", profileHandler.Get)
		})
	})

	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
