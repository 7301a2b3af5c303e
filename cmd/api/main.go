// Package main is the entrypoint for the Meetapp API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/meetapp/meetapp/internal/cache"
	"github.com/meetapp/meetapp/internal/clock"
	"github.com/meetapp/meetapp/internal/config"
	"github.com/meetapp/meetapp/internal/handler"
	"github.com/meetapp/meetapp/internal/metrics"
	"github.com/meetapp/meetapp/internal/middleware"
	"github.com/meetapp/meetapp/internal/notification"
	"github.com/meetapp/meetapp/internal/repository"
	"github.com/meetapp/meetapp/internal/scheduling"
	"github.com/meetapp/meetapp/internal/server"
	"github.com/meetapp/meetapp/internal/service"
)

// notificationWorker is implemented by the Redis and Kafka consumers.
type notificationWorker interface {
	Run(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

func main() {
	// Initialize context
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "error", err)
		os.Exit(1)
	}

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	repo.SetFilesBaseURL(cfg.FilesBaseURL)
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	metricsRecorder := metrics.NewInMemory()
	clk := clock.System()

	// Notification pipeline
	var queue notification.Queue
	kafkaCfg := notification.KafkaConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}
	switch cfg.NotifyTransport {
	case config.TransportKafka:
		queue = notification.NewKafkaQueue(kafkaCfg)
	default:
		queue = notification.NewRedisQueue(cacheClient.Client())
	}
	dispatcher := notification.NewDispatcher(queue, notification.DispatcherConfig{
		BufferSize:     cfg.NotifyBufferSize,
		HandoffTimeout: cfg.NotifyHandoffTimeout,
		PublishTimeout: cfg.NotifyPublishTimeout,
	}, logger, metricsRecorder)
	dispatcher.Start()

	// Initialize services
	opts := service.Options{Location: loc, Metrics: metricsRecorder, Logger: logger}
	policy := scheduling.NewPolicy(repo, repo)
	meetupService := service.NewMeetupService(repo, policy, clk, opts)
	subscriptionService := service.NewSubscriptionService(repo, repo, policy, dispatcher, clk, opts)

	deps := []handler.Dependency{
		{Name: "postgres", Checker: repo},
		{Name: "redis", Checker: cacheClient},
	}

	var worker notificationWorker
	if cfg.NotifyWorkerEnabled {
		deliveryDB, err := notification.OpenDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error(
				"failed to open delivery log",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		defer deliveryDB.Close()
		deps = append(deps, handler.Dependency{Name: "deliveries", Checker: handler.PingFunc(deliveryDB.PingContext)})

		var mailer notification.Mailer
		if cfg.SMTPEnabled() {
			mailer = notification.NewSMTPMailer(notification.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				Username: cfg.SMTPUsername,
				Password: cfg.SMTPPassword,
				From:     cfg.MailFrom,
			})
		} else {
			mailer = notification.NewLogMailer(logger)
		}

		processor := notification.NewProcessor(
			notification.NewSQLDeliveryStore(deliveryDB),
			repo,
			mailer,
			notification.ProcessorConfig{MaxAttempts: cfg.NotifyMaxAttempts, Location: loc, Clock: clk},
			logger,
			metricsRecorder,
		)

		switch cfg.NotifyTransport {
		case config.TransportKafka:
			worker = notification.NewKafkaWorker(kafkaCfg, processor, logger, metricsRecorder)
		default:
			worker = notification.NewWorker(cacheClient.Client(), processor, logger, notification.NewConsumerID(), metricsRecorder)
		}
	}

	// Initialize handlers
	h := handler.New(middleware.UserIDHeader)
	healthHandler := handler.NewHealthHandler(deps...)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)
	meetupHandler := handler.NewMeetupHandler(meetupService, clk, logger)
	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, clk, logger)

	// Setup router
	r := setupRouter(h, healthHandler, metricsHandler, meetupHandler, subscriptionHandler, cacheClient, cfg, logger)

	// Create and run server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// LIFO: the dispatcher flushes to the queue before the worker stops.
	if worker != nil {
		go func() {
			if err := worker.Run(context.Background()); err != nil {
				logger.Error("notification worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("notification worker", worker.Shutdown)
	}
	srv.OnShutdown("notification dispatcher", dispatcher.Shutdown)

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"timezone", loc.String(),
		"notify_transport", cfg.NotifyTransport,
		"notify_worker", worker != nil,
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
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
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	metricsHandler *handler.MetricsHandler,
	meetupHandler *handler.MeetupHandler,
	subscriptionHandler *handler.SubscriptionHandler,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{HSTS: !cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no identity required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	// Root info endpoint
	r.Get("/", h.Hello)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:            logger,
		Limiter:           cacheClient,
		Enabled:           cfg.RateLimitAPIEnabled,
		RequestsPerMinute: cfg.RateLimitAPIRPM,
		Burst:             cfg.RateLimitAPIBurst,
	}

	// API v1 routes (require a caller identity)
	r.Route("/api/v1", func(r chi.Router) {
		// Anonymous callers are limited by IP before being rejected
		r.Use(middleware.RateLimit(rateLimitCfg))
		r.Use(middleware.Identity(logger))

		r.Route("/meetups", func(r chi.Router) {
			r.Get("/", meetupHandler.List)
			r.Post("/", meetupHandler.Create)
			r.Put("/{id}", meetupHandler.Update)
			r.Delete("/{id}", meetupHandler.Delete)
		})

		r.Get("/organizing", meetupHandler.Organizing)

		r.Route("/subscriptions", func(r chi.Router) {
			r.Get("/", subscriptionHandler.List)
			r.Post("/", subscriptionHandler.Subscribe)
			r.Get("/calendar.ics", subscriptionHandler.Calendar)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

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
