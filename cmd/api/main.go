// Package main is the entrypoint for the tallyvox API server.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tallyvox/tallyvox/internal/auth"
	"github.com/tallyvox/tallyvox/internal/cache"
	"github.com/tallyvox/tallyvox/internal/config"
	"github.com/tallyvox/tallyvox/internal/email"
	"github.com/tallyvox/tallyvox/internal/events"
	"github.com/tallyvox/tallyvox/internal/handler"
	"github.com/tallyvox/tallyvox/internal/metrics"
	"github.com/tallyvox/tallyvox/internal/middleware"
	"github.com/tallyvox/tallyvox/internal/repository"
	"github.com/tallyvox/tallyvox/internal/server"
	"github.com/tallyvox/tallyvox/internal/service"
	"github.com/tallyvox/tallyvox/internal/telemetry"
)

const (
	serviceName  = "tallyvox-api"
	emailTimeout = 10 * time.Second
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.OTELEndpoint,
		Insecure:    cfg.OTELInsecure,
	}, logger)
	if err != nil {
		logger.Warn("tracing unavailable", slog.String("error", err.Error()))
	}

	if cfg.MigrateOnStart {
		if err := repository.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Error("failed to run migrations",
				slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			)
			os.Exit(1)
		}
		logger.Info("database migrations applied")
	}

	repo, err := repository.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.WithProfileTTL(cfg.ProfileCacheTTL))
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	publisher := initPublisher(cfg, logger)

	recorder := metrics.NewInMemory()

	resolver := auth.NewResolver(auth.ResolverConfig{
		Provider: initIdentityProvider(cfg, logger),
		Profiles: repo,
		Cache:    cacheClient,
		Logger:   logger,
		Metrics:  recorder,
	})
	evaluator := auth.NewEvaluator(cfg.PermissionDefaultAllow)

	mailer := email.NewClient(cfg.PostmarkServerToken, cfg.EmailFrom, cfg.EmailAPIURL, email.WithHTTPClient(tracedClient(emailTimeout)))
	if !mailer.Configured() {
		logger.Info("email notifications disabled")
	}

	voucherService := service.NewVoucherService(service.VoucherServiceConfig{
		Store:    repo,
		Notifier: mailer,
		Events:   publisher,
		Logger:   logger,
		Metrics:  recorder,
	})

	h := handler.New()
	healthHandler := handler.NewHealthHandler(logger,
		handler.HealthCheck{Name: "database", Checker: repo},
		handler.HealthCheck{Name: "redis", Checker: cacheClient},
	)
	voucherHandler := handler.NewVoucherHandler(voucherService, evaluator, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	r := setupRouter(h, healthHandler, voucherHandler, metricsHandler, resolver, cacheClient, cfg, logger)

	srv := server.New(
		otelhttp.NewHandler(r, serviceName),
		server.Config{
			Port:            cfg.AppPort,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
		},
		logger,
	)

	// Registered first, stopped last.
	srv.OnShutdown("tracing", shutdownTracing)
	srv.OnShutdown("database", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})
	srv.OnShutdown("events", func(context.Context) error {
		return publisher.Close()
	})

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("env", cfg.AppEnv),
		slog.Bool("jwt_provider", cfg.UsesJWTProvider()),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
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

	logger := slog.New(h).With(slog.String("service", serviceName))
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// initIdentityProvider picks local JWT verification when a secret is
// configured and the remote user endpoint otherwise.
func initIdentityProvider(cfg *config.Config, logger *slog.Logger) auth.IdentityProvider {
	if cfg.UsesJWTProvider() {
		logger.Info("identity provider: local JWT verification")
		return auth.NewJWTProvider(cfg.IdentityJWTSecret, cfg.IdentityJWTIssuer)
	}
	logger.Info("identity provider: remote user endpoint",
		slog.String("url", redactURL(cfg.IdentityProviderURL)),
	)
	return auth.NewHTTPProvider(cfg.IdentityProviderURL, cfg.IdentityProviderAPIKey, cfg.IdentityTimeout,
		auth.WithHTTPClient(tracedClient(cfg.IdentityTimeout)))
}

// tracedClient returns an HTTP client that propagates trace context.
func tracedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// initPublisher connects to RabbitMQ when configured. Events are best
// effort, so a broker outage degrades to the no-op publisher.
func initPublisher(cfg *config.Config, logger *slog.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		logger.Info("event publishing disabled")
		return events.NewNoop()
	}
	p, err := events.DialAMQP(cfg.AMQPURL, logger)
	if err != nil {
		logger.Warn("event broker unavailable, publishing disabled",
			slog.String("error", sanitizeError(err, cfg.AMQPURL)),
		)
		return events.NewNoop()
	}
	logger.Info("connected to event broker")
	return p
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h *handler.Handler,
	healthHandler *handler.HealthHandler,
	voucherHandler *handler.VoucherHandler,
	metricsHandler *handler.MetricsHandler,
	resolver middleware.UserResolver,
	limiter middleware.RateLimiter,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:      logger,
		Limiter:     limiter,
		UserEnabled: cfg.RateLimitAPIEnabled,
		UserRPM:     cfg.RateLimitAPIRPM,
		UserBurst:   cfg.RateLimitAPIBurst,
		IPEnabled:   cfg.RateLimitIPEnabled,
		IPRPS:       cfg.RateLimitIPRPS,
		IPBurst:     cfg.RateLimitIPBurst,
	}

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Probes (no auth required)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Use(middleware.Authenticate(middleware.AuthConfig{
			Logger:   logger,
			Resolver: resolver,
		}))
		r.Use(middleware.RateLimitUser(rateLimitCfg))

		// Method and permission checks are per action inside Dispatch.
		r.HandleFunc("/vouchers", voucherHandler.Dispatch)
	})

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
