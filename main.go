package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/checkin"
	"ms-checkin/internal/config"
	"ms-checkin/internal/database"
	"ms-checkin/internal/database/migrations"
	"ms-checkin/internal/hub"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/locks"
	"ms-checkin/internal/logger"
	notificationsdb "ms-checkin/internal/notifications/db"
	"ms-checkin/internal/realtime/realtime_api"
	seatingdb "ms-checkin/internal/seating/db"
	"ms-checkin/internal/telemetry"
	"ms-checkin/internal/utils"
)

func newLogger(cfg config.LogConfig) *logger.Logger {
	log, err := logger.New(logger.Options{
		Dir:      cfg.Dir,
		Name:     "checkin",
		Level:    logger.ParseLevel(cfg.Level),
		Terminal: os.Stdout,
	})
	if err != nil {
		log = logger.NewLogger()
		log.Warn("CONFIG", fmt.Sprintf("Falling back to default logger: %v", err))
	}
	return log
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var (
		bunDB *bun.DB
		err   error
	)
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to %s (attempt %d/%d)", cfg.Driver, i+1, maxRetries))
		bunDB, err = database.Open(cfg)
		if err == nil {
			if err = bunDB.PingContext(ctx); err == nil {
				break
			}
			bunDB.Close()
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect after %d attempts: %v", maxRetries, err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ %s connection successful", cfg.Driver))

	if cfg.Driver == "sqlite" {
		if err := database.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Failed to create schema: %v", err))
		}
		return bunDB
	}

	if !cfg.AutoMigrate {
		log.Info("DATABASE", "DB_AUTO_MIGRATE disabled, skipping migrations")
		return bunDB
	}
	runner := migrations.NewRunner(bunDB, migrations.Options{Dir: cfg.MigrationsDir, AutoMigrate: cfg.AutoMigrate}, log)
	if err := runner.Initialize(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration setup failed: %v", err))
	}
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	return bunDB
}

// newLocker picks the table lock backend. The returned close func releases
// the Redis client, if any.
func newLocker(ctx context.Context, cfg *config.Config, log *logger.Logger) (locks.Locker, func()) {
	if cfg.Lock.Backend != "redis" {
		log.Info("CHECKIN", "Using in-process table locks")
		return locks.NewMemory(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
	return locks.NewRedis(client, cfg.Lock.TTL, cfg.Lock.RetryInterval, log), func() { client.Close() }
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) auth.Verifier {
	switch {
	case cfg.OIDCIssuer != "":
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		log.Info("AUTH", fmt.Sprintf("OIDC middleware applied to realtime routes (issuer %s)", cfg.OIDCIssuer))
		return v
	case cfg.JWTSecret != "":
		log.Info("AUTH", "JWT middleware applied to realtime routes")
		return auth.SecretVerifier(cfg.JWTSecret)
	default:
		log.Warn("AUTH", "OIDC_ISSUER and AUTH_JWT_SECRET not set, realtime routes are open")
		return nil
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	log := newLogger(cfg.Log)
	defer log.Close()

	log.Info("APP", "Starting check-in service initialization")
	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	ctx := context.Background()
	shutdownTracing := telemetry.Setup("ms-checkin", cfg.Telemetry, log)

	bunDB := connectDatabase(ctx, cfg.Database, log)
	defer bunDB.Close()

	locker, closeLocker := newLocker(ctx, cfg, log)
	defer closeLocker()

	registry := hub.NewRegistry(cfg.Hub.SessionBuffer, log)
	store := seatingdb.New(bunDB)
	notifications := notificationsdb.New(bunDB)

	var opts []checkin.Option
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		opts = append(opts, checkin.WithPublisher(producer))
		log.Info("KAFKA", fmt.Sprintf("Mirroring check-in events to %s", cfg.Kafka.Topic))
	}
	processor := checkin.NewProcessor(store, locker, registry, log, opts...)

	handler := realtime_api.NewHandler(processor, notifications, store, registry, log)
	handler.PingInterval = cfg.Hub.PingInterval
	handler.WriteTimeout = cfg.Hub.WriteTimeout

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]interface{}{
			"sessions": registry.Stats(),
		}))
	})

	verifier := newVerifier(ctx, cfg.Auth, log)
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Route("/realtime", handler.Mount)
	})
	log.Info("ROUTER", "Realtime routes registered under /realtime")

	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     otelhttp.NewHandler(r, "ms-checkin"),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Check-in service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Check-in service shutdown complete")
	}
	if err := shutdownTracing(ctxShutdown); err != nil {
		log.Warn("TELEMETRY", fmt.Sprintf("Tracer shutdown: %v", err))
	}
}
