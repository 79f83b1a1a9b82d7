package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/md-rashed-zaman/salonagenda/libs/config"
	"github.com/md-rashed-zaman/salonagenda/libs/db"
	"github.com/md-rashed-zaman/salonagenda/libs/grpcx"
	"github.com/md-rashed-zaman/salonagenda/libs/httpx"
	"github.com/md-rashed-zaman/salonagenda/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonagenda/libs/otel"
	"github.com/md-rashed-zaman/salonagenda/libs/runtime"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/agenda"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/cache"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/migrations"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/policy"
	"github.com/md-rashed-zaman/salonagenda/services/booking-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}
	metrics.Register()

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		panic(err)
	}
	pool, err := db.OpenWithOptions(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	if config.Bool("MIGRATIONS_ENABLED", true) {
		if err := migrations.Up(ctx, pool, logger); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}

	defaults, err := policy.LoadDefaults(config.String("POLICY_DEFAULTS_FILE", "configs/policy.defaults.yaml"), config.String("DEFAULT_TIMEZONE", ""))
	if err != nil {
		logger.Error("invalid default operating hours", "err", err)
		panic(err)
	}

	var rdb *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer func() { _ = rdb.Close() }()
	}
	cacheTTL, err := config.Duration("POLICY_CACHE_TTL", 5*time.Minute)
	if err != nil {
		panic(err)
	}

	repo := storage.NewRepository(pool)
	outboxStore := outbox.NewStore()
	policyCache := cache.NewPolicyCache(repo, rdb, cacheTTL, logger)
	policies := policy.WithFallback(policyCache, defaults, logger)
	agendaSvc := agenda.New(policies, repo, repo, agenda.WithLogger(logger))

	brokers := config.String("KAFKA_BROKERS", "")
	outboxPublisher := outbox.NewPublisher(pool, outboxStore, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
		OnPublish: metrics.IncOutboxPublished,
	})
	go outboxPublisher.Run(ctx)

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
		{Name: "kafka", Check: kafkax.ReadyCheck(kafkax.SplitBrokers(brokers)), Optional: true},
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			Optional: true,
		})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/metrics", promhttp.Handler())

	handlers.Routes{
		Availability:   handlers.NewAvailabilityHandler(agendaSvc, logger),
		Booking:        handlers.NewBookingHandler(repo, outboxStore, agendaSvc, logger),
		OperatingHours: handlers.NewOperatingHoursHandler(repo, outboxStore, policies, policyCache, logger),
	}.Register(mux, publicRateLimit(rdb, logger))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Idempotency-Key", "X-Request-Id", "X-Salon-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcx.NewServer()
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go grpcx.Serve(ctx, logger, grpcSrv, lis)
	grpcx.SetServing(health, service, true)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	grpcx.SetServing(health, service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
