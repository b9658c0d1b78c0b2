package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/slotbook/libs/auth"
	"github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/httpx"
	"github.com/md-rashed-zaman/slotbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
	"github.com/md-rashed-zaman/slotbook/libs/runtime"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/grpcserver"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/slotbook/services/booking-service/internal/slots"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheck())
	}

	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	ctx, stop := runtime.SignalContext()
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

	loc, err := config.Location("TIMEZONE")
	if err != nil {
		panic(err)
	}
	lockTimeout := config.Millis("BOOKING_LOCK_TIMEOUT_MS", 5*time.Second)

	backend, err := openStore(ctx, logger, lockTimeout)
	if err != nil {
		logger.Error("store init failed", "err", err)
		panic(err)
	}
	defer backend.close()

	checks := []runtime.ReadyCheck{{Name: "store", Check: backend.store.Ping}}
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var writer outbox.Writer
	if w := outbox.NewKafkaWriter(brokers); w != nil {
		writer = w
		defer func() { _ = w.Close() }()
	}
	publisher := outbox.NewPublisher(backend.events, writer, logger, outbox.PublisherConfig{
		PollEvery: config.Millis("OUTBOX_POLL_MS", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	generator := slots.NewGenerator(backend.store, logger, slots.Options{Location: loc})
	svc := booking.NewService(backend.store, logger, nil)

	var jwks *auth.JWKSClient
	if url := config.String("JWKS_URL", ""); url != "" {
		jwks = auth.NewJWKSClient(url, time.Duration(config.Int("JWKS_CACHE_SECONDS", 300))*time.Second)
	}
	verifier := identity.NewVerifier(config.String("JWT_SECRET", ""), jwks, logger)
	if config.String("JWT_SECRET", "") == "" && jwks == nil {
		logger.Warn("token verification disabled; trusting gateway identity headers")
	}

	api := http.NewServeMux()
	handlers.New(generator, svc, backend.store, logger).Register(api)

	rateLimit, rdb := rateLimiter(logger)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/", httpx.Chain(api,
		verifier.Middleware,
		rateLimit,
	))

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           time.Duration(config.Int("CORS_MAX_AGE_SECONDS", 600)) * time.Second,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Millis("REQUEST_TIMEOUT_MS", 10*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcSrv, health := grpcserver.New(logger)
	lis, err := net.Listen("tcp", ":"+grpcPort)
	if err != nil {
		logger.Error("grpc listen failed", "err", err)
		panic(err)
	}
	go grpcserver.Watch(ctx, health, 5*time.Second, logger, checks...)
	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	grpcSrv.GracefulStop()
	logger.Info("servers stopped")
}
