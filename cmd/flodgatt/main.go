// Command flodgatt is Flodgatt's process entry point: it wires together
// Redis pub/sub ingestion, the SubscriptionManager fan-out core, the
// WS/SSE client transports, and the ambient stack (config, logging,
// metrics, tracing, health) — zap.NewProduction in production, a shared
// admin HTTP mux, graceful shutdown via signal.Notify.
package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flodgatt/flodgatt/internal/auth"
	"github.com/flodgatt/flodgatt/internal/authstore"
	"github.com/flodgatt/flodgatt/internal/circuitbreaker"
	"github.com/flodgatt/flodgatt/internal/config"
	"github.com/flodgatt/flodgatt/internal/health"
	"github.com/flodgatt/flodgatt/internal/httpapi"
	"github.com/flodgatt/flodgatt/internal/metrics"
	"github.com/flodgatt/flodgatt/internal/ratelimit"
	"github.com/flodgatt/flodgatt/internal/redisconn"
	"github.com/flodgatt/flodgatt/internal/streaming"
	"github.com/flodgatt/flodgatt/internal/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("flodgatt: config: %v", err)
	}

	logger, atom, err := newLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("flodgatt: logger: %v", err)
	}
	defer logger.Sync()

	if stopWatch, err := config.WatchLogLevel(cfg.EnvFile, atom, logger); err != nil {
		logger.Debug("log level hot-reload disabled", zap.Error(err))
	} else {
		defer stopWatch()
	}

	circuitbreaker.StartMetricsCollection()

	if err := tracing.Initialize(tracing.Config{
		Enabled:      getEnvBool("TRACING_ENABLED"),
		ServiceName:  "flodgatt",
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
	}, logger); err != nil {
		logger.Warn("tracing init failed", zap.Error(err))
	}

	store, err := authstore.Open(authstore.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		SSLMode:  cfg.DB.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open authstore", zap.Error(err))
	}
	defer store.Close()

	conn, err := redisconn.Connect(redisconn.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		Namespace:    cfg.Redis.Namespace,
		PollInterval: cfg.RedisFreq,
	}, logger)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}

	recorder := metrics.NewRecorder()
	pingInterval := cfg.WSFreq
	if cfg.SSEFreq < pingInterval {
		pingInterval = cfg.SSEFreq
	}
	mgr := streaming.NewManager(conn, logger, pingInterval, 4, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mgr.Run(ctx)

	limiter := ratelimit.New(5, 20, 10*time.Minute)
	go limiter.RunEvictor(time.Minute, ctx.Done())

	// Public client-facing mux: streaming transports only, rate limited
	// per source IP so a single client can't exhaust upgrade capacity.
	clientMux := http.NewServeMux()
	httpapi.NewStreamingHandler(mgr, store, store, logger, cfg.WhitelistMode).RegisterRoutes(clientMux)
	clientHandler := rateLimitMiddleware(limiter, logger, clientMux)

	clientServer := &http.Server{
		Handler:      clientHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // streaming responses never complete
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if cfg.Socket != "" {
			logger.Info("client API listening on unix socket", zap.String("socket", cfg.Socket))
			_ = os.Remove(cfg.Socket)
			lis, err := net.Listen("unix", cfg.Socket)
			if err != nil {
				logger.Fatal("failed to listen on socket", zap.Error(err))
			}
			if err := clientServer.Serve(lis); err != nil && err != http.ErrServerClosed {
				logger.Error("client server failed", zap.Error(err))
			}
			return
		}
		addr := cfg.Bind + ":" + strconv.Itoa(cfg.Port)
		logger.Info("client API listening", zap.String("addr", addr))
		clientServer.Addr = addr
		if err := clientServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("client server failed", zap.Error(err))
		}
	}()

	// Admin mux: health, metrics, and the diagnostics endpoint — never
	// exposed on the same port as the public client API.
	adminMux := http.NewServeMux()
	hm := health.NewManager(logger)
	health.NewHTTPHandler(hm, logger).RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, 15*time.Minute)
	httpapi.NewAdminHandler(mgr, logger).RegisterRoutes(adminMux, jwtManager)

	registerHealthCheckers(hm, store, cfg, logger)

	adminPort := getEnvOrDefaultInt("HEALTH_PORT", 8081)
	adminServer := &http.Server{
		Addr:         ":" + strconv.Itoa(adminPort),
		Handler:      adminMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		_ = hm.Start(ctx)
		logger.Info("admin HTTP server listening", zap.Int("port", adminPort))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	_ = mgr.Shutdown(shutdownCtx)
	_ = clientServer.Shutdown(shutdownCtx)
	_ = adminServer.Shutdown(shutdownCtx)
	_ = hm.Stop()
}

// registerHealthCheckers wires the standalone go-redis client used purely
// for liveness probing (independent of internal/redisconn's hand-rolled
// RESP connection on the hot path) and the authstore's Postgres pool,
// plus a custom check reporting the SubscriptionManager's poll loop as
// alive.
func registerHealthCheckers(hm *health.Manager, store *authstore.Store, cfg *config.Config, logger *zap.Logger) {
	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Host + ":" + strconv.Itoa(cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	redisWrapper := circuitbreaker.NewRedisWrapper(redisClient, logger)
	_ = hm.RegisterChecker(health.NewRedisHealthChecker(redisClient, redisWrapper, logger))
	_ = hm.RegisterChecker(health.NewDatabaseHealthChecker(store.DB(), store.Wrapper(), logger))

	_ = hm.RegisterChecker(health.NewCustomHealthChecker("subscription-manager", true, 5*time.Second,
		func(ctx context.Context) health.CheckResult {
			return health.CheckResult{Status: health.StatusHealthy, Message: "poll loop running"}
		}))
}

func rateLimitMiddleware(limiter *ratelimit.Limiter, logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !limiter.Allow(ip) {
			metrics.RecordConnectionRejected("rate_limited")
			http.Error(w, `{"error":"too many connection attempts"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func newLogger(environment string) (*zap.Logger, zap.AtomicLevel, error) {
	var cfg zap.Config
	if environment == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	return logger, cfg.Level, err
}

func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	v := os.Getenv(key)
	return v != "" && (strings.EqualFold(v, "true") || v == "1")
}
