package main

import (
	"context"   // Background jobs and shutdown deadline
	"io"        // Log output fan-out
	"net/http"  // HTTP server
	"os"        // Stdout and signals
	"os/signal" // Shutdown signals
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"currency_ledger/internal/api"        // Custom package for API handlers
	"currency_ledger/internal/audit"      // Transaction log sink and replay job
	"currency_ledger/internal/config"     // Custom package for configuration
	"currency_ledger/internal/db"         // Database connection
	"currency_ledger/internal/ledger"     // Mutation engine
	"currency_ledger/internal/metrics"    // Prometheus collectors
	"currency_ledger/internal/middleware" // Custom package for middleware
	"currency_ledger/internal/store"      // MySQL balance store

	"github.com/gin-gonic/gin"         // Gin web framework
	"github.com/redis/go-redis/v9"     // Redis client
	"github.com/sirupsen/logrus"       // Logrus for structured logging
	"gopkg.in/natefinch/lumberjack.v2" // Log file rotation
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	setupLogging(cfg)

	// Refuse to start on incomplete configuration
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("invalid configuration: %v", err)
	}
	loc, err := time.LoadLocation(cfg.DailyResetTZ) // Zone of the daily reset
	if err != nil {
		logrus.Fatalf("failed to load time zone %q: %v", cfg.DailyResetTZ, err)
	}

	// Connect to the database
	conn, err := db.Open(cfg.DSN(), db.PoolConfig{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}
	sqlDB, err := conn.DB()
	if err != nil {
		logrus.Fatalf("failed to get DB handle: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		logrus.Fatalf("failed to ping DB: %v", err)
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Wire the engine
	engine := ledger.NewEngine(store.New(conn), audit.NewLogger(conn, redisClient), ledger.Options{
		DailyReward:         cfg.DailyRewardAmount,
		DefaultDenomination: cfg.DefaultDenomination,
		Reset: ledger.ResetSchedule{
			Hour:     cfg.DailyResetHour,
			Minute:   cfg.DailyResetMinute,
			Location: loc,
		},
		Observer: metrics.LedgerObserver{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Retry transaction records that missed their first write
	replayer := audit.NewReplayer(conn, redisClient, cfg.AuditReplayInterval)
	go replayer.Start(ctx)

	// Per-client rate limiting
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	limiter.StartCleanup(10*time.Minute, ctx.Done())

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r, err := api.NewRouter(api.RouterConfig{
		Engine:         engine,
		DB:             conn,
		Redis:          redisClient,
		JWTSecret:      cfg.JWTSecret,
		AllowedIPs:     cfg.AllowedIPs,
		TrustedProxies: cfg.TrustedProxies,
		APIPrefix:      cfg.APIPrefix,
		CORSOrigins:    cfg.CORSOrigins,
		RateLimiter:    limiter,
	})
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{
			"port":   cfg.AppPort,
			"prefix": cfg.APIPrefix,
			"tz":     cfg.DailyResetTZ,
		}).Info("Server running") // Log server start
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")

	// Stop background jobs
	replayer.Stop()
	cancel()

	// Drain in-flight requests (at most 10 seconds)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("server shutdown: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		logrus.Errorf("redis close: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		logrus.Errorf("db close: %v", err)
	}
	logrus.Info("Server stopped")
}

// setupLogging picks the formatter and, when LOG_FILE is set, adds a rotated file
func setupLogging(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.LogFile == "" {
		return
	}
	logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    50, // Megabytes per file
		MaxBackups: 7,
		MaxAge:     28, // Days
		Compress:   true,
	}))
}
