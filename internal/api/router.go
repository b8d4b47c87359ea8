package api

import (
	"time" // CORS preflight cache

	"currency_ledger/internal/ledger"     // Mutation engine
	"currency_ledger/internal/metrics"    // Prometheus collectors
	"currency_ledger/internal/middleware" // Custom middleware

	"github.com/gin-contrib/cors"  // CORS middleware
	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// RouterConfig carries everything the HTTP layer needs
type RouterConfig struct {
	Engine         *ledger.Engine
	DB             *gorm.DB                // Used by the health check only, may be nil
	Redis          redis.Cmdable           // Leaderboard cache and health check, may be nil
	JWTSecret      string
	AllowedIPs     []string
	TrustedProxies []string                // Peers allowed to set X-Forwarded-For and X-Real-IP
	APIPrefix      string
	CORSOrigins    []string                // Empty means any origin
	RateLimiter    *middleware.RateLimiter // Optional per-client limiter
}

// NewRouter builds the gin engine with every route mounted
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	r := gin.New() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}
	proxies, err := middleware.NewProxyTrust(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	r.Use(
		gin.Recovery(),
		middleware.ClientIPMiddleware(proxies), // Resolve caller address before any gate
		middleware.RequestLogger(),
		metrics.Middleware(),
		corsMiddleware(cfg.CORSOrigins),
	)

	ipGate := middleware.IPAllowlistMiddleware(cfg.AllowedIPs)
	r.GET("/healthz", HealthHandler(cfg.DB, cfg.Redis))     // Liveness and dependency check
	r.GET("/metrics", ipGate, gin.WrapH(metrics.Handler())) // Prometheus scrape endpoint

	prefix := cfg.APIPrefix
	if prefix == "" {
		prefix = "/api"
	}
	apiGroup := r.Group(prefix)
	if cfg.RateLimiter != nil {
		apiGroup.Use(cfg.RateLimiter.Handler())
	}

	// Public routes
	apiGroup.POST("/login", LoginHandler(cfg.Engine, cfg.JWTSecret)) // Login endpoint
	apiGroup.GET("/top", TopHandler(cfg.Engine, cfg.Redis))          // Leaderboard endpoint

	// Player routes (protected by JWT and the IP allow-list)
	player := apiGroup.Group("")
	player.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), ipGate)
	player.GET("/balance", BalanceHandler(cfg.Engine))               // Balance endpoint
	player.POST("/pay", PayHandler(cfg.Engine, cfg.Redis))           // Payment endpoint
	player.POST("/deposit", DepositHandler(cfg.Engine, cfg.Redis))   // Deposit endpoint
	player.POST("/withdraw", WithdrawHandler(cfg.Engine, cfg.Redis)) // Withdraw endpoint
	player.POST("/daily", DailyHandler(cfg.Engine, cfg.Redis))       // Daily reward endpoint
	player.POST("/mob-limit", MarkMobLimitHandler(cfg.Engine))       // Mark mob limit endpoint
	player.GET("/mob-limit", MobLimitStatusHandler(cfg.Engine))      // Check mob limit endpoint

	return r, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	conf := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	conf.AllowAllOrigins = len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			conf.AllowAllOrigins = true
		}
	}
	if !conf.AllowAllOrigins {
		conf.AllowOrigins = origins
	}
	return cors.New(conf)
}
