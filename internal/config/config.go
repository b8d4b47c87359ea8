package config

import (
	"fmt"     // Error formatting
	"net"     // Validating proxy addresses
	"os"      // For environment variables
	"strconv" // For string to int conversion
	"strings" // Splitting list values
	"time"    // Durations and time zones

	"github.com/joho/godotenv" // For loading .env files
)

// Config holds the application configuration
type Config struct {
	AppPort    string // Application port
	APIPrefix  string // Path prefix for the ledger routes
	DBUser     string // Database user
	DBPassword string // Database password
	DBHost     string // Database host
	DBPort     string // Database port
	DBName     string // Database name
	JWTSecret  string // JWT secret key
	RedisAddr  string // Redis server address
	RedisPass  string // Redis password
	RedisDB    int    // Redis database number
	IsProd     bool   // Is production environment
	LogFile    string // Optional rotated log file

	AllowedIPs     []string // Origins allowed to reach balance endpoints
	TrustedProxies []string // Peers whose forwarding headers are believed
	CORSOrigins    []string // Origins allowed by CORS

	DBMaxOpenConns int // Connection pool size
	DBMaxIdleConns int // Idle connections kept in the pool

	DailyRewardAmount   int64  // Coins granted per daily claim
	DailyResetHour      int    // Local hour of the daily reset
	DailyResetMinute    int    // Local minute of the daily reset
	DailyResetTZ        string // IANA time zone of the daily reset
	DefaultDenomination int64  // Banknote value used when withdraw omits one

	RateLimitRPS        int           // Requests per second per client
	RateLimitBurst      int           // Burst size per client
	AuditReplayInterval time.Duration // How often failed audit records are retried
}

// required lists the variables the server refuses to start without
var required = []string{
	"APP_PORT", "DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME",
	"JWT_SECRET", "ALLOWED_IPS", "REDIS_ADDR",
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	_ = godotenv.Load() // Load .env file if present
	return &Config{
		AppPort:    os.Getenv("APP_PORT"),               // Application port
		APIPrefix:  getString("API_PREFIX", "/api"),     // Route prefix
		DBUser:     os.Getenv("DB_USER"),                // Database user
		DBPassword: os.Getenv("DB_PASSWORD"),            // Database password
		DBHost:     os.Getenv("DB_HOST"),                // Database host
		DBPort:     os.Getenv("DB_PORT"),                // Database port
		DBName:     os.Getenv("DB_NAME"),                // Database name
		JWTSecret:  os.Getenv("JWT_SECRET"),             // JWT secret key
		RedisAddr:  os.Getenv("REDIS_ADDR"),             // Redis server address
		RedisPass:  os.Getenv("REDIS_PASS"),             // Redis password
		RedisDB:    getInt("REDIS_DB", 0),               // Redis database number
		IsProd:     os.Getenv("IS_PROD") == "true",      // Is production environment
		LogFile:    os.Getenv("LOG_FILE"),               // Rotated log file, empty for stdout only
		AllowedIPs: splitList(os.Getenv("ALLOWED_IPS")), // Allow-listed origins

		TrustedProxies: splitList(getString("TRUSTED_PROXIES", "127.0.0.1")),
		CORSOrigins:    splitList(getString("CORS_ORIGINS", "*")),

		DBMaxOpenConns: getInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getInt("DB_MAX_IDLE_CONNS", 10),

		DailyRewardAmount:   int64(getInt("DAILY_REWARD_AMOUNT", 100)),
		DailyResetHour:      getInt("DAILY_RESET_HOUR", 4),
		DailyResetMinute:    getInt("DAILY_RESET_MINUTE", 0),
		DailyResetTZ:        getString("DAILY_RESET_TZ", "Europe/Prague"),
		DefaultDenomination: int64(getInt("DEFAULT_DENOMINATION", 100)),

		RateLimitRPS:        getInt("RATE_LIMIT_RPS", 20),
		RateLimitBurst:      getInt("RATE_LIMIT_BURST", 40),
		AuditReplayInterval: getDuration("AUDIT_REPLAY_INTERVAL", 5*time.Second),
	}
}

// Validate reports every missing required variable and every out-of-range value
func (c *Config) Validate() error {
	var missing []string
	for _, key := range required {
		if strings.TrimSpace(os.Getenv(key)) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if len(c.AllowedIPs) == 0 {
		return fmt.Errorf("ALLOWED_IPS must contain at least one address")
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin or *")
	}
	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("TRUSTED_PROXIES: %q is neither an IP nor a CIDR range", proxy)
			}
		}
	}
	if c.DailyResetHour < 0 || c.DailyResetHour > 23 || c.DailyResetMinute < 0 || c.DailyResetMinute > 59 {
		return fmt.Errorf("daily reset time %02d:%02d is not a valid clock time", c.DailyResetHour, c.DailyResetMinute)
	}
	if _, err := time.LoadLocation(c.DailyResetTZ); err != nil {
		return fmt.Errorf("DAILY_RESET_TZ: %w", err)
	}
	if c.DailyRewardAmount <= 0 || c.DefaultDenomination <= 0 {
		return fmt.Errorf("DAILY_REWARD_AMOUNT and DEFAULT_DENOMINATION must be positive")
	}
	return nil
}

// DSN builds the MySQL data source name
func (c *Config) DSN() string {
	return c.DBUser + ":" + c.DBPassword + "@tcp(" + c.DBHost + ":" + c.DBPort + ")/" + c.DBName +
		"?parseTime=true&loc=UTC&charset=utf8mb4&timeout=5s&readTimeout=10s&writeTimeout=10s"
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
