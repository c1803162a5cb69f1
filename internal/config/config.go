package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	// Signing domain. ChainID plus VerifyingContract pin a signature to
	// this deployment so it cannot be replayed against another instance.
	ChainID           int64
	VerifyingContract string
	AuthNonceTracking bool
	NonceRetention    time.Duration

	// Treasury custody account holding prepaid funds until settlement.
	CustodyAccount  string
	TransferTimeout time.Duration

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RateLimit RateLimitConfig

	Sweeper SweeperConfig
}

// RateLimitConfig controls the redis token bucket in front of the gateway.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ConsumerRate  float64
	ConsumerBurst int
}

// SweeperConfig controls the background settlement retry job.
type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	MinAge   time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "metergate"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		ChainID:           getenvInt64("CHAIN_ID", 1),
		VerifyingContract: strings.TrimSpace(getenv("VERIFYING_CONTRACT", "0x0000000000000000000000000000000000000001")),
		AuthNonceTracking: getenvBool("AUTH_NONCE_TRACKING", false),
		NonceRetention:    getenvDuration("AUTH_NONCE_RETENTION", 24*time.Hour),

		CustodyAccount:  strings.TrimSpace(getenv("CUSTODY_ACCOUNT", "0x00000000000000000000000000000000000000fe")),
		TransferTimeout: getenvDuration("TREASURY_TRANSFER_TIMEOUT", 5*time.Second),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "postgres"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     int(getenvInt64("DATABASE_MAX_IDLE_CONN", 5)),
		DBMaxOpenConn:     int(getenvInt64("DATABASE_MAX_OPEN_CONN", 25)),
		DBConnMaxLifetime: int(getenvInt64("DATABASE_CONN_MAX_LIFETIME", 300)),
		DBConnMaxIdleTime: int(getenvInt64("DATABASE_CONN_MAX_IDLE_TIME", 60)),

		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       int(getenvInt64("RATE_LIMIT_REDIS_DB", 0)),
			ConsumerRate:  getenvFloat("RATE_LIMIT_CONSUMER_RATE", 10),
			ConsumerBurst: int(getenvInt64("RATE_LIMIT_CONSUMER_BURST", 20)),
		},

		Sweeper: SweeperConfig{
			Enabled:  getenvBool("SETTLE_SWEEP_ENABLED", true),
			Interval: getenvDuration("SETTLE_SWEEP_INTERVAL", time.Minute),
			MinAge:   getenvDuration("SETTLE_SWEEP_MIN_AGE", 5*time.Minute),
		},
	}

	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
