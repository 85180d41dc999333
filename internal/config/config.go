package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/pricing"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort           string
	MongoURI           string
	MongoDBName        string
	RedisAddr          string
	RedisPassword      string
	KafkaBrokers       []string
	OrdersTopic        string
	CatalogDBPath      string
	MigrationsPath     string
	JWTSecret          string
	SessionIdleTTL     time.Duration
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	RateLimitRPS       float64
	RateLimitBurst     int
	SubmitDelay        time.Duration
	MaxRequestBodySize int64
	LogLevel           string
	Env                string
	Pricing            pricing.Config
}

// Load reads the environment, after merging in a .env file when one exists.
// Values that fail to parse fall back to their defaults.
func Load() *Config {
	_ = godotenv.Load()

	defaults := pricing.DefaultConfig()
	return &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:        getEnv("MONGO_DB_NAME", "storefront"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS", "localhost:9092"),
		OrdersTopic:        getEnv("ORDERS_TOPIC", "storefront-orders"),
		CatalogDBPath:      getEnv("CATALOG_DB_PATH", "./catalog.db"),
		MigrationsPath:     getEnv("MIGRATIONS_PATH", "./internal/catalog/migrations"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		SessionIdleTTL:     getEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 40),
		SubmitDelay:        getEnvDuration("SUBMIT_DELAY", 0),
		MaxRequestBodySize: 1 << 20, // 1MB
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Env:                getEnv("APP_ENV", "production"),
		Pricing: pricing.Config{
			CouponRate:           getEnvFloat("COUPON_RATE", defaults.CouponRate),
			CouponCap:            getEnvFloat("COUPON_CAP", defaults.CouponCap),
			GiftCardAmount:       getEnvFloat("GIFT_CARD_AMOUNT", defaults.GiftCardAmount),
			GiftCardNumberMinLen: defaults.GiftCardNumberMinLen,
			GiftCardPINMinLen:    defaults.GiftCardPINMinLen,
			MembershipDiscount:   getEnvFloat("MEMBERSHIP_DISCOUNT", defaults.MembershipDiscount),
			SalesTaxRate:         getEnvFloat("SALES_TAX_RATE", defaults.SalesTaxRate),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key, defaultValue string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, defaultValue), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v < 0 {
		return defaultValue
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}
