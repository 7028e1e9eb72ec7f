package initializers

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port           string
	DBDSN          string
	AllowedOrigins []string
	JWTSecret      string
	TaxRate        decimal.Decimal

	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortCode      string
	MpesaPasskey        string
	MpesaEnvironment    string
	MpesaCallbackURL    string
	MpesaTimeout        time.Duration

	StatusCacheTTL    time.Duration
	PollWindow        time.Duration
	PollRatePerSecond float64
	ReaperSchedule    string
	OrphanOrderAge    time.Duration

	AMQPURL       string
	AMQPExchange  string
	ArchiveBucket string
	SeedLocations bool

	LogLevel  string
	LogPretty bool
}

var AppConfig Config

// LoadEnv reads .env when present. Real environment variables take precedence.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using process environment")
	}
	AppConfig = LoadConfig()
}

func LoadConfig() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		DBDSN:          os.Getenv("DB_DSN"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:4200")),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TaxRate:        getDecimal("TAX_RATE", decimal.Zero),

		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortCode:      os.Getenv("MPESA_BUSINESS_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaEnvironment:    getEnv("MPESA_ENVIRONMENT", "sandbox"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		MpesaTimeout:        getDuration("MPESA_TIMEOUT", 30*time.Second),

		StatusCacheTTL:    getDuration("STATUS_CACHE_TTL", 5*time.Minute),
		PollWindow:        getDuration("POLL_WINDOW", 5*time.Minute),
		PollRatePerSecond: getFloat("POLL_RATE_PER_SECOND", 1),
		ReaperSchedule:    getEnv("REAPER_SCHEDULE", "@every 5m"),
		OrphanOrderAge:    getDuration("ORPHAN_ORDER_AGE", 15*time.Minute),

		AMQPURL:       os.Getenv("AMQP_URL"),
		AMQPExchange:  getEnv("AMQP_EXCHANGE", "galio.orders"),
		ArchiveBucket: os.Getenv("ARCHIVE_BUCKET"),
		SeedLocations: getBool("SEED_LOCATIONS", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getBool("LOG_PRETTY", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid duration, using default")
		return fallback
	}
	return d
}

func getFloat(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid number, using default")
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return b
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid decimal, using default")
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
