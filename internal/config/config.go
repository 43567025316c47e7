// Package config handles application configuration via environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configurable values for the app.
type Config struct {
	Env  string
	Addr string

	// Local durable storage for the state document.
	StorageEngine string
	StateFile     string

	// Generative-AI collaborator.
	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	// Payment provider.
	PaymentBaseURL   string
	PaymentAPIKey    string
	PaymentSecretKey string
	PaymentReturnURL string

	// Telegram bot.
	TelegramBotToken     string
	TelegramSupportChat  int64
	TelegramMotivationOn bool

	// Server-side subscription records; empty DSN selects the in-memory store.
	DatabaseDSN string

	// Avatar uploads; empty bucket disables S3.
	S3Bucket      string
	S3Region      string
	CloudFrontURL string

	UsageResetInterval time.Duration
	MotivationInterval time.Duration

	// Retention caps; zero keeps history unbounded.
	CoachHistoryLimit int
	DiaryEntriesLimit int
}

// Load reads environment variables and populates a Config struct. A .env file
// in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Env:  getEnv("ENV", "development"),
		Addr: getEnv("ADDR", ":8080"),

		StorageEngine: getEnv("STORAGE_ENGINE", "sqlite"),
		StateFile:     getEnv("STATE_FILE", "data/fitai.db"),

		AIBaseURL: getEnv("AI_BASE_URL", "https://api.artemox.com"),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "gemini-2.5-flash"),

		PaymentBaseURL:   getEnv("PAYMENT_BASE_URL", "https://api.tributepay.com"),
		PaymentAPIKey:    getEnv("PAYMENT_API_KEY", ""),
		PaymentSecretKey: getEnv("PAYMENT_SECRET_KEY", ""),
		PaymentReturnURL: getEnv("PAYMENT_RETURN_URL", ""),

		TelegramBotToken:     getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramSupportChat:  getEnvInt64("TELEGRAM_SUPPORT_CHAT_ID", 0),
		TelegramMotivationOn: getEnvBool("TELEGRAM_MOTIVATION_ENABLED", true),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		S3Bucket:      getEnv("S3_BUCKET", ""),
		S3Region:      getEnv("S3_REGION", ""),
		CloudFrontURL: getEnv("CLOUDFRONT_URL", ""),

		UsageResetInterval: getEnvDuration("USAGE_RESET_INTERVAL", "1h"),
		MotivationInterval: getEnvDuration("MOTIVATION_INTERVAL", "6h"),

		CoachHistoryLimit: getEnvInt("COACH_HISTORY_LIMIT", "0"),
		DiaryEntriesLimit: getEnvInt("DIARY_ENTRIES_LIMIT", "0"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key, fallback string) int {
	n, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return n
}

func getEnvInt64(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return b
}

func getEnvDuration(key, fallback string) time.Duration {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		log.Panicf("Invalid %s: %v", key, err)
	}
	return d
}
