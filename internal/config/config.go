package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the configuration for the application. Most settings are
// optional: the pipeline is designed to degrade to offline behaviour when an
// upstream capability (social source, Gemini, live geocoding) is not
// configured.
type Config struct {
	// HTTP API
	HTTPPort     string
	APIJWTSecret string
	RateLimitRPS float64

	// Storage
	DBPath     string
	OutputsDir string

	// Social content source. When SocialAPIURL is empty the persona catalog
	// is used directly.
	SocialAPIURL string
	SocialAPIKey string

	// Verification backend
	GeminiAPIKey      string
	GeminiModel       string
	VerifyConcurrency int
	VerifyTimeout     time.Duration

	// Telegram Config (optional for the API server, required for the bot)
	TelegramBotToken    string
	TelegramAllowUserID int64
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	cfg := &Config{
		HTTPPort:          envOr("HTTP_PORT", "8080"),
		APIJWTSecret:      os.Getenv("API_JWT_SECRET"),
		RateLimitRPS:      10,
		DBPath:            envOr("DB_PATH", "data/trip-planner.db"),
		OutputsDir:        envOr("OUTPUTS_DIR", "outputs"),
		SocialAPIURL:      os.Getenv("SOCIAL_API_URL"),
		SocialAPIKey:      os.Getenv("SOCIAL_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       envOr("GEMINI_MODEL", "gemini-1.5-flash"),
		VerifyConcurrency: 4,
		VerifyTimeout:     20 * time.Second,
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps <= 0 {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RPS %q", v)
		}
		cfg.RateLimitRPS = rps
	}

	if v := os.Getenv("VERIFY_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid VERIFY_CONCURRENCY %q", v)
		}
		cfg.VerifyConcurrency = n
	}

	if v := os.Getenv("VERIFY_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid VERIFY_TIMEOUT_SECONDS %q", v)
		}
		cfg.VerifyTimeout = time.Duration(n) * time.Second
	}

	if v := os.Getenv("TELEGRAM_ALLOW_USER_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ALLOW_USER_ID %q", v)
		}
		cfg.TelegramAllowUserID = id
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
