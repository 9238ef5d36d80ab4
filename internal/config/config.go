package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the process-wide settings. It is read once at startup.
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	MongoURI       string
	MongoDatabase  string
	JWTSecret      string
	JWTExpire      time.Duration
	AllowedOrigins []string
	TrustedProxies []string
	MaxUploadBytes int64
	Timezone       string

	Twilio    TwilioConfig
	Gemini    GeminiConfig
	Storage   StorageConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	RabbitURL string
	Reminders ReminderConfig
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

// Configured reports whether every Twilio credential is present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != ""
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type StorageConfig struct {
	Bucket        string
	Region        string
	PublicBaseURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

type ReminderConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           envStr("PORT", "5000"),
		Env:            envStr("APP_ENV", "production"),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		MongoURI:       envStr("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:  envStr("MONGO_DATABASE", "diagnosia"),
		AllowedOrigins: splitList(envStr("ALLOWED_ORIGINS", "http://localhost:3000")),
		TrustedProxies: splitList(os.Getenv("TRUSTED_PROXIES")),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 10<<20)),
		Timezone:       os.Getenv("APP_TIMEZONE"),
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  envStr("GEMINI_MODEL", "gemini-1.5-flash"),
		},
		Storage: StorageConfig{
			Bucket:        os.Getenv("S3_BUCKET"),
			Region:        envStr("AWS_REGION", "us-east-1"),
			PublicBaseURL: strings.TrimRight(os.Getenv("S3_PUBLIC_BASE_URL"), "/"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       envInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:        envBool("RATE_LIMIT_ENABLED", true),
			Capacity:       envInt("RATE_LIMIT_CAPACITY", 5),
			RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
			RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Minute),
			TTL:            envDur("RATE_LIMIT_TTL", 30*time.Minute),
			Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		},
		RabbitURL: os.Getenv("RABBITMQ_URL"),
		Reminders: ReminderConfig{
			Enabled:  envBool("REMINDERS_ENABLED", true),
			Interval: envDur("REMINDER_INTERVAL", 15*time.Minute),
		},
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	expire := envInt("JWT_EXPIRE", 86400)
	if expire <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRE must be a positive number of seconds, got %d", expire)
	}
	cfg.JWTExpire = time.Duration(expire) * time.Second

	if cfg.RateLimit.Capacity < 1 {
		cfg.RateLimit.Capacity = 1
	}
	if cfg.RateLimit.RefillTokens < 1 {
		cfg.RateLimit.RefillTokens = 1
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Minute
	}
	if minTTL := 5 * cfg.RateLimit.RefillInterval; cfg.RateLimit.TTL < minTTL {
		cfg.RateLimit.TTL = minTTL
	}
	if cfg.Reminders.Interval <= 0 {
		cfg.Reminders.Interval = 15 * time.Minute
	}

	return cfg, nil
}

// DevMode enables verbose error details and dev-only response fields.
func (c *Config) DevMode() bool {
	return strings.EqualFold(c.Env, "development")
}

// Location resolves Timezone, falling back to the server's local zone.
func (c *Config) Location() *time.Location {
	tz := strings.TrimSpace(c.Timezone)
	if tz == "" {
		return time.Local
	}
	if loc, err := time.LoadLocation(tz); err == nil {
		return loc
	}
	return time.Local
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
