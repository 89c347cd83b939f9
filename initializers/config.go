package initializers

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/basit/rushupload-backend/mailer"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port          string
	DatabaseURL   string
	Environment   string
	LogLevel      string
	JWTSecret     string
	SessionSecret string
	ClientBaseURL string
	CORSOrigins   []string

	AWSRegion          string
	AWSBucket          string
	AWSEndpoint        string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSForcePathStyle  bool
	S3PublicBaseURL    string
	StoreTimeout       time.Duration
	PartURLTTL         time.Duration
	DownloadURLTTL     time.Duration

	SMTP    mailer.SMTPConfig
	AppName string

	RedisURL     string
	LinkCacheTTL time.Duration

	ExpirySweepInterval time.Duration
	PurgeExpiredObjects bool
	SettingsFile        string

	RateLimitRPS   float64
	RateLimitBurst int

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// LoadConfig reads .env (outside Render, where the platform injects the
// environment) and then the process environment.
func LoadConfig() (*Config, error) {
	if os.Getenv("RENDER") == "" {
		if err := godotenv.Load(); err != nil {
			log.Debug().Msg("no .env file found, using system environment")
		}
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   os.Getenv("DB_URL"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		ClientBaseURL: getEnv("CLIENT_BASE_URL", "http://localhost:3000"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSBucket:          os.Getenv("AWS_BUCKET_NAME"),
		AWSEndpoint:        os.Getenv("AWS_ENDPOINT"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		S3PublicBaseURL:    os.Getenv("S3_PUBLIC_BASE_URL"),

		SMTP: mailer.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			FromAddr: os.Getenv("SMTP_FROM"),
		},
		AppName: getEnv("APP_NAME", "RushUpload"),

		RedisURL:     os.Getenv("REDIS_URL"),
		SettingsFile: os.Getenv("SETTINGS_FILE"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
	}
	cfg.SMTP.FromName = cfg.AppName
	if cfg.SMTP.FromAddr == "" {
		cfg.SMTP.FromAddr = cfg.SMTP.Username
	}

	var err error
	if cfg.AWSForcePathStyle, err = getBool("AWS_FORCE_PATH_STYLE", false); err != nil {
		return nil, err
	}
	if cfg.PurgeExpiredObjects, err = getBool("PURGE_EXPIRED_OBJECTS", false); err != nil {
		return nil, err
	}
	if cfg.StoreTimeout, err = getDuration("STORE_TIMEOUT_SECONDS", 30, time.Second); err != nil {
		return nil, err
	}
	if cfg.PartURLTTL, err = getDuration("PART_URL_TTL_MINUTES", 15, time.Minute); err != nil {
		return nil, err
	}
	if cfg.DownloadURLTTL, err = getDuration("DOWNLOAD_URL_TTL_MINUTES", 5, time.Minute); err != nil {
		return nil, err
	}
	if cfg.LinkCacheTTL, err = getDuration("LINK_CACHE_TTL_MINUTES", 5, time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExpirySweepInterval, err = getDuration("EXPIRY_SWEEP_INTERVAL_MINUTES", 60, time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 5); err != nil {
		return nil, err
	}
	burst, err := getFloat("RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// Validate checks what `serve` needs before it can start.
func (c *Config) Validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DB_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.AWSBucket == "" {
		missing = append(missing, "AWS_BUCKET_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func getDuration(key string, fallback int, unit time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(fallback) * unit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, v)
	}
	return time.Duration(n) * unit, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
