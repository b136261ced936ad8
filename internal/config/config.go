package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// MinSecretLength is the shortest accepted signing or sealing secret.
const MinSecretLength = 32

// Config contains runtime configuration values.
type Config struct {
	Environment string
	HTTPPort    string
	DatabaseURL string
	ServiceName string

	PublicBaseURL string
	MediaBaseURL  string

	ContactCardSecret string
	ShareBackSecret   string
	AccessSecret      string
	RefreshSecret     string
	UpgradeSecret     string
	// UpgradePreviousSecrets still validate upgrade tokens after a rotation.
	UpgradePreviousSecrets []string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	UpgradeTokenTTL time.Duration
	QRProfileTTL    time.Duration
	EmailSigTTL     time.Duration
	ShareBackTTL    time.Duration

	SingleUseCapabilities bool
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	DiagnosticBuffer int
	SnowflakeNode    int64

	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:            getEnv("APP_ENV", "production"),
		HTTPPort:               getEnv("HTTP_PORT", "8080"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ServiceName:            getEnv("SERVICE_NAME", "cardlink"),
		PublicBaseURL:          getEnv("PUBLIC_BASE_URL", "https://cardlink.app"),
		MediaBaseURL:           getEnv("MEDIA_BASE_URL", "https://media.cardlink.app"),
		ContactCardSecret:      os.Getenv("CONTACT_CARD_SIGNATURE_SECRET"),
		ShareBackSecret:        os.Getenv("SHARE_BACK_SIGNATURE_SECRET"),
		AccessSecret:           os.Getenv("SESSION_ACCESS_SECRET"),
		RefreshSecret:          os.Getenv("SESSION_REFRESH_SECRET"),
		UpgradeSecret:          os.Getenv("UPGRADE_TOKEN_SECRET"),
		UpgradePreviousSecrets: getList("UPGRADE_TOKEN_PREVIOUS_SECRETS", nil),
		AccessTokenTTL:         getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:        getDuration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		UpgradeTokenTTL:        getDuration("UPGRADE_TOKEN_TTL", 20*time.Minute),
		QRProfileTTL:           getDuration("QR_PROFILE_CAPABILITY_TTL", 30*24*time.Hour),
		EmailSigTTL:            getDuration("EMAIL_SIGNATURE_CAPABILITY_TTL", 30*24*time.Hour),
		ShareBackTTL:           getDuration("SHARE_BACK_CAPABILITY_TTL", 7*24*time.Hour),
		SingleUseCapabilities:  getBool("CAPABILITY_SINGLE_USE", false),
		RedisAddr:              getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                getInt("REDIS_DB", 0),
		DiagnosticBuffer:       getInt("DIAGNOSTIC_BUFFER", 256),
		SnowflakeNode:          int64(getInt("SNOWFLAKE_NODE", 1)),
		RateLimitRPM:           getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:      getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:     getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:     getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders:     getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials:   getBool("CORS_ALLOW_CREDENTIALS", false),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if err := cfg.validateSecrets(); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenTTL <= cfg.AccessTokenTTL {
		return Config{}, fmt.Errorf("REFRESH_TOKEN_TTL must exceed ACCESS_TOKEN_TTL")
	}

	return cfg, nil
}

// Secrets lists the configured secrets by environment variable name.
func (c Config) Secrets() map[string]string {
	return map[string]string{
		"CONTACT_CARD_SIGNATURE_SECRET": c.ContactCardSecret,
		"SHARE_BACK_SIGNATURE_SECRET":   c.ShareBackSecret,
		"SESSION_ACCESS_SECRET":         c.AccessSecret,
		"SESSION_REFRESH_SECRET":        c.RefreshSecret,
		"UPGRADE_TOKEN_SECRET":          c.UpgradeSecret,
	}
}

func (c Config) validateSecrets() error {
	for name, secret := range c.Secrets() {
		if secret == "" {
			return fmt.Errorf("%s is required", name)
		}
		if len(secret) < MinSecretLength {
			return fmt.Errorf("%s must be at least %d bytes", name, MinSecretLength)
		}
	}
	if c.AccessSecret == c.RefreshSecret {
		return fmt.Errorf("SESSION_ACCESS_SECRET and SESSION_REFRESH_SECRET must differ")
	}
	if c.ContactCardSecret == c.ShareBackSecret {
		return fmt.Errorf("CONTACT_CARD_SIGNATURE_SECRET and SHARE_BACK_SIGNATURE_SECRET must differ")
	}
	return nil
}

// IsDevelopment reports whether the service runs with development logging.
func (c Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
