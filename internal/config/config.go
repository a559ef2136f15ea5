package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Crypto   CryptoConfig
	JWT      JWTConfig
	SMTP     SMTPConfig
	CORS     CORSConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CryptoConfig carries the key material for field encryption and the
// lookup-hash peppers. Keys are hex-encoded in the environment.
type CryptoConfig struct {
	EncryptionKey   []byte // 32 bytes, AES-256-GCM
	LookupPepper    []byte // email lookup hashes
	PhonePepper     []byte // phone lookup hashes
	IntegritySecret []byte
}

type JWTConfig struct {
	SigningKey   []byte
	Issuer       string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	CookieDomain string
	CookieSecure bool
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Enabled  bool
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type LogConfig struct {
	Level  string
	Format string
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads configuration from the environment, with .env as a fallback
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "identity"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "identity"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SigningKey:   []byte(getEnv("JWT_SIGNING_KEY", "")),
			Issuer:       getEnv("JWT_ISSUER", "identity-service"),
			AccessTTL:    getEnvDuration("JWT_ACCESS_TTL", time.Hour),
			RefreshTTL:   getEnvDuration("JWT_REFRESH_TTL", 30*24*time.Hour),
			CookieDomain: getEnv("JWT_COOKIE_DOMAIN", ""),
			CookieSecure: getEnvBool("JWT_COOKIE_SECURE", true),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", ""),
			Port:     getEnvInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@medchain.example"),
			Enabled:  getEnvBool("SMTP_ENABLED", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"https://localhost:3000"}),
			AllowedMethods: getEnvSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders: getEnvSlice("CORS_ALLOWED_HEADERS", []string{"Accept", "Content-Type", "X-CSRF-Token", "X-Device-Fingerprint"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
	}

	var err error
	if cfg.Crypto.EncryptionKey, err = getEnvHex("FIELD_ENCRYPTION_KEY"); err != nil {
		return nil, err
	}
	if cfg.Crypto.LookupPepper, err = getEnvHex("LOOKUP_HASH_PEPPER"); err != nil {
		return nil, err
	}
	if cfg.Crypto.PhonePepper, err = getEnvHex("PHONE_HASH_PEPPER"); err != nil {
		return nil, err
	}
	if cfg.Crypto.IntegritySecret, err = getEnvHex("DATA_INTEGRITY_SECRET"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required settings are present and well formed
func (c *Config) Validate() error {
	if len(c.Crypto.EncryptionKey) != 32 {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d", len(c.Crypto.EncryptionKey))
	}
	if len(c.Crypto.LookupPepper) == 0 {
		return fmt.Errorf("LOOKUP_HASH_PEPPER is required")
	}
	if len(c.Crypto.PhonePepper) == 0 {
		return fmt.Errorf("PHONE_HASH_PEPPER is required")
	}
	if len(c.Crypto.IntegritySecret) == 0 {
		return fmt.Errorf("DATA_INTEGRITY_SECRET is required")
	}
	if len(c.JWT.SigningKey) < 32 {
		return fmt.Errorf("JWT_SIGNING_KEY must be at least 32 bytes")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.SMTP.Enabled && c.SMTP.Host == "" {
		return fmt.Errorf("SMTP_HOST is required when SMTP_ENABLED=true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}

func getEnvHex(key string) ([]byte, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, fmt.Errorf("%s is required", key)
	}
	b, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be hex encoded: %w", key, err)
	}
	return b, nil
}
