package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Email     EmailConfig
	CMS       CMSConfig
	Turnstile TurnstileConfig
	Access    AccessConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds member session token settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// EmailConfig holds SMTP settings for notification mail.
type EmailConfig struct {
	FromAddress   string
	FromName      string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	CancelBaseURL string // cancellation link prefix; raw token is appended
	SendTimeout   time.Duration
}

// CMSConfig holds the event content source settings.
type CMSConfig struct {
	BaseURL string
	Token   string // optional bearer token for the CMS API
	Timeout time.Duration
}

// TurnstileConfig holds bot-verification settings. Empty secret disables
// verification (all guests pass).
type TurnstileConfig struct {
	Secret  string
	Timeout time.Duration
}

// AccessConfig holds early-access window lengths in days before release.
type AccessConfig struct {
	MemberEarlyDays int
	FlintaEarlyDays int
}

// RateLimitConfig holds per-action request limits.
type RateLimitConfig struct {
	SignupMax         int
	SignupWindowSec   int
	CancelMax         int
	CancelWindowSec   int
	CapacityMax       int
	CapacityWindowSec int
}

// DSN returns the PostgreSQL connection string. If DatabaseConfig.URL is set
// (DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", "postgres://localhost:5432/kiezrad?sslmode=disable"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "kiezrad"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Email: EmailConfig{
			FromAddress:   getEnv("EMAIL_FROM_ADDRESS", "noreply@kiezrad.example"),
			FromName:      getEnv("EMAIL_FROM_NAME", "Kiezrad"),
			SMTPHost:      getEnv("SMTP_HOST", ""),
			SMTPPort:      getEnvInt("SMTP_PORT", 587),
			SMTPUser:      getEnv("SMTP_USER", ""),
			SMTPPass:      getEnv("SMTP_PASS", ""),
			CancelBaseURL: getEnv("CANCEL_BASE_URL", "http://localhost:3000/events/cancel?token="),
			SendTimeout:   time.Duration(getEnvInt("EMAIL_SEND_TIMEOUT_SEC", 10)) * time.Second,
		},
		CMS: CMSConfig{
			BaseURL: getEnv("CMS_BASE_URL", "http://localhost:8081"),
			Token:   getEnv("CMS_TOKEN", ""),
			Timeout: time.Duration(getEnvInt("CMS_TIMEOUT_SEC", 5)) * time.Second,
		},
		Turnstile: TurnstileConfig{
			Secret:  getEnv("TURNSTILE_SECRET", ""),
			Timeout: time.Duration(getEnvInt("TURNSTILE_TIMEOUT_SEC", 5)) * time.Second,
		},
		Access: AccessConfig{
			MemberEarlyDays: getEnvInt("MEMBER_EARLY_DAYS", 2),
			FlintaEarlyDays: getEnvInt("FLINTA_EARLY_DAYS", 4),
		},
		RateLimit: RateLimitConfig{
			SignupMax:         getEnvInt("RATE_LIMIT_SIGNUP_MAX", 5),
			SignupWindowSec:   getEnvInt("RATE_LIMIT_SIGNUP_WINDOW_SEC", 60),
			CancelMax:         getEnvInt("RATE_LIMIT_CANCEL_MAX", 10),
			CancelWindowSec:   getEnvInt("RATE_LIMIT_CANCEL_WINDOW_SEC", 60),
			CapacityMax:       getEnvInt("RATE_LIMIT_CAPACITY_MAX", 30),
			CapacityWindowSec: getEnvInt("RATE_LIMIT_CAPACITY_WINDOW_SEC", 60),
		},
	}
	return cfg, nil
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

