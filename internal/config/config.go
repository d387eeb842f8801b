// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all console server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Sandbox
	SandboxRoot string

	// Backups
	BackupDir       string
	BackupBackend   string // "local" or "s3"
	BackupRetention time.Duration

	// Optional backup index database
	DatabaseURL string

	// S3 backup backend
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool

	// Build & deploy
	BuildCmd      string
	DeployCmd     string
	BuildTimeout  time.Duration
	DeployTimeout time.Duration
	BuildWorkDir  string

	// Auth
	JWTSecret     string
	AdminUsername string
	AdminPassword string
	TokenTTL      time.Duration

	// AI assist
	GeminiAPIKey string
	AIModel      string
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:      envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:     envOr("METRICS_ADDR", ":9090"),
		LogLevel:        envOr("LOG_LEVEL", "info"),
		LogFormat:       envOr("LOG_FORMAT", "json"),
		SandboxRoot:     envOr("SANDBOX_ROOT", "client/src"),
		BackupDir:       envOr("BACKUP_DIR", ".code-backups"),
		BackupBackend:   envOr("BACKUP_BACKEND", "local"),
		BackupRetention: envDuration("BACKUP_RETENTION", 0), // 0 = keep forever
		DatabaseURL:     envOr("DATABASE_URL", ""),
		S3Endpoint:      envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:        envOr("S3_BUCKET", "codeconsole-backups"),
		S3AccessKey:     envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:     envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:        envOr("S3_REGION", "us-east-1"),
		S3UseSSL:        envBool("S3_USE_SSL", false),
		BuildCmd:        envOr("BUILD_CMD", "pnpm build"),
		DeployCmd:       envOr("DEPLOY_CMD", "pm2 restart app"),
		BuildTimeout:    envDuration("BUILD_TIMEOUT", 2*time.Minute),
		DeployTimeout:   envDuration("DEPLOY_TIMEOUT", 30*time.Second),
		BuildWorkDir:    envOr("BUILD_WORKDIR", "."),
		JWTSecret:       envOr("JWT_SECRET", ""),
		AdminUsername:   envOr("ADMIN_USERNAME", "admin"),
		AdminPassword:   envOr("ADMIN_PASSWORD", ""),
		TokenTTL:        envDuration("TOKEN_TTL", 12*time.Hour),
		GeminiAPIKey:    envOr("GEMINI_API_KEY", ""),
		AIModel:         envOr("AI_MODEL", "gemini-2.0-flash"),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD is required")
	}
	if cfg.BackupBackend != "local" && cfg.BackupBackend != "s3" {
		return nil, fmt.Errorf("BACKUP_BACKEND must be local or s3, got %q", cfg.BackupBackend)
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
