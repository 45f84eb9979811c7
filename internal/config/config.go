// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/skylight-chores/internal/logger"
)

const defaultSkylightBaseURL = "https://app.ourskylight.com"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Skylight
	SkylightBaseURL  string
	SkylightEmail    string
	SkylightPassword string
	Timezone         string
	Location         *time.Location

	// Database（未設定の場合はメモリ上のリポジトリを使用）
	DatabaseURL string

	// Poll
	PollInterval      time.Duration
	PollMaxConcurrent int
	HTTPTimeout       time.Duration

	// Server
	ServerPort string

	// Logging
	LogLevel slog.Level
}

// Load は環境変数からConfigを読み込む。
// DATABASE_URLと認証情報（SKYLIGHT_EMAIL, SKYLIGHT_PASSWORD）のどちらも未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{
		SkylightBaseURL:  getEnvString("SKYLIGHT_BASE_URL", defaultSkylightBaseURL),
		SkylightEmail:    os.Getenv("SKYLIGHT_EMAIL"),
		SkylightPassword: os.Getenv("SKYLIGHT_PASSWORD"),
		Timezone:         os.Getenv("SKYLIGHT_TIMEZONE"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
	}

	if cfg.DatabaseURL == "" {
		var missing []string
		if cfg.SkylightEmail == "" {
			missing = append(missing, "SKYLIGHT_EMAIL")
		}
		if cfg.SkylightPassword == "" {
			missing = append(missing, "SKYLIGHT_PASSWORD")
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("required environment variables are not set: %v (or set DATABASE_URL)", missing)
		}
	}

	cfg.Location = time.Local
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid SKYLIGHT_TIMEZONE %q: %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	// Optional fields with defaults
	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 5*time.Minute)
	cfg.PollMaxConcurrent = getEnvInt("POLL_MAX_CONCURRENT", 4)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", 10*time.Second)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.LogLevel = logger.ParseLevel(os.Getenv("LOG_LEVEL"))

	return cfg, nil
}

// HasCredentials は環境変数で認証情報が指定されているかを返す。
func (c *Config) HasCredentials() bool {
	return c.SkylightEmail != "" && c.SkylightPassword != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
