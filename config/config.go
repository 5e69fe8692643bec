// Package config loads runtime settings from the environment, with .env
// support for local development.
package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	Port               string
	RedisAddr          string
	RedisPassword      string
	ChannelAccessToken string
	ChannelSecret      string
	AdminTokenHash     string
	ReportCommand      string
	LineAPIBase        string
	AllowedOrigins     []string
	LogMode            string
}

// Load reads the environment into a Config. A missing .env file is fine;
// production sets real environment variables.
func Load(log *zap.SugaredLogger) *Config {
	if err := godotenv.Load(); err != nil {
		log.Debugw("no .env file loaded", "error", err)
	}

	return &Config{
		Port:               getEnv("PORT", "8080"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		ChannelAccessToken: os.Getenv("CHANNEL_ACCESS_TOKEN"),
		ChannelSecret:      os.Getenv("CHANNEL_SECRET"),
		AdminTokenHash:     os.Getenv("ADMIN_TOKEN_HASH"),
		ReportCommand:      getEnv("REPORT_COMMAND", "report"),
		LineAPIBase:        getEnv("LINE_API_BASE", "https://api.line.me"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "*")),
		LogMode:            getEnv("LOG_MODE", "prod"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
