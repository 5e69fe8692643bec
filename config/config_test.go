package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load(zap.NewNop().Sugar())

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "report", cfg.ReportCommand)
	assert.Equal(t, "https://api.line.me", cfg.LineAPIBase)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "prod", cfg.LogMode)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REPORT_COMMAND", "my results")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load(zap.NewNop().Sugar())

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "my results", cfg.ReportCommand)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
