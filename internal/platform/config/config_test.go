package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Setenv("PORT", "")
	t.Setenv("AUDIT_SINK", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "file://migrations", cfg.MigrationsPath)
	assert.Equal(t, AuditSinkLog, cfg.AuditSink)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestLoadConfig_FromEnv(t *testing.T) {
	viper.Reset()
	t.Setenv("PORT", "9090")
	t.Setenv("AUDIT_SINK", "Postgres")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("IS_PRODUCTION", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, AuditSinkPostgres, cfg.AuditSink)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.IsProduction)
}

func TestLoadConfig_MongoWithoutURLFallsBack(t *testing.T) {
	viper.Reset()
	t.Setenv("AUDIT_SINK", "mongo")
	t.Setenv("MONGO_URL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, AuditSinkLog, cfg.AuditSink)
}
