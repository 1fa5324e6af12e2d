package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Addr())
	assert.Equal(t, 60*time.Minute, cfg.TokenTTL())
	assert.Equal(t, 5, cfg.TicketCreatePerMinute)
	assert.Equal(t, 32, cfg.WS.QueueSize)
	assert.Equal(t, 5*time.Second, cfg.WS.WriteTimeout)
	assert.Equal(t, []string{"*"}, cfg.WS.AllowedOrigins)
	assert.Equal(t, "replies.log", cfg.AuditLogPath)
	assert.Equal(t, 1025, cfg.Mail.Port)
	assert.Empty(t, cfg.Redis.URL)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("APP_PORT", "9000")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PASSWORD", "p@ss word")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "15")
	t.Setenv("WS_ALLOWED_ORIGINS", "app.example.com,admin.example.com")
	t.Setenv("MAIL_USE_TLS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, 15*time.Minute, cfg.TokenTTL())
	assert.Equal(t, []string{"app.example.com", "admin.example.com"}, cfg.WS.AllowedOrigins)
	assert.True(t, cfg.Mail.UseTLS)
	assert.Equal(t, "postgres://postgres:p%40ss+word@db:5432/helpdesk?sslmode=disable", cfg.DatabaseURL())
	assert.Contains(t, cfg.DSN(), "host=db ")
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app_port: \"7000\"\ndb:\n  database: tickets\nauth:\n  secret_key: from-file\n"), 0o600))
	t.Setenv("SECRET_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.HTTPPort)
	assert.Equal(t, "tickets", cfg.DB.Database)
	assert.Equal(t, "from-env", cfg.Auth.SecretKey)
}

func TestValidate_Production(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "SECRET_KEY")

	cfg.Auth.SecretKey = "s3cret"
	assert.NoError(t, cfg.Validate())

	cfg.DB.Password = ""
	assert.ErrorContains(t, cfg.Validate(), "DB_PASSWORD")
}

func TestValidate_Bounds(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.TicketCreatePerMinute = 0
	assert.Error(t, cfg.Validate())
}
