package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
# comment lines are skipped
server:
  port: 8080
  store: "postgres"
  admin_key: "sekrit"
  join_token_secret: "hmac-key"
  join_token_ttl_minutes: 15

database:
  host: "db.local"
  port: 5433
  user: "app"
  password: "pw"
  database: "orders"
  sslmode: "require"

rabbitmq:
  host: "mq.local"
  user: "guest"
  password: "guest"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Server.Store)
	assert.Equal(t, "sekrit", cfg.Server.AdminKey)
	assert.Equal(t, "hmac-key", cfg.Server.JoinTokenSecret)
	assert.Equal(t, 15, cfg.Server.JoinTokenTTLMin)

	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.True(t, cfg.Database.Enabled())

	assert.Equal(t, "mq.local", cfg.Rabbit.Host)
	assert.Equal(t, 5672, cfg.Rabbit.Port, "default port kept when the key is absent")
	assert.Equal(t, "/", cfg.Rabbit.VHost)
	assert.True(t, cfg.Rabbit.Enabled())
}

func TestLoadDefaultsAndDisabledBackends(t *testing.T) {
	path := writeConfig(t, `
server:
  admin_key: "k"
  join_token_secret: "s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Server.Store)
	assert.Equal(t, 60, cfg.Server.JoinTokenTTLMin)
	assert.False(t, cfg.Database.Enabled())
	assert.False(t, cfg.Rabbit.Enabled())
}

func TestLoadRejectsMissingSecrets(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 3000
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsPostgresWithoutHost(t *testing.T) {
	path := writeConfig(t, `
server:
  store: "postgres"
  admin_key: "k"
  join_token_secret: "s"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `
server:
  admin_key: "file-key"
  join_token_secret: "file-secret"

database:
  host: "db.local"
  password: "file-pw"
`)
	t.Setenv("ADMIN_KEY", "env-key")
	t.Setenv("JOIN_TOKEN_SECRET", "env-secret")
	t.Setenv("DB_PASSWORD", "env-pw")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Server.AdminKey)
	assert.Equal(t, "env-secret", cfg.Server.JoinTokenSecret)
	assert.Equal(t, "env-pw", cfg.Database.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
