package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[server]
port = 9090
mode = "debug"

[postgres]
host = "db.internal"
port = "6543"
user = "chat"
password = "secret"
dbname = "chat"
max_idle_conns = 3
max_open_conns = 12
conn_max_lifetime = "10m"

[redis]
enabled = true
cache_ttl = "90s"
tombstone_ttl = "2s"

[kafka]
brokers = ["k1:9092", "k2:9092"]
topic = "changes"

[logging]
level = "debug"
format = "text"

[repository]
unique_membership = true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, 5, cfg.Postgres.MaxIdleConns)
		assert.Equal(t, 15, cfg.Postgres.MaxOpenConns)
		assert.Equal(t, 30*time.Minute, cfg.Postgres.ConnMaxLifetime)
		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, time.Hour, cfg.Redis.CacheTTL)
		assert.Equal(t, 5*time.Second, cfg.Redis.TombstoneTTL)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, "altmur-watch", cfg.Kafka.GroupID)
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.False(t, cfg.Repository.UniqueMembership)
	})

	t.Run("reads values from file", func(t *testing.T) {
		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Server.Mode)
		assert.Equal(t, "db.internal", cfg.Postgres.Host)
		assert.Equal(t, "6543", cfg.Postgres.Port)
		assert.Equal(t, 12, cfg.Postgres.MaxOpenConns)
		assert.Equal(t, 10*time.Minute, cfg.Postgres.ConnMaxLifetime)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 90*time.Second, cfg.Redis.CacheTTL)
		assert.Equal(t, 2*time.Second, cfg.Redis.TombstoneTTL)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "changes", cfg.Kafka.Topic)
		assert.Equal(t, "text", cfg.Logging.Format)
		assert.True(t, cfg.Repository.UniqueMembership)
	})

	t.Run("legacy environment variables override the file", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/altmur")
		t.Setenv("DEBUG", "true")

		cfg, err := LoadConfig(writeConfig(t, sampleConfig))
		require.NoError(t, err)

		assert.Equal(t, "postgres://u:p@localhost:5432/altmur", cfg.Postgres.URL)
		assert.True(t, cfg.Postgres.Debug)
	})

	t.Run("prefixed environment variables", func(t *testing.T) {
		t.Setenv("ALTMUR_SERVER_PORT", "7070")
		t.Setenv("ALTMUR_POSTGRES_URL", "postgres://prefixed")

		cfg, err := LoadConfig("")
		require.NoError(t, err)

		assert.Equal(t, 7070, cfg.Server.Port)
		assert.Equal(t, "postgres://prefixed", cfg.Postgres.URL)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Run("url wins", func(t *testing.T) {
		cfg := &PostgresConfig{URL: "postgres://x", Host: "ignored"}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Equal(t, "postgres://x", dsn)
	})

	t.Run("built from fields", func(t *testing.T) {
		cfg := &PostgresConfig{Host: "h", Port: "1", User: "u", Password: "p", DBName: "d"}
		dsn, err := cfg.DSN()
		require.NoError(t, err)
		assert.Equal(t, "host=h port=1 user=u password=p dbname=d sslmode=disable", dsn)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := (&PostgresConfig{}).DSN()
		assert.EqualError(t, err, "database url is not set")
	})
}
