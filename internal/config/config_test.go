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
	for _, key := range []string{"DB_DRIVER", "DB_HOST", "DB_PORT", "SERVER_PORT", "ENV", "ALLOWED_ORIGINS", "TYPING_TIMEOUT", "PROFILE_CACHE_TTL"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, "3306", cfg.DBPort)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
	assert.Zero(t, cfg.TypingTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("ALLOWED_ORIGINS", " https://portal.example ,https://admin.example ")
	t.Setenv("TYPING_TIMEOUT", "8s")
	t.Setenv("PROFILE_CACHE_TTL", "not-a-duration")

	cfg := Load()

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, []string{"https://portal.example", "https://admin.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 8*time.Second, cfg.TypingTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL, "invalid durations fall back to the default")
}

func TestLoadFile_OverlaysYAML(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("JWT_SECRET", "from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "db_driver: sqlite3\ndb_path: /tmp/portal.db\nallowed_origins:\n  - ' https://a.example'\ntyping_timeout: 3s\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, "/tmp/portal.db", cfg.DBPath)
	assert.Equal(t, []string{"https://a.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.TypingTimeout)
	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, "from-env", cfg.JWTSecret)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Config{DBDriver: "mysql"}
	assert.Error(t, cfg.Validate(), "missing secret")

	cfg.JWTSecret = "s"
	assert.NoError(t, cfg.Validate())

	cfg.DBDriver = "pgx"
	assert.Error(t, cfg.Validate(), "pgx needs DB_URL")

	cfg.DBURL = "postgres://localhost/portal"
	assert.NoError(t, cfg.Validate())

	cfg.DBDriver = "oracle"
	assert.Error(t, cfg.Validate())
}
