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
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 3*time.Minute, cfg.AttemptLease)
	assert.Equal(t, "@every 15s", cfg.SweepSchedule)
	assert.False(t, cfg.Production())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ATTEMPT_LEASE", "90s")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 90*time.Second, cfg.AttemptLease)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.True(t, cfg.Production())
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ARCHIVE_BUCKET=lift-archive\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("ARCHIVE_BUCKET") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lift-archive", cfg.ArchiveBucket)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.EqualError(t, err, `unsupported DATABASE_DRIVER "oracle"`)
}
