package config_test

import (
	"os"
	"testing"

	"github.com/scrypster/exocortex/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_DefaultHostIsLocalhost(t *testing.T) {
	_ = os.Unsetenv("EXOCORTEX_HOST")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host,
		"default host must be 127.0.0.1, not a wildcard bind")
}

func TestLoadConfig_CanOverrideHost(t *testing.T) {
	t.Setenv("EXOCORTEX_HOST", "0.0.0.0")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadConfig_DefaultDBPath(t *testing.T) {
	_ = os.Unsetenv("EXOCORTEX_DB_PATH")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "./data/exocortex.db", cfg.Storage.DBPath)
}

func TestLoadConfig_DBPathEnvOverride(t *testing.T) {
	t.Setenv("EXOCORTEX_DB_PATH", "/var/lib/exocortex/store.db")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "/var/lib/exocortex/store.db", cfg.Storage.DBPath)
}

func TestLoadConfig_ModelDirEnvOverride(t *testing.T) {
	t.Setenv("EXOCORTEX_MODEL_DIR", "/opt/models")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "/opt/models", cfg.Storage.ModelDir)
}

func TestLoadConfig_BackupMirrorDefaultsToDisabled(t *testing.T) {
	_ = os.Unsetenv("EXOCORTEX_BACKUP_MIRROR")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, "", cfg.Backup.CopyTo)
}

func TestLoadConfig_PortEnvOverride(t *testing.T) {
	t.Setenv("EXOCORTEX_PORT", "9090")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfig_InvalidPortFallsBackToDefault(t *testing.T) {
	t.Setenv("EXOCORTEX_PORT", "not-a-number")
	cfg, err := config.LoadConfig()
	assert.NoError(t, err)
	assert.Equal(t, 6363, cfg.Server.Port)
}
