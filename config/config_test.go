package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/planning-engine/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_EmptyPath_Defaults(t *testing.T) {
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, config.DefaultPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 2, cfg.Supervision.MaxRoomsPerSupervisor)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestLoad_ExpandsEnvAndKeepsValues(t *testing.T) {
	// GIVEN: A file referencing an environment variable
	t.Setenv("PLANNING_DB", "/tmp/bloc.db")
	path := writeConfig(t, `
server:
  port: 9090
database:
  path: ${PLANNING_DB}
log:
  level: debug
supervision:
  max_rooms_per_supervisor: 2
  max_rooms_exceptional: 3
`)

	// WHEN
	cfg, err := config.Load(path)

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "/tmp/bloc.db", cfg.Database.Path)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel())
	assert.Equal(t, 3, cfg.SupervisionConfig().MaxRoomsExceptional)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins, "defaults still applied")
}

func TestLoad_OmittedKeysKeepDefaults(t *testing.T) {
	// GIVEN: A file that only sets the port
	path := writeConfig(t, "server:\n  port: 9090\n")

	// WHEN
	cfg, err := config.Load(path)

	// THEN: Metrics and pretty logging stay on, as with no file
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.Log.Pretty)

	// AND: An explicit false still wins
	cfg, err = config.Load(writeConfig(t, "metrics:\n  enabled: false\nlog:\n  pretty: false\n"))
	require.NoError(t, err)
	assert.False(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Log.Pretty)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "server: [unclosed"},
		{"port out of range", "server:\n  port: 70000\n"},
		{"exceptional not above normal", "supervision:\n  max_rooms_per_supervisor: 3\n  max_rooms_exceptional: 3\n"},
		{"unknown log level", "log:\n  level: loud\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))

	assert.Error(t, err)
}
