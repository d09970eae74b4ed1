package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("JOURNAL_ENABLED", "true")
	t.Setenv("API_TIMEOUT_SECONDS", "not-a-number")
	t.Setenv("DB_NAME", "missions")

	cfg := LoadConfig()
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr())
	assert.True(t, cfg.Journal.Enabled)
	assert.Equal(t, 30, cfg.API.Timeout)
	assert.Contains(t, cfg.DSN(), "dbname=missions")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseMissionParams(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.InfoLevel)

	params, err := ParseMissionParams([]byte(`
operating_altitude: 2.0
task1_cubes_count: 3
task2_max_association_distance: 0.8
`), logger)
	require.NoError(t, err)

	assert.Equal(t, 2.0, params.OperatingAltitude)
	assert.Equal(t, 3, params.Task1.CubesCount)
	assert.Equal(t, 0.8, params.Task2.MaxAssociationDistance)

	// отсутствующие ключи сохраняют значения по умолчанию
	defaults := DefaultMissionParams()
	assert.Equal(t, defaults.LowAltitude, params.LowAltitude)
	assert.Equal(t, defaults.MinBatteryVoltage, params.MinBatteryVoltage)
	assert.Equal(t, defaults.Task2.MaxFloorZ, params.Task2.MaxFloorZ)

	// по записи в лог на каждый параметр по умолчанию
	assert.Len(t, hook.AllEntries(), 15)
}

func TestLoadMissionParams(t *testing.T) {
	t.Parallel()

	logger, _ := test.NewNullLogger()

	t.Run("empty path gives defaults", func(t *testing.T) {
		t.Parallel()
		params, err := LoadMissionParams("", logger)
		require.NoError(t, err)
		assert.Equal(t, DefaultMissionParams(), params)
	})

	t.Run("reads the file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "params.yaml")
		require.NoError(t, os.WriteFile(path, []byte("min_battery_voltage: 11.1\n"), 0o600))
		params, err := LoadMissionParams(path, logger)
		require.NoError(t, err)
		assert.Equal(t, 11.1, params.MinBatteryVoltage)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadMissionParams(filepath.Join(t.TempDir(), "absent.yaml"), logger)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Parallel()
		_, err := ParseMissionParams([]byte("operating_altitude: [1, 2"), logger)
		assert.Error(t, err)
	})
}
