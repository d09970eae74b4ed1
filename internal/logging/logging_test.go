package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("parses level", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, logrus.DebugLevel, New("debug", "").GetLevel())
		assert.Equal(t, logrus.InfoLevel, New("nonsense", "").GetLevel())
	})

	t.Run("writes to file", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "task-manager.log")
		logger := New("info", path)
		logger.Info("Проверка записи")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "Проверка записи")
		assert.Contains(t, string(data), `"level":"info"`)
	})
}
