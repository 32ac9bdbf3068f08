package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/logging"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "agora.log")

	logger, err := logging.New("info", path)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("cache hydrated")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cache hydrated")
	assert.NotContains(t, string(data), "hidden")
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	_, err := logging.New("chatty", filepath.Join(t.TempDir(), "a.log"))
	assert.Error(t, err)
}
