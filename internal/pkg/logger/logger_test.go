package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wazeapp/internal/platform/config"
)

func TestInit_FileOutput(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	path := filepath.Join(t.TempDir(), "logs", "worker.log")
	Init(config.LoggingConfig{Level: "warn", Output: "file", FilePath: path}, "worker")

	log.Info().Msg("dropped")
	log.Warn().Str("webhook_id", "wh_1").Msg("kept")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), `"service":"worker"`)
	assert.Contains(t, string(data), `"webhook_id":"wh_1"`)
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestInit_UnknownLevelDefaultsToInfo(t *testing.T) {
	defer func(l zerolog.Logger, lvl zerolog.Level) {
		log.Logger = l
		zerolog.SetGlobalLevel(lvl)
	}(log.Logger, zerolog.GlobalLevel())

	Init(config.LoggingConfig{Level: "loud"}, "server")
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}
