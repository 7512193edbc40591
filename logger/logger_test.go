package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/boardgamescores/scorestore/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_New(t *testing.T) {
	t.Run("auto is logfmt off a terminal", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.NewConfig()
		log, err := c.New(&buf)
		require.NoError(t, err)

		log.Info("Bringing up metadata migrations", zap.Int("migration_count", 2))
		out := buf.String()
		assert.Contains(t, out, `lvl=info`)
		assert.Contains(t, out, `msg="Bringing up metadata migrations"`)
		assert.Contains(t, out, `migration_count=2`)
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.Config{Format: "json", Level: zapcore.DebugLevel}
		log, err := c.New(&buf)
		require.NoError(t, err)

		log.Debug("Executing metadata migration", zap.String("migration_name", "add settings"))
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "debug", entry["lvl"])
		assert.Equal(t, "add settings", entry["migration_name"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		c := logger.Config{Format: "logfmt", Level: zapcore.WarnLevel}
		log, err := c.New(&buf)
		require.NoError(t, err)

		log.Info("hidden")
		log.Warn("shown")
		assert.False(t, strings.Contains(buf.String(), "hidden"))
		assert.True(t, strings.Contains(buf.String(), "shown"))
	})

	t.Run("unknown format", func(t *testing.T) {
		c := logger.Config{Format: "xml"}
		_, err := c.New(&bytes.Buffer{})
		assert.Error(t, err)
	})
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, logger.IsTerminal(&bytes.Buffer{}))
}

func TestContext(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, logger.FromContext(ctx))

	log := zap.NewExample()
	assert.Same(t, log, logger.FromContext(logger.NewContextWithLogger(ctx, log)))
}
