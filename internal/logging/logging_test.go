package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json format logs expected fields", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewWithWriter(&buf, "info", "json")
		require.NoError(t, err)

		logger.Info().Str("mint", "Mint111").Msg("json_test")

		require.Contains(t, buf.String(), `"message":"json_test"`)
		require.Contains(t, buf.String(), `"mint":"Mint111"`)
		require.Contains(t, buf.String(), `"time":`)
	})

	t.Run("console format logs human readable output", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewWithWriter(&buf, "debug", "console")
		require.NoError(t, err)

		logger.Debug().Msg("console_log")

		require.Contains(t, buf.String(), "console_log")
		require.NotContains(t, buf.String(), `"message"`)
	})

	t.Run("level filters lower events", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewWithWriter(&buf, "warn", "json")
		require.NoError(t, err)

		logger.Info().Msg("dropped")
		logger.Warn().Msg("kept")

		require.NotContains(t, buf.String(), "dropped")
		require.Contains(t, buf.String(), "kept")
	})

	t.Run("unknown level is an error", func(t *testing.T) {
		_, err := NewWithWriter(&bytes.Buffer{}, "loud", "json")
		require.Error(t, err)
	})
}
