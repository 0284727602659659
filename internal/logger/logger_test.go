package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "warn", false)
	require.NoError(t, err)

	log.Info().Msg("hidden")
	log.Warn().Str("device_id", "d1").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"service":"licensing"`)
	assert.Contains(t, out, `"device_id":"d1"`)
}

func TestNew_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "", false)
	require.NoError(t, err)

	log.Debug().Msg("debug line")
	log.Info().Msg("info line")
	assert.NotContains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "info line")
}

func TestNew_DevModeIsNotJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(&buf, "DEBUG", true)
	require.NoError(t, err)

	log.Debug().Msg("console line")
	assert.Contains(t, buf.String(), "console line")
	assert.NotContains(t, buf.String(), `"message"`)
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(nil, "loud", false)
	assert.Error(t, err)
}
