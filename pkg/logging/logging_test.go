package logging

import (
	"bytes"
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allowAllLevels lifts the quiet global level installed by init for the
// duration of the test.
func allowAllLevels(t *testing.T) {
	t.Helper()
	prev := zerolog.GlobalLevel()
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	t.Cleanup(func() { zerolog.SetGlobalLevel(prev) })
}

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component", zerolog.InfoLevel)

	// Logger should be configured with component field
	require.NotNil(t, logger)
}

func TestNewLoggerWithWriter(t *testing.T) {
	allowAllLevels(t)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test", zerolog.DebugLevel, &buf)

	logger.Debug().Msg("test debug message")
	assert.Contains(t, buf.String(), "test debug message")
	assert.Contains(t, buf.String(), `"component":"test"`)
	assert.Contains(t, buf.String(), `"level":"debug"`)
}

func TestNewLoggerLevel(t *testing.T) {
	allowAllLevels(t)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test", zerolog.InfoLevel, &buf)

	// Debug should not appear (below info level)
	logger.Debug().Msg("debug message")
	assert.NotContains(t, buf.String(), "debug message")

	// Info should appear
	logger.Info().Msg("info message")
	assert.Contains(t, buf.String(), "info message")

	// Warn should appear
	logger.Warn().Msg("warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestConfigureGlobal(t *testing.T) {
	allowAllLevels(t)
	// This test verifies ConfigureGlobal sets up global logger
	// Note: This modifies global state, so it's isolated
	ConfigureGlobal(zerolog.DebugLevel)

	// Global level should be set
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNewLoggerComponentField(t *testing.T) {
	allowAllLevels(t)
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("my-component", zerolog.InfoLevel, &buf)

	logger.Info().Msg("test message")
	output := buf.String()

	assert.Contains(t, output, `"component":"my-component"`)
	assert.Contains(t, output, "test message")
}

func TestNewLoggerMultipleInstances(t *testing.T) {
	allowAllLevels(t)
	var buf1, buf2 bytes.Buffer

	logger1 := NewLoggerWithWriter("component-1", zerolog.InfoLevel, &buf1)
	logger2 := NewLoggerWithWriter("component-2", zerolog.WarnLevel, &buf2)

	logger1.Info().Msg("from logger 1")
	logger2.Warn().Msg("from logger 2")

	assert.Contains(t, buf1.String(), `"component":"component-1"`)
	assert.Contains(t, buf1.String(), "from logger 1")

	assert.Contains(t, buf2.String(), `"component":"component-2"`)
	assert.Contains(t, buf2.String(), "from logger 2")
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, level)

	level, err = ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, level)

	_, err = ParseLevel("loud")
	require.Error(t, err)
}

func TestConfigureGlobalLogging_JSONToWriter(t *testing.T) {
	allowAllLevels(t)
	var buf bytes.Buffer
	SetLogWriter(&buf)
	t.Cleanup(func() { SetLogWriter(consoleWriter(os.Stderr)) })

	require.NoError(t, ConfigureGlobalLogging("info", "json"))
	log.Info().Str("k", "v").Msg("configured")

	assert.Contains(t, buf.String(), `"k":"v"`)
	assert.Contains(t, buf.String(), `"message":"configured"`)
}

func TestNewLoggerWithWriter_QuietGlobalLevel(t *testing.T) {
	allowAllLevels(t)
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)

	var buf bytes.Buffer
	logger := NewLoggerWithWriter("test", zerolog.DebugLevel, &buf)
	logger.Warn().Msg("suppressed")
	assert.Empty(t, buf.String(), "the global level caps every logger")

	zerolog.SetGlobalLevel(zerolog.TraceLevel)
	logger.Debug().Msg("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestConfigureGlobalLogging_InvalidLevel(t *testing.T) {
	require.Error(t, ConfigureGlobalLogging("loud", "text"))
}
