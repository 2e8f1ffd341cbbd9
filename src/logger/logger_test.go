package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("WARNING"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "WARNING", "test")

	l.Info("hidden %d", 1)
	assert.Empty(t, buf.String())

	l.Warning("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
	assert.Contains(t, buf.String(), `"component":"test"`)
}

func TestLoggerNamed(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(&buf, "DEBUG", "root").Named("Registry")

	l.Debug("hello")
	assert.Contains(t, buf.String(), `"component":"Registry"`)
	assert.Contains(t, buf.String(), "hello")
}

func TestNopDiscards(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("nothing %s", "here")
	})
}
