package logger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAdapter_WithFieldsAndError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewZapAdapter(zap.New(core))

	log.WithFields(map[string]interface{}{"taskType": "postcode-address-lookup"}).
		WithError(errors.New("boom")).
		Warn("cache write failed", map[string]interface{}{"postcode": "SW1A 1AA"})

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "cache write failed", entries[0].Message)

	ctx := entries[0].ContextMap()
	assert.Equal(t, "postcode-address-lookup", ctx["taskType"])
	assert.Equal(t, "SW1A 1AA", ctx["postcode"])
	assert.Equal(t, "boom", ctx["error"])
}

func TestZapAdapter_LevelsFiltered(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := NewZapAdapter(zap.New(core))

	log.Debug("hidden", nil)
	log.Info("shown", nil)
	log.With(map[string]interface{}{"k": "v"}).Error("also shown", nil)

	assert.Equal(t, 2, logs.Len())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("anything"))
}

func TestNew_Formats(t *testing.T) {
	assert.NotNil(t, New("info", "json"))
	assert.NotNil(t, New("debug", "console", "stderr"))
	assert.NotNil(t, NewNoOpLogger())
	assert.NotNil(t, NewTestLogger(t))
}
