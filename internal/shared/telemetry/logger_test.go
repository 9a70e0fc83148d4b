package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHelpersWriteFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := L()
	Use(zap.New(core))
	t.Cleanup(func() { Use(prev) })

	Info("upload.stored", map[string]any{"userId": "u1", "sizeBytes": 12})
	Warn("webhook.skipped", nil)
	Error("webhook.failed", map[string]any{"err": errors.New("boom")})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "upload.stored", entries[0].Message)
	assert.Equal(t, "u1", entries[0].ContextMap()["userId"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[2].ContextMap()["err"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("nonsense"))
}
