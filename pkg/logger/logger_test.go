package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "ordermgmt", func(context.Context) string { return "abc123" })

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "order created", "order_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "order created", entry["msg"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ordermgmt", entry["service"])
	assert.Equal(t, "abc123", entry["trace_id"])
	assert.EqualValues(t, 7, entry["order_id"])
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "svc", nil).With("component", "persistence")
	log.Warn(context.Background(), "slow save")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "persistence", entry["component"])
	assert.NotContains(t, entry, "trace_id")
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, l)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
