package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := Encode(Event{Type: OrderUpdated, ID: 42, OccurredAt: at, Payload: map[string]string{"status": "shipped"}})
	require.NoError(t, err)

	assert.Equal(t, "order:42", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "order.updated", got["type"])
	assert.EqualValues(t, 42, got["id"])
	assert.Equal(t, map[string]any{"status": "shipped"}, got["payload"])
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: ProductCreated}))
	assert.NoError(t, p.Close())
}
