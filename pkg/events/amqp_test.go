package events

import (
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublishing(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg, err := newPublishing(Event{
		Type:      EventTypeMatchFinished,
		SessionID: "s1",
		Time:      now,
		Data:      map[string]string{"result": "draw"},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, EventTypeMatchFinished, msg.Type)
	assert.Equal(t, "s1", msg.MessageId)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "s1", decoded["sessionId"])
	assert.Equal(t, map[string]interface{}{"result": "draw"}, decoded["data"])
}

func TestNewPublishingRejectsUnmarshalableData(t *testing.T) {
	_, err := newPublishing(Event{Type: EventTypeMatchFinished, Data: make(chan int)})
	assert.Error(t, err)
}
