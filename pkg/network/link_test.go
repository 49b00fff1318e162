package network

import (
	"testing"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/messages"
	"github.com/stretchr/testify/assert"
)

func TestLink_SendBounded(t *testing.T) {
	l := NewLink(nil, LinkOptions{OutboxSize: 1}, log.Discard())

	assert.NoError(t, l.Send(&messages.Text{Body: "one"}))
	assert.ErrorIs(t, l.Send(&messages.Text{Body: "two"}), ErrOutboxFull)

	l.Close("bye")
	l.Close("again")
	assert.ErrorIs(t, l.Send(&messages.Text{Body: "three"}), ErrLinkClosed)
	assert.Equal(t, "bye", l.reason)
}

func TestFrameTypes(t *testing.T) {
	for _, ft := range []messages.FrameType{messages.FrameTypeText, messages.FrameTypeBinary} {
		assert.Equal(t, ft, frameType(messageType(ft)))
	}
}
