package messages

import (
	"encoding/binary"
	"testing"

	messagefb "github.com/cbodonnell/cardstage/flatbuffers/message"
	"github.com/cbodonnell/cardstage/pkg/arena"
	"github.com/cbodonnell/cardstage/pkg/game/turn"
	"github.com/cbodonnell/cardstage/pkg/game/types"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	target := arena.Handle{Index: 3, Generation: 5}
	permanent := arena.Handle{Index: 1, Generation: 1}
	defender := uint32(1)
	life := 17

	tests := []struct {
		name      string
		action    Action
		frameType FrameType
	}{
		{name: "invalid", action: &Invalid{Reason: "bad"}, frameType: FrameTypeBinary},
		{name: "text", action: &Text{Body: "good game ✨"}, frameType: FrameTypeText},
		{name: "assign id", action: &AssignID{Participant: 1, ReconnectToken: "token"}, frameType: FrameTypeBinary},
		{name: "setup begin", action: &SetupBegin{Session: "abc", Participants: 2}, frameType: FrameTypeBinary},
		{name: "ready", action: &Ready{Participant: 1}, frameType: FrameTypeBinary},
		{
			name: "game started",
			action: &GameStarted{Players: []types.PlayerView{
				{Participant: 0, Life: 20, HandSize: 5, LibrarySize: 15},
				{Participant: 1, Life: 20, HandSize: 5, LibrarySize: 15},
			}},
			frameType: FrameTypeBinary,
		},
		{
			name: "game started with permanents",
			action: &GameStarted{
				Players: []types.PlayerView{{Participant: 0, Life: 12, HandSize: 2, LibrarySize: 9}},
				Battlefield: []types.PermanentView{{
					Handle:    arena.Handle{Index: 3, Generation: 5},
					Permanent: types.Permanent{Card: types.Card{ID: "o", Name: "ogre"}, Owner: 0, Damage: 1, Exhausted: true},
				}},
			},
			frameType: FrameTypeBinary,
		},
		{
			name:      "hand update",
			action:    &HandUpdate{Participant: 0, Cards: []types.Card{{ID: "a", Name: "wolf"}, {ID: "b", Name: "bolt"}}},
			frameType: FrameTypeBinary,
		},
		{
			name:      "new turn",
			action:    &NewTurn{Turn: turn.Turn{Participant: 1, Counter: 4, Phase: turn.PhasePlay}, Mana: 5},
			frameType: FrameTypeBinary,
		},
		{name: "draw card", action: &DrawCard{Participant: 1, Card: &types.Card{ID: "c", Name: "ogre"}}, frameType: FrameTypeBinary},
		{
			name: "play card",
			action: &PlayCard{
				Participant: 0,
				CardID:      "b",
				Target:      &target,
				Card:        &types.Card{ID: "b", Name: "bolt"},
				Destroyed:   []arena.Handle{target},
			},
			frameType: FrameTypeBinary,
		},
		{
			name:      "attack",
			action:    &Attack{Participant: 0, Attacker: permanent, Defender: &defender, TargetLife: &life},
			frameType: FrameTypeBinary,
		},
		{name: "end turn", action: &EndTurn{Participant: 1}, frameType: FrameTypeBinary},
		{name: "chat", action: &Chat{From: 1, Body: "hello"}, frameType: FrameTypeBinary},
		{
			name:      "action result",
			action:    &ActionResult{Participant: 0, Action: ActionTypePlayCard, Error: "cant_pay_cost", Detail: "needs 3 mana"},
			frameType: FrameTypeBinary,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.frameType, frame.Type)

			got := Decode(frame)
			assert.Equal(t, tt.action, got)
		})
	}
}

func TestEncodeRejectsInvalidText(t *testing.T) {
	_, err := Encode(&Text{Body: string([]byte{0xff, 0xfe})})
	assert.Error(t, err)
}

func buildMessage(participant uint32, actionType byte, payload []byte) []byte {
	builder := flatbuffers.NewBuilder(64)
	payloadOffset := builder.CreateByteVector(payload)
	messagefb.MessageStart(builder)
	messagefb.MessageAddParticipantId(builder, participant)
	messagefb.MessageAddType(builder, actionType)
	messagefb.MessageAddPayload(builder, payloadOffset)
	builder.Finish(messagefb.MessageEnd(builder))
	return builder.FinishedBytes()
}

func binaryFrame(body []byte) Frame {
	data := make([]byte, lengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(data, uint32(len(body)))
	copy(data[lengthPrefixSize:], body)
	return Frame{Type: FrameTypeBinary, Data: data}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
	}{
		{name: "invalid utf-8 text", frame: Frame{Type: FrameTypeText, Data: []byte{0xc3, 0x28}}},
		{name: "unknown frame type", frame: Frame{Type: FrameType(9), Data: []byte("x")}},
		{name: "empty binary", frame: Frame{Type: FrameTypeBinary}},
		{name: "short length prefix", frame: Frame{Type: FrameTypeBinary, Data: []byte{0, 0}}},
		{
			name:  "length mismatch",
			frame: Frame{Type: FrameTypeBinary, Data: []byte{0, 0, 0, 9, 1, 2, 3}},
		},
		{name: "not zstd", frame: binaryFrame([]byte("definitely not zstd"))},
		{name: "not a flatbuffer", frame: binaryFrame(encoder.EncodeAll([]byte{0xff, 0xff, 0xff, 0x7f, 1, 2}, nil))},
		{name: "too short for a flatbuffer", frame: binaryFrame(encoder.EncodeAll([]byte{1}, nil))},
		{name: "unknown action type", frame: binaryFrame(encoder.EncodeAll(buildMessage(0, 200, []byte("{}")), nil))},
		{
			name:  "bad json",
			frame: binaryFrame(encoder.EncodeAll(buildMessage(0, byte(ActionTypeReady), []byte("{")), nil)),
		},
		{
			name:  "participant mismatch",
			frame: binaryFrame(encoder.EncodeAll(buildMessage(1, byte(ActionTypeReady), []byte(`{"participant":0}`)), nil)),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.frame)
			invalid, ok := got.(*Invalid)
			require.True(t, ok, "expected *Invalid, got %T", got)
			assert.NotEmpty(t, invalid.Reason)
		})
	}
}
